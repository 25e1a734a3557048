// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

import (
	"fmt"
)

// ErrUnknownNamespace is returned when a path or document names a
// module prefix that no loaded module declares.
type ErrUnknownNamespace struct {
	Prefix string
}

func (e ErrUnknownNamespace) Error() string {
	return fmt.Sprintf("unknown namespace %q", e.Prefix)
}

// ErrNoSuchNode is returned when a path does not reach any schema
// node.
type ErrNoSuchNode struct {
	Path string
}

func (e ErrNoSuchNode) Error() string {
	return fmt.Sprintf("no schema node at %q", e.Path)
}

// ErrBadKeys is returned when a list entry is selected with the wrong
// number of key values, or a keyed segment names something that is
// not a list.
type ErrBadKeys struct {
	Name string
}

func (e ErrBadKeys) Error() string {
	return fmt.Sprintf("wrong keys for %q", e.Name)
}

// ErrOutOfRange is returned when a numeric value falls outside its
// type's range.
type ErrOutOfRange struct {
	Name  string
	Value string
}

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf("value %q out of range for %q", e.Value, e.Name)
}

// ErrInvalidEnum is returned when an enumeration value is neither a
// known name nor a known numeric value.
type ErrInvalidEnum struct {
	Name  string
	Value string
}

func (e ErrInvalidEnum) Error() string {
	return fmt.Sprintf("invalid enumeration value %q for %q", e.Value, e.Name)
}

// ErrInvalidValue is returned for any other value that does not fit
// its type.
type ErrInvalidValue struct {
	Name  string
	Value string
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value %q for %q", e.Value, e.Name)
}

// ErrAccessDenied is returned when a request reads a node that may
// not be read, or writes a node that may not be written.
type ErrAccessDenied struct {
	Path string
}

func (e ErrAccessDenied) Error() string {
	return fmt.Sprintf("access denied to %q", e.Path)
}
