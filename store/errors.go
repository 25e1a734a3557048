// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when there is no value at a path,
// and by Unproxy when the path is not delegated to the named URL.
var ErrNotFound = errors.New("no such path")

// ErrNotSupported is returned by stores that do not implement some
// optional operation, such as Watch over a remote connection.
var ErrNotSupported = errors.New("operation not supported by this store")

// ErrBadPath is returned for paths that are not absolute, or that
// contain empty or "."/".." segments.
type ErrBadPath struct {
	Path string
}

func (e ErrBadPath) Error() string {
	return fmt.Sprintf("invalid store path %q", e.Path)
}
