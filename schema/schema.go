// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package schema holds an in-memory index of loaded YANG modules.
//
// The index is built once, by Load, from YANG sources parsed with
// github.com/openconfig/goyang, and is never modified afterwards.  It
// answers the questions the gateway asks of every request: which
// module a namespace prefix names, what kind of node a path reaches,
// whether that node may be read or written, how its values convert
// between store strings and wire scalars, and which store path holds
// it.  To change the loaded modules, build a new index and publish it
// through a Holder.
package schema

import (
	"sort"
)

// Kind is the kind of a schema node.
type Kind int

const (
	// Container is a YANG container (or the input or output of an
	// operation).
	Container Kind = iota
	// List is a keyed YANG list.
	List
	// Leaf is a scalar-valued node.
	Leaf
	// LeafList is a set of scalars under one name.
	LeafList
	// RPC is a module-level operation.
	RPC
	// Action is an operation bound to a data node.
	Action
)

func (k Kind) String() string {
	switch k {
	case Container:
		return "container"
	case List:
		return "list"
	case Leaf:
		return "leaf"
	case LeafList:
		return "leaf-list"
	case RPC:
		return "rpc"
	case Action:
		return "action"
	}
	return "unknown"
}

// Access describes what clients may do with a node.
type Access int

const (
	// ReadWrite is ordinary configuration data.
	ReadWrite Access = iota
	// ReadOnly is operational state: it may be read but never
	// written.
	ReadOnly
	// WriteOnly may be written but never read back.
	WriteOnly
	// Hidden nodes are invisible to clients.
	Hidden
)

func (a Access) String() string {
	switch a {
	case ReadWrite:
		return "read-write"
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case Hidden:
		return "hidden"
	}
	return "unknown"
}

// Readable returns true if clients may read a node with this access.
func (a Access) Readable() bool {
	return a == ReadWrite || a == ReadOnly
}

// Writable returns true if clients may write a node with this access.
func (a Access) Writable() bool {
	return a == ReadWrite || a == WriteOnly
}

// Module describes one loaded YANG module.
type Module struct {
	Name      string
	Prefix    string
	Namespace string
	Revision  string

	// PathPrefix is prepended to the store path of the module's
	// top-level nodes.  It is "/" unless configured otherwise.
	PathPrefix string
}

// Node describes one position in the schema tree.
type Node struct {
	Name   string
	Module *Module
	Kind   Kind
	Access Access

	// Config is true for configuration data and false for state.
	Config bool

	// Type describes the values of leaves and leaf-lists.
	Type *Type

	// Keys lists the key leaf names of a list, in order.
	Keys []string

	// Default is the schema default value of a leaf, as a store
	// string, or "".
	Default string

	// Parent is the enclosing node, or nil for top-level nodes
	// and operations.
	Parent *Node

	// Input and Output are the parameter containers of an
	// operation, either of which may be nil.
	Input  *Node
	Output *Node

	children map[string]*Node
	order    []*Node
}

// Child returns the immediate child with a local name, or nil.  If
// children from different modules share the name, one from the node's
// own module wins.
func (n *Node) Child(name string) *Node {
	return n.children[name]
}

// ChildIn returns the immediate child with a local name that belongs
// to module m, or nil.
func (n *Node) ChildIn(m *Module, name string) *Node {
	for _, child := range n.order {
		if child.Name == name && child.Module == m {
			return child
		}
	}
	return nil
}

// Children returns all immediate children, sorted by name.
func (n *Node) Children() []*Node {
	return n.order
}

// IsKey returns true if n is one of its list's key leaves.
func (n *Node) IsKey() bool {
	if n.Parent == nil || n.Parent.Kind != List {
		return false
	}
	for _, key := range n.Parent.Keys {
		if key == n.Name {
			return true
		}
	}
	return false
}

// IsOperation returns true for RPCs and actions.
func (n *Node) IsOperation() bool {
	return n.Kind == RPC || n.Kind == Action
}

// IsComposite returns true for nodes that hold other nodes.
func (n *Node) IsComposite() bool {
	return n.Kind == Container || n.Kind == List
}

// QualifiedName returns "module:name".
func (n *Node) QualifiedName() string {
	return n.Module.Name + ":" + n.Name
}

// SchemaPath returns the slash-separated local names from the top of
// the schema to n.
func (n *Node) SchemaPath() string {
	if n.Parent == nil {
		return "/" + n.Name
	}
	return n.Parent.SchemaPath() + "/" + n.Name
}

func (n *Node) addChild(child *Node) {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	if existing := n.children[child.Name]; existing == nil || existing.Module != n.Module {
		n.children[child.Name] = child
	}
	n.order = append(n.order, child)
	sort.SliceStable(n.order, func(i, j int) bool {
		return n.order[i].Name < n.order[j].Name
	})
}
