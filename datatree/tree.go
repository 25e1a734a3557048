// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package datatree converts between the flat path/value rows of a
// store and nested documents shaped by a YANG schema.
//
// Reads go through three steps.  Assemble groups store rows into a
// tree of Node objects following the schema, dropping anything
// clients may not see.  Apply prunes that tree according to a parsed
// request Query.  Render or RenderXML turns what is left into a
// response document.  Writes go the other way: the Decode functions
// validate a request document against the schema and flatten it into
// store values.
package datatree

import (
	"sort"
	"strings"

	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
)

// Node is one node of an assembled data tree.
type Node struct {
	// Schema describes the node.  For a list entry this is the
	// list's schema node.
	Schema *schema.Node

	// Value is the store value of a leaf.
	Value string

	// Default is true if Value was filled in from the schema
	// default rather than read from the store.
	Default bool

	// Values holds the members of a leaf-list, in store order.
	// If Member is true the node is a single selected member.
	Values []string
	Member bool

	// Entry is true for a single list entry, and Keys then holds
	// its key values.
	Entry bool
	Keys  []string

	// Children holds the children of a container or list entry,
	// by local name.
	Children map[string]*Node

	// Entries holds the entries of a list, in store order.
	Entries []*Node

	entryIndex map[string]*Node
}

// IsEmpty returns true if n holds no data at all.
func (n *Node) IsEmpty() bool {
	if n == nil {
		return true
	}
	switch {
	case n.Schema == nil:
		return len(n.Children) == 0
	case n.Entry:
		return len(n.Children) == 0
	}
	switch n.Schema.Kind {
	case schema.Leaf:
		return n.Value == ""
	case schema.LeafList:
		return len(n.Values) == 0
	case schema.List:
		return len(n.Entries) == 0
	}
	return len(n.Children) == 0
}

// isComposite returns true for nodes with named children.
func (n *Node) isComposite() bool {
	return n.Schema == nil || n.Entry || n.Schema.Kind == schema.Container
}

// isList returns true for a whole list.
func (n *Node) isList() bool {
	return n.Schema != nil && !n.Entry && n.Schema.Kind == schema.List
}

// SortedChildren returns the children of a composite node in name
// order.
func (n *Node) SortedChildren() []*Node {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Node, len(names))
	for i, name := range names {
		out[i] = n.Children[name]
	}
	return out
}

// EntryName returns the name a list entry is known by in the plain
// API: its key values joined with commas.
func (n *Node) EntryName() string {
	return strings.Join(n.Keys, ",")
}

func (n *Node) child(s *schema.Node) *Node {
	if n.Children == nil {
		n.Children = make(map[string]*Node)
	}
	c := n.Children[s.Name]
	if c == nil {
		c = &Node{Schema: s}
		n.Children[s.Name] = c
	}
	return c
}

func (n *Node) entry(segment string) *Node {
	if n.entryIndex == nil {
		n.entryIndex = make(map[string]*Node)
	}
	e := n.entryIndex[segment]
	if e == nil {
		e = &Node{Schema: n.Schema, Entry: true, Keys: schema.SplitEntryKey(segment)}
		n.entryIndex[segment] = e
		n.Entries = append(n.Entries, e)
	}
	return e
}

// newTarget creates an empty node for the target of a location.
func newTarget(loc schema.Location) *Node {
	n := &Node{Schema: loc.Node, Member: loc.Member}
	if loc.Entry {
		n.Entry = true
		n.Keys = append([]string(nil), loc.Keys...)
	}
	return n
}

// Assemble builds a data tree for the target of loc out of store
// rows at or beneath loc.StorePath.  Rows that do not match the
// schema, rows with empty values, and nodes clients may not read are
// skipped.  Returns nil if nothing is left.
func Assemble(loc schema.Location, values []store.Value) *Node {
	root := newTarget(loc)
	for _, v := range values {
		if v.Value == "" || !store.Under(v.Path, loc.StorePath) {
			continue
		}
		segs := store.Split(store.Relative(v.Path, loc.StorePath))
		if loc.Member {
			if len(segs) == 0 {
				root.Values = append(root.Values, v.Value)
			}
			continue
		}
		root.insert(segs, v.Value)
	}
	if !root.finish() {
		return nil
	}
	return root
}

// AssembleRoots builds a data tree holding every top-level node of
// an index, out of store rows read from the top of the store.  The
// returned node has no schema.
func AssembleRoots(idx *schema.Index, values []store.Value) *Node {
	root := &Node{}
	for _, top := range idx.Roots() {
		if !top.Access.Readable() {
			continue
		}
		path := idx.RootPath(top)
		child := &Node{Schema: top}
		for _, v := range values {
			if v.Value == "" || !store.Under(v.Path, path) {
				continue
			}
			child.insert(store.Split(store.Relative(v.Path, path)), v.Value)
		}
		if child.finish() {
			if root.Children == nil {
				root.Children = make(map[string]*Node)
			}
			root.Children[top.Name] = child
		}
	}
	if len(root.Children) == 0 {
		return nil
	}
	return root
}

func (n *Node) insert(segs []string, value string) {
	switch {
	case n.Entry || n.Schema.Kind == schema.Container:
		if len(segs) == 0 {
			return
		}
		s := n.Schema.Child(segs[0])
		if s == nil || s.IsOperation() || !s.Access.Readable() {
			return
		}
		n.child(s).insert(segs[1:], value)
	case n.Schema.Kind == schema.List:
		if len(segs) == 0 {
			return
		}
		n.entry(segs[0]).insert(segs[1:], value)
	case n.Schema.Kind == schema.LeafList:
		if len(segs) == 1 {
			n.Values = append(n.Values, value)
		}
	case n.Schema.Kind == schema.Leaf:
		if len(segs) == 0 {
			n.Value = value
		}
	}
}

// finish removes empty nodes, fills in missing key leaves of list
// entries, and returns false if n itself is empty.
func (n *Node) finish() bool {
	switch {
	case n.isComposite():
		for name, c := range n.Children {
			if !c.finish() {
				delete(n.Children, name)
			}
		}
		if n.Entry && len(n.Children) > 0 {
			n.addKeys()
		}
	case n.isList():
		entries := n.Entries[:0]
		for _, e := range n.Entries {
			if e.finish() {
				entries = append(entries, e)
			}
		}
		n.Entries = entries
		n.entryIndex = nil
	}
	return !n.IsEmpty()
}

// addKeys adds key leaves that were not stored explicitly.
func (n *Node) addKeys() {
	for i, key := range n.Schema.Keys {
		if i >= len(n.Keys) {
			break
		}
		s := n.Schema.Child(key)
		if s == nil || !s.Access.Readable() {
			continue
		}
		if _, ok := n.Children[key]; !ok {
			n.child(s).Value = n.Keys[i]
		}
	}
}
