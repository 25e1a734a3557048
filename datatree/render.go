// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree

import (
	"github.com/diffeo/go-restconf/schema"
)

// DefaultTag is the annotation RFC 8040 report-all-tagged output
// attaches to leaves holding a schema default.
const DefaultTag = "ietf-netconf-with-defaults:default"

// RenderOptions control how a tree becomes a JSON document.
type RenderOptions struct {
	// RESTCONF selects RFC 7951 naming: children from a module
	// other than their parent's are qualified, and lists always
	// render as arrays.
	RESTCONF bool

	// Typed renders numbers, booleans and enumeration names in
	// their JSON types instead of as strings.
	Typed bool

	// Arrays renders lists as arrays of entries rather than as
	// objects keyed by entry name.
	Arrays bool

	// Depth limits the levels rendered; zero is unbounded.
	Depth int

	// Tagged marks default values as report-all-tagged requires.
	Tagged bool
}

func (opts RenderOptions) arrays() bool {
	return opts.RESTCONF || opts.Arrays
}

// Render renders a tree as a generic JSON document with a single
// top-level member named name.  A list entry renders as a
// one-element list named after its list when lists render as arrays,
// and as an object keyed by entry name otherwise; a single leaf-list member likewise renders as a
// one-element array or as a bare value.  A tree without a schema, as
// returned by AssembleRoots, renders each top-level node as its own
// member, qualified in RESTCONF.  Returns nil for a nil tree.
func Render(tree *Node, name string, opts RenderOptions) map[string]interface{} {
	if tree == nil {
		return nil
	}
	if tree.Schema == nil {
		out := make(map[string]interface{})
		for _, c := range tree.SortedChildren() {
			childName := c.Schema.Name
			if opts.RESTCONF {
				childName = c.Schema.QualifiedName()
			}
			if v, ok := opts.value(c, 1); ok {
				out[childName] = v
			}
		}
		return out
	}

	var v interface{}
	var ok bool
	switch {
	case tree.Entry && opts.arrays():
		if !opts.RESTCONF {
			name = tree.Schema.Name
		}
		v, ok = opts.value(tree, 1)
		v = []interface{}{v}
	case tree.Entry:
		name = tree.EntryName()
		v, ok = opts.value(tree, 1)
	case tree.Member && !opts.RESTCONF && len(tree.Values) == 1:
		v, ok = tree.Schema.Encode(tree.Values[0], opts.Typed), true
	default:
		v, ok = opts.value(tree, 1)
	}
	if !ok {
		return nil
	}
	out := map[string]interface{}{name: v}
	if tree.Default && opts.Tagged {
		out["@"+name] = map[string]interface{}{DefaultTag: true}
	}
	return out
}

// value renders a node at a level, counting the target as level 1.
// It returns false for nodes that are left out entirely.
func (opts RenderOptions) value(n *Node, level int) (interface{}, bool) {
	switch {
	case n.isComposite():
		out := make(map[string]interface{})
		if opts.Depth > 0 && level >= opts.Depth {
			if n.Entry && level > 1 {
				opts.keys(n, out)
			}
			return out, true
		}
		for _, c := range n.SortedChildren() {
			name := c.Schema.Name
			if opts.RESTCONF && c.Schema.Module != n.Schema.Module {
				name = c.Schema.QualifiedName()
			}
			v, ok := opts.value(c, level+1)
			if !ok {
				continue
			}
			out[name] = v
			if c.Default && opts.Tagged {
				out["@"+name] = map[string]interface{}{DefaultTag: true}
			}
		}
		return out, true

	case n.isList():
		if opts.arrays() {
			out := make([]interface{}, 0, len(n.Entries))
			for _, e := range n.Entries {
				v, _ := opts.value(e, level)
				out = append(out, v)
			}
			return out, len(out) > 0
		}
		out := make(map[string]interface{}, len(n.Entries))
		for _, e := range n.Entries {
			v, _ := opts.value(e, level)
			out[e.EntryName()] = v
		}
		return out, len(out) > 0

	case n.Schema.Kind == schema.LeafList:
		out := make([]interface{}, len(n.Values))
		for i, raw := range n.Values {
			out[i] = n.Schema.Encode(raw, opts.Typed)
		}
		return out, len(out) > 0
	}

	if n.Value == "" {
		return nil, false
	}
	return n.Schema.Encode(n.Value, opts.Typed), true
}

// keys fills out with the key leaves of a list entry, which is all of
// an entry that shows at the depth limit.
func (opts RenderOptions) keys(n *Node, out map[string]interface{}) {
	for _, c := range n.SortedChildren() {
		if c.Schema.IsKey() && c.Value != "" {
			out[c.Schema.Name] = c.Schema.Encode(c.Value, opts.Typed)
		}
	}
}
