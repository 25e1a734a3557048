// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree

import (
	"github.com/diffeo/go-restconf/schema"
)

// Apply prunes an assembled tree for the target of loc according to
// q.  Defaults are filled in or trimmed first, then the tree is
// filtered by content and by fields.  Depth is applied when the tree
// is rendered.  tree may be nil, and Apply may return nil.
func Apply(tree *Node, loc schema.Location, q Query) *Node {
	switch q.WithDefaults {
	case ReportAll, ReportAllTagged:
		tree = withDefaults(tree, loc)
	case Trim:
		if tree != nil {
			trim(tree)
		}
	}
	if tree == nil {
		return nil
	}
	if q.Content != ContentAll {
		if !filterContent(tree, q.Content == ContentConfig) {
			return nil
		}
	}
	if q.Fields != nil {
		if !selectFields(tree, q.Fields) {
			return nil
		}
	}
	return tree
}

// withDefaults fills in schema defaults beneath the target.  A target
// that has no data is created if it would hold defaults.
func withDefaults(tree *Node, loc schema.Location) *Node {
	if loc.Node == nil || loc.Member || loc.Operation != nil {
		return tree
	}
	created := false
	if tree == nil {
		if loc.Node.Kind == schema.List && !loc.Entry {
			return nil
		}
		if loc.Entry {
			// An entry that does not exist has no defaults
			return nil
		}
		tree = newTarget(loc)
		created = true
	}
	switch {
	case tree.Schema.Kind == schema.Leaf:
		if tree.Value == "" && tree.Schema.Default != "" {
			tree.Value = tree.Schema.Default
			tree.Default = true
		}
	case tree.isComposite():
		fillDefaults(tree)
	case tree.isList():
		for _, e := range tree.Entries {
			fillDefaults(e)
		}
	}
	if created && tree.IsEmpty() {
		return nil
	}
	return tree
}

// fillDefaults adds missing default leaves to a container or list
// entry, descending into existing and absent containers.  Absent
// containers are kept only if they end up holding something.
func fillDefaults(n *Node) {
	for _, s := range n.Schema.Children() {
		if !s.Access.Readable() {
			continue
		}
		existing := n.Children[s.Name]
		switch s.Kind {
		case schema.Leaf:
			if existing == nil && s.Default != "" {
				n.child(s).Value = s.Default
				n.Children[s.Name].Default = true
			}
		case schema.Container:
			if existing != nil {
				fillDefaults(existing)
				continue
			}
			c := &Node{Schema: s}
			fillDefaults(c)
			if !c.IsEmpty() {
				if n.Children == nil {
					n.Children = make(map[string]*Node)
				}
				n.Children[s.Name] = c
			}
		case schema.List:
			if existing != nil {
				for _, e := range existing.Entries {
					fillDefaults(e)
				}
			}
		}
	}
}

// trim removes stored leaves whose value equals their default.
// Returns false if n is left empty.
func trim(n *Node) bool {
	switch {
	case n.isComposite():
		for name, c := range n.Children {
			if c.Schema.IsKey() {
				continue
			}
			if !trim(c) {
				delete(n.Children, name)
			}
		}
	case n.isList():
		for _, e := range n.Entries {
			trim(e)
		}
	case n.Schema.Kind == schema.Leaf:
		if n.Schema.Default != "" && n.Value == n.Schema.Default {
			n.Value = ""
		}
	}
	return !n.IsEmpty()
}

// filterContent keeps only configuration leaves, or only state
// leaves.  Key leaves of surviving list entries are kept either way.
// Returns false if n is left empty.
func filterContent(n *Node, config bool) bool {
	switch {
	case n.isComposite():
		for name, c := range n.Children {
			if c.Schema.IsKey() {
				continue
			}
			if !filterContent(c, config) {
				delete(n.Children, name)
			}
		}
		if n.Entry && !hasNonKeys(n) {
			n.Children = nil
		}
	case n.isList():
		entries := n.Entries[:0]
		for _, e := range n.Entries {
			if filterContent(e, config) {
				entries = append(entries, e)
			}
		}
		n.Entries = entries
	default:
		if n.Schema.Config != config {
			return false
		}
	}
	return !n.IsEmpty()
}

func hasNonKeys(n *Node) bool {
	for _, c := range n.Children {
		if !c.Schema.IsKey() {
			return true
		}
	}
	return false
}

// selectFields keeps only the children of n named by sel.  Returns
// false if nothing was selected.
func selectFields(n *Node, sel Selection) bool {
	switch {
	case n.isComposite():
		selected := 0
		for name, c := range n.Children {
			sub, ok := sel.lookup(c.Schema)
			switch {
			case ok && (sub == nil || selectFields(c, sub)):
				selected++
			case n.Entry && c.Schema.IsKey():
				// entries keep their keys so they stay addressable
			default:
				delete(n.Children, name)
			}
		}
		return selected > 0
	case n.isList():
		entries := n.Entries[:0]
		for _, e := range n.Entries {
			if selectFields(e, sel) {
				entries = append(entries, e)
			}
		}
		n.Entries = entries
		return len(n.Entries) > 0
	}
	// Leaves have nothing to select beneath them
	return false
}
