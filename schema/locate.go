// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

import (
	"strings"

	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/uripath"
)

// Location is a request path resolved against the schema.
type Location struct {
	// Node is the target node.  For a selected list entry this
	// is the list node.
	Node *Node

	// StorePath is where the target lives in the store.
	StorePath string

	// Entry is true if a single list entry is selected; Keys then
	// holds its key values.
	Entry bool
	Keys  []string

	// Member is true if a single leaf-list value is selected.
	Member bool

	// Qualified is true if the request named the first node with
	// an explicit module prefix.
	Qualified bool

	// Operation is set if the path ends in an action (or, for the
	// operations resource, is an RPC).  Node and StorePath then
	// describe the data node the action is bound to.
	Operation *Node
}

// EntryKey builds the store path segment of a list entry.  Each key
// value is escaped so that "/", "," and "%" cannot be confused with
// separators, and multiple keys are joined with ",".
func EntryKey(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = keyEscaper.Replace(k)
	}
	return strings.Join(parts, ",")
}

// SplitEntryKey is the inverse of EntryKey.
func SplitEntryKey(segment string) []string {
	parts := strings.Split(segment, ",")
	for i, p := range parts {
		parts[i] = keyUnescaper.Replace(p)
	}
	return parts
}

var keyEscaper = strings.NewReplacer("%", "%25", "/", "%2F", ",", "%2C")
var keyUnescaper = strings.NewReplacer("%2F", "/", "%2C", ",", "%25", "%")

// LeafListMember builds the store path segment of a leaf-list value.
func LeafListMember(value string) string {
	return keyEscaper.Replace(value)
}

// Locate resolves a parsed request path.  If restconf is true, list
// entries are selected with key predicates and must be selected
// before descending into a list; otherwise list entries and leaf-list
// values are ordinary path segments.
func (idx *Index) Locate(path uripath.Path, restconf bool) (Location, error) {
	var loc Location
	if len(path) == 0 {
		return loc, ErrNoSuchNode{Path: "/"}
	}

	first := path[0]
	m, err := idx.Resolve(first.Prefix, nil)
	if err != nil {
		return loc, err
	}
	node := idx.Root(m, first.Name)
	if node == nil {
		return loc, ErrNoSuchNode{Path: path.String()}
	}
	loc.Node = node
	loc.StorePath = idx.RootPath(node)
	loc.Qualified = first.Prefix != ""
	if err := loc.selectKeys(first); err != nil {
		return loc, err
	}

	for i := 1; i < len(path); i++ {
		seg := path[i]
		node := loc.Node

		if loc.Member || node.Kind == Leaf {
			return loc, ErrNoSuchNode{Path: path.String()}
		}
		if !restconf && !loc.Entry && node.Kind == List {
			keys := []string{seg.Raw}
			if len(node.Keys) > 1 {
				keys = strings.Split(seg.Raw, ",")
			}
			if len(keys) != len(node.Keys) {
				return loc, ErrBadKeys{Name: node.Name}
			}
			loc.Entry = true
			loc.Keys = keys
			loc.StorePath = store.Join(loc.StorePath, EntryKey(keys))
			continue
		}
		if !restconf && node.Kind == LeafList {
			loc.Member = true
			loc.StorePath = store.Join(loc.StorePath, LeafListMember(seg.Raw))
			continue
		}
		if node.Kind == List && !loc.Entry {
			return loc, ErrBadKeys{Name: node.Name}
		}
		if node.Kind == LeafList {
			return loc, ErrNoSuchNode{Path: path.String()}
		}

		var child *Node
		if seg.Prefix == "" {
			child = node.Child(seg.Name)
		} else {
			cm, err := idx.Resolve(seg.Prefix, node.Module)
			if err != nil {
				return loc, err
			}
			child = node.ChildIn(cm, seg.Name)
		}
		if child == nil {
			return loc, ErrNoSuchNode{Path: path.String()}
		}
		if child.IsOperation() {
			if i != len(path)-1 {
				return loc, ErrNoSuchNode{Path: path.String()}
			}
			loc.Operation = child
			return loc, nil
		}

		loc.Node = child
		loc.Entry = false
		loc.Keys = nil
		loc.StorePath = store.Join(loc.StorePath, child.Name)
		if err := loc.selectKeys(seg); err != nil {
			return loc, err
		}
	}
	return loc, nil
}

// selectKeys applies a RESTCONF key predicate to the current node.
func (loc *Location) selectKeys(seg uripath.Segment) error {
	if !seg.HasKeys {
		return nil
	}
	node := loc.Node
	if node.Kind == LeafList && len(seg.Keys) == 1 {
		loc.Member = true
		loc.StorePath = store.Join(loc.StorePath, LeafListMember(seg.Keys[0]))
		return nil
	}
	if node.Kind != List || len(seg.Keys) != len(node.Keys) {
		return ErrBadKeys{Name: node.Name}
	}
	loc.Entry = true
	loc.Keys = seg.Keys
	loc.StorePath = store.Join(loc.StorePath, EntryKey(seg.Keys))
	return nil
}

// ListPath returns the store path of the list a selected entry
// belongs to.
func (loc Location) ListPath() string {
	if loc.Entry || loc.Member {
		return store.Parent(loc.StorePath)
	}
	return loc.StorePath
}
