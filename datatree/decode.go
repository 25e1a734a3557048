// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
)

// ErrBadDocument is returned when a request document does not fit the
// schema.
type ErrBadDocument struct {
	Reason string
}

func (e ErrBadDocument) Error() string {
	return "bad request document: " + e.Reason
}

func badDocument(format string, args ...interface{}) error {
	return ErrBadDocument{Reason: fmt.Sprintf(format, args...)}
}

// Write is a decoded request document.
type Write struct {
	// Node is the schema node the document describes.
	Node *schema.Node

	// Path is the store path of that node.  For a document
	// describing a single list entry this is the entry's path.
	Path string

	// Entry is true if the document describes a single list
	// entry, whose key values are then in Keys.
	Entry bool
	Keys  []string

	// Values holds every leaf the document sets, in document
	// order with object members sorted.  Empty values delete.
	Values []store.Value
}

// DecodeTarget decodes a RESTCONF document replacing or merging into
// the target of loc.  The document must have a single member naming
// the target; a list entry target must be given as a one-element
// list whose keys match.
func DecodeTarget(idx *schema.Index, loc schema.Location, doc map[string]interface{}) (Write, error) {
	w := Write{Node: loc.Node, Path: loc.StorePath, Entry: loc.Entry, Keys: loc.Keys}
	var parentModule *schema.Module
	if loc.Node.Parent != nil {
		parentModule = loc.Node.Parent.Module
	}
	name, value, err := single(doc)
	if err != nil {
		return w, err
	}
	if err := matchName(idx, name, loc.Node, parentModule); err != nil {
		return w, err
	}

	d := decoder{idx: idx}
	switch {
	case loc.Entry:
		entries, err := entryList(value)
		if err != nil {
			return w, err
		}
		if len(entries) != 1 {
			return w, badDocument("expected a single %q entry", loc.Node.Name)
		}
		keys, err := d.entryKeys(loc.Node, entries[0], "")
		if err != nil {
			return w, err
		}
		if !equalKeys(keys, loc.Keys) {
			return w, badDocument("key values of %q do not match the request", loc.Node.Name)
		}
		err = d.entry(loc.Node, loc.StorePath, keys, entries[0])
		w.Values = d.values
		return w, err
	case loc.Member:
		items, err := leafListItems(value)
		if err != nil {
			return w, err
		}
		if len(items) != 1 {
			return w, badDocument("expected a single %q value", loc.Node.Name)
		}
		raw, err := loc.Node.Decode(items[0])
		if err != nil {
			return w, err
		}
		if schema.LeafListMember(raw) != store.Base(loc.StorePath) {
			return w, badDocument("value of %q does not match the request", loc.Node.Name)
		}
		w.Values = []store.Value{{Path: loc.StorePath, Value: raw}}
		return w, nil
	}
	err = d.node(loc.Node, loc.StorePath, value, true)
	w.Values = d.values
	return w, err
}

// DecodeChild decodes a RESTCONF document creating a child of the
// target of loc.  If loc.Node is nil the target is the datastore
// root.  A list child must be given as a one-element list, and
// describes the entry it creates.  A list target may also be given a
// document naming the list itself.
func DecodeChild(idx *schema.Index, loc schema.Location, doc map[string]interface{}) (Write, error) {
	var w Write
	name, value, err := single(doc)
	if err != nil {
		return w, err
	}

	var child *schema.Node
	var path string
	switch {
	case loc.Node == nil:
		prefix, local := splitName(name)
		m, err := idx.Resolve(prefix, nil)
		if err != nil {
			return w, err
		}
		child = idx.Root(m, local)
		if child == nil {
			return w, badDocument("unknown top-level node %q", name)
		}
		path = idx.RootPath(child)
	case loc.Node.Kind == schema.List && !loc.Entry:
		if err := matchName(idx, name, loc.Node, nil); err != nil {
			return w, err
		}
		child = loc.Node
		path = loc.StorePath
	default:
		child, err = childByName(idx, loc.Node, name)
		if err != nil {
			return w, err
		}
		path = store.Join(loc.StorePath, child.Name)
	}
	if !child.Access.Writable() {
		return w, schema.ErrAccessDenied{Path: path}
	}

	d := decoder{idx: idx}
	w.Node = child
	w.Path = path
	if child.Kind == schema.List {
		entries, err := entryList(value)
		if err != nil {
			return w, err
		}
		if len(entries) != 1 {
			return w, badDocument("expected a single %q entry", child.Name)
		}
		keys, err := d.entryKeys(child, entries[0], "")
		if err != nil {
			return w, err
		}
		w.Entry = true
		w.Keys = keys
		w.Path = store.Join(path, schema.EntryKey(keys))
		err = d.entry(child, w.Path, keys, entries[0])
		w.Values = d.values
		return w, err
	}
	err = d.node(child, path, value, true)
	w.Values = d.values
	return w, err
}

// DecodeContent decodes a plain API document.  The document is the
// content of the target of loc rather than a wrapper naming it: the
// members of a container, the entries of a list keyed by entry name,
// or a scalar for a leaf.  A leaf may also be given as an object with
// a single member naming it.
func DecodeContent(idx *schema.Index, loc schema.Location, doc interface{}) (Write, error) {
	w := Write{Node: loc.Node, Path: loc.StorePath, Entry: loc.Entry, Keys: loc.Keys}
	d := decoder{idx: idx}
	if obj, ok := doc.(map[string]interface{}); ok && (loc.Node.Kind == schema.Leaf || loc.Member) {
		name, value, err := single(obj)
		if err != nil {
			return w, err
		}
		if name != loc.Node.Name && name != store.Base(loc.StorePath) {
			return w, badDocument("expected %q", loc.Node.Name)
		}
		doc = value
	}
	var err error
	switch {
	case loc.Entry:
		err = d.entry(loc.Node, loc.StorePath, loc.Keys, doc)
	case loc.Member:
		var raw string
		raw, err = loc.Node.Decode(doc)
		if err == nil {
			d.add(loc.StorePath, raw)
		}
	default:
		err = d.node(loc.Node, loc.StorePath, doc, true)
	}
	w.Values = d.values
	return w, err
}

// decoder accumulates store values.
type decoder struct {
	idx    *schema.Index
	values []store.Value
}

func (d *decoder) add(path, value string) {
	d.values = append(d.values, store.Value{Path: path, Value: value})
}

// node decodes the value of a schema node at a store path.  target is
// true if the node was named by the request path rather than found
// inside the document.
func (d *decoder) node(n *schema.Node, path string, value interface{}, target bool) error {
	switch n.Access {
	case schema.Hidden:
		if target {
			return schema.ErrAccessDenied{Path: path}
		}
		return nil
	case schema.ReadOnly:
		return schema.ErrAccessDenied{Path: path}
	}

	switch n.Kind {
	case schema.Leaf:
		raw, err := n.Decode(value)
		if err != nil {
			return err
		}
		d.add(path, raw)
		return nil

	case schema.LeafList:
		items, err := leafListItems(value)
		if err != nil {
			return err
		}
		for _, item := range items {
			raw, err := n.Decode(item)
			if err != nil {
				return err
			}
			if raw == "" {
				continue
			}
			d.add(store.Join(path, schema.LeafListMember(raw)), raw)
		}
		return nil

	case schema.List:
		return d.list(n, path, value)

	case schema.Container:
		return d.members(n, path, value)
	}
	return badDocument("%q cannot be written", n.Name)
}

// members decodes the members of a container or list entry.
func (d *decoder) members(n *schema.Node, path string, value interface{}) error {
	if value == nil || value == "" {
		return nil
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		return badDocument("%q must be an object", n.Name)
	}
	for _, name := range sortedNames(obj) {
		if strings.HasPrefix(name, "@") {
			// Metadata annotations
			continue
		}
		child, err := childByName(d.idx, n, name)
		if err != nil {
			return err
		}
		if err := d.node(child, store.Join(path, child.Name), obj[name], false); err != nil {
			return err
		}
	}
	return nil
}

// list decodes the entries of a list, given either as an array of
// entries or as an object mapping entry names to entries.
func (d *decoder) list(n *schema.Node, path string, value interface{}) error {
	if obj, ok := value.(map[string]interface{}); ok && !isEntry(n, obj) {
		for _, name := range sortedNames(obj) {
			keys := strings.Split(name, ",")
			if len(n.Keys) <= 1 {
				keys = []string{name}
			}
			if len(keys) != len(n.Keys) {
				return badDocument("bad entry name %q for %q", name, n.Name)
			}
			fromDoc, err := d.entryKeys(n, obj[name], name)
			if err != nil {
				return err
			}
			if !equalKeys(fromDoc, keys) {
				return badDocument("key values of %q entry %q do not match", n.Name, name)
			}
			if err := d.entry(n, store.Join(path, schema.EntryKey(keys)), keys, obj[name]); err != nil {
				return err
			}
		}
		return nil
	}

	entries, err := entryList(value)
	if err != nil {
		return err
	}
	for _, e := range entries {
		keys, err := d.entryKeys(n, e, "")
		if err != nil {
			return err
		}
		if err := d.entry(n, store.Join(path, schema.EntryKey(keys)), keys, e); err != nil {
			return err
		}
	}
	return nil
}

// entry decodes one list entry, writing its key leaves too.
func (d *decoder) entry(n *schema.Node, path string, keys []string, value interface{}) error {
	for i, key := range n.Keys {
		if i < len(keys) {
			d.add(store.Join(path, key), keys[i])
		}
	}
	if value == nil || value == "" {
		return nil
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		return badDocument("%q entries must be objects", n.Name)
	}
	rest := make(map[string]interface{}, len(obj))
	for name, v := range obj {
		_, local := splitName(name)
		if child := n.Child(local); child != nil && child.IsKey() {
			continue
		}
		rest[name] = v
	}
	return d.members(n, path, rest)
}

// entryKeys finds the key values of an entry document.  If the
// document lacks a key leaf, the key comes from name, an entry name
// from an object-form list; with no name, a missing key is an error.
func (d *decoder) entryKeys(n *schema.Node, value interface{}, name string) ([]string, error) {
	obj, _ := value.(map[string]interface{})
	var fallback []string
	if name != "" {
		fallback = []string{name}
		if len(n.Keys) > 1 {
			fallback = strings.Split(name, ",")
		}
	}
	keys := make([]string, len(n.Keys))
	for i, key := range n.Keys {
		var raw interface{}
		found := false
		for member, v := range obj {
			if _, local := splitName(member); local == key {
				raw, found = v, true
				break
			}
		}
		if !found {
			if i < len(fallback) {
				keys[i] = fallback[i]
				continue
			}
			return nil, badDocument("%q entry is missing key %q", n.Name, key)
		}
		leaf := n.Child(key)
		if leaf == nil {
			return nil, badDocument("%q has no key leaf %q", n.Name, key)
		}
		s, err := leaf.Decode(raw)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, badDocument("%q entry has an empty key %q", n.Name, key)
		}
		keys[i] = s
	}
	return keys, nil
}

// isEntry decides whether an object given for a list is a single
// entry, by checking whether it carries every key leaf.
func isEntry(n *schema.Node, obj map[string]interface{}) bool {
	if len(n.Keys) == 0 {
		return false
	}
	for _, key := range n.Keys {
		found := false
		for member, v := range obj {
			if _, local := splitName(member); local == key {
				_, composite := v.(map[string]interface{})
				found = !composite
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// single returns the only member of a document.
func single(doc map[string]interface{}) (string, interface{}, error) {
	if len(doc) != 1 {
		return "", nil, badDocument("expected exactly one top-level member, found %d", len(doc))
	}
	for name, value := range doc {
		return name, value, nil
	}
	panic("unreachable")
}

// matchName checks that a document member names node n.  An
// unqualified name is accepted if n is in the context module or has
// no context; a qualified one must name n's module.
func matchName(idx *schema.Index, name string, n *schema.Node, context *schema.Module) error {
	prefix, local := splitName(name)
	if local != n.Name {
		return badDocument("expected %q, found %q", n.Name, name)
	}
	if prefix == "" {
		return nil
	}
	m, err := idx.Resolve(prefix, context)
	if err != nil {
		return err
	}
	if m != n.Module {
		return badDocument("%q is not in module %q", n.Name, m.Name)
	}
	return nil
}

// childByName finds a child of n named by a document member.
func childByName(idx *schema.Index, n *schema.Node, name string) (*schema.Node, error) {
	prefix, local := splitName(name)
	var child *schema.Node
	if prefix == "" {
		child = n.Child(local)
	} else {
		m, err := idx.Resolve(prefix, n.Module)
		if err != nil {
			return nil, err
		}
		child = n.ChildIn(m, local)
	}
	if child == nil || child.IsOperation() {
		return nil, badDocument("%q has no child %q", n.Name, name)
	}
	return child, nil
}

func splitName(name string) (string, string) {
	if colon := strings.IndexByte(name, ':'); colon >= 0 {
		return name[:colon], name[colon+1:]
	}
	return "", name
}

func sortedNames(obj map[string]interface{}) []string {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entryList accepts an array of entries, or a single entry object.
func entryList(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		return []interface{}{v}, nil
	}
	return nil, badDocument("expected a list of entries")
}

// leafListItems accepts an array of values, or a single value.
func leafListItems(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		return nil, badDocument("expected a list of values")
	case nil:
		return nil, nil
	}
	return []interface{}{value}, nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Replaced returns the deletions a replace of the target of loc by w
// implies: every existing writable leaf or leaf-list member at or
// beneath the target that w does not set again.
func Replaced(loc schema.Location, w Write, existing []store.Value) []store.Value {
	set := make(map[string]bool, len(w.Values))
	for _, v := range w.Values {
		set[v.Path] = true
	}
	var out []store.Value
	for _, v := range existing {
		if v.Value == "" || set[v.Path] || !store.Under(v.Path, loc.StorePath) {
			continue
		}
		n := nodeAt(loc, store.Split(store.Relative(v.Path, loc.StorePath)))
		if n != nil && n.Access.Writable() {
			out = append(out, store.Value{Path: v.Path})
		}
	}
	return out
}

// nodeAt finds the schema node of a leaf value stored at segs beneath
// the target of loc, or nil if the value is not a leaf or leaf-list
// member the schema knows about.
func nodeAt(loc schema.Location, segs []string) *schema.Node {
	n := loc.Node
	entry, member := loc.Entry, loc.Member
	for _, seg := range segs {
		switch {
		case member || n.Kind == schema.Leaf:
			return nil
		case n.Kind == schema.List && !entry:
			entry = true
		case n.Kind == schema.LeafList:
			member = true
		default:
			n = n.Child(seg)
			if n == nil || n.IsOperation() {
				return nil
			}
			entry = false
		}
	}
	if n.Kind == schema.Leaf || (n.Kind == schema.LeafList && member) {
		return n
	}
	return nil
}
