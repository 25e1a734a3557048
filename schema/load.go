// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/openconfig/goyang/pkg/yang"
	"github.com/sirupsen/logrus"
)

// Options says what to load.
type Options struct {
	// Files lists YANG files to load.
	Files []string

	// Dirs lists directories; every *.yang file in each is
	// loaded.
	Dirs []string

	// Sources maps a file name to YANG source text, for modules
	// compiled into the program.
	Sources map[string]string

	// DefaultModule names the module used for unprefixed
	// top-level names.
	DefaultModule string

	// PathPrefixes maps a module name to the store path its
	// top-level nodes live under.
	PathPrefixes map[string]string
}

var contentID uint64

// Load parses and indexes YANG modules.
func Load(opts Options) (*Index, error) {
	ms := yang.NewModules()

	files := append([]string(nil), opts.Files...)
	for _, dir := range opts.Dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.yang"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	for _, file := range files {
		if err := ms.Read(file); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(opts.Sources))
	for name := range opts.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ms.Parse(opts.Sources[name], name); err != nil {
			return nil, err
		}
	}

	if errs := ms.Process(); len(errs) > 0 {
		for _, err := range errs {
			logrus.WithField("err", err).Warn("YANG processing error")
		}
		return nil, fmt.Errorf("YANG loading failed with %d errors: %v", len(errs), errs[0])
	}

	idx := &Index{
		ContentID:   strconv.FormatUint(atomic.AddUint64(&contentID, 1), 10),
		byName:      make(map[string]*Module),
		byPrefix:    make(map[string]*Module),
		byNamespace: make(map[string]*Module),
	}

	// ms.Modules has both "name" and "name@revision" keys
	var mods []*yang.Module
	seen := make(map[*yang.Module]bool)
	for key, mod := range ms.Modules {
		if strings.Contains(key, "@") || seen[mod] {
			continue
		}
		seen[mod] = true
		mods = append(mods, mod)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })

	for _, mod := range mods {
		m := &Module{Name: mod.Name, PathPrefix: "/"}
		if mod.Prefix != nil {
			m.Prefix = mod.Prefix.Name
		}
		if mod.Namespace != nil {
			m.Namespace = mod.Namespace.Name
		}
		for _, rev := range mod.Revision {
			if rev.Name > m.Revision {
				m.Revision = rev.Name
			}
		}
		if prefix, ok := opts.PathPrefixes[m.Name]; ok && prefix != "" {
			m.PathPrefix = prefix
		}
		idx.addModule(m)
	}
	if opts.DefaultModule != "" {
		idx.DefaultModule = idx.byName[opts.DefaultModule]
		if idx.DefaultModule == nil {
			return nil, fmt.Errorf("default module %q is not loaded", opts.DefaultModule)
		}
	}

	b := builder{idx: idx}
	for _, mod := range mods {
		m := idx.byName[mod.Name]
		entry := yang.ToEntry(mod)
		for _, name := range sortedEntryNames(entry) {
			child := entry.Dir[name]
			switch entryKind(child) {
			case "rpc":
				idx.operations = append(idx.operations, b.operation(child, m, nil))
			case "notification", "":
				continue
			default:
				for _, root := range b.nodes(child, m, nil, true) {
					idx.roots = append(idx.roots, root)
				}
			}
		}
	}
	idx.sort()
	return idx, nil
}

// builder converts goyang entries into schema nodes.
type builder struct {
	idx *Index
}

func sortedEntryNames(e *yang.Entry) []string {
	names := make([]string, 0, len(e.Dir))
	for name := range e.Dir {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entryKind returns the YANG keyword that produced an entry.
func entryKind(e *yang.Entry) string {
	if e.Node == nil {
		return ""
	}
	return e.Node.Kind()
}

// moduleOf finds the module that defines an entry, falling back to
// the enclosing module.
func (b builder) moduleOf(e *yang.Entry, context *Module) *Module {
	if e.Prefix != nil {
		if m := b.idx.byPrefix[e.Prefix.Name]; m != nil {
			return m
		}
	}
	return context
}

// nodes converts one entry.  Choices and cases do not appear in data,
// so they are replaced by their children.
func (b builder) nodes(e *yang.Entry, context *Module, parent *Node, config bool) []*Node {
	switch {
	case e.IsChoice(), e.IsCase():
		var out []*Node
		for _, name := range sortedEntryNames(e) {
			out = append(out, b.nodes(e.Dir[name], context, parent, config)...)
		}
		return out
	}
	switch entryKind(e) {
	case "notification", "anydata", "anyxml", "":
		return nil
	case "action":
		return []*Node{b.operation(e, b.moduleOf(e, context), parent)}
	}

	n := &Node{
		Name:   e.Name,
		Module: b.moduleOf(e, context),
		Parent: parent,
		Config: config,
	}
	switch e.Config {
	case yang.TSFalse:
		n.Config = false
	case yang.TSTrue:
		n.Config = true
	}
	n.Access = access(e, parent, n.Config)

	switch {
	case e.IsLeaf():
		n.Kind = Leaf
	case e.IsLeafList():
		n.Kind = LeafList
	case e.IsList():
		n.Kind = List
		n.Keys = strings.Fields(e.Key)
	default:
		n.Kind = Container
	}
	if n.Kind == Leaf || n.Kind == LeafList {
		n.Type = newType(e.Type)
		n.Default = e.Default
		if n.Default == "" && e.Type != nil {
			n.Default = e.Type.Default
		}
		if n.Default != "" {
			// Defaults are stored like any other value
			if raw, err := n.Type.Decode(n.Name, n.Default); err == nil {
				n.Default = raw
			}
		}
	}
	for _, name := range sortedEntryNames(e) {
		for _, child := range b.nodes(e.Dir[name], n.Module, n, n.Config) {
			n.addChild(child)
		}
	}
	return []*Node{n}
}

// operation converts an rpc or action entry.
func (b builder) operation(e *yang.Entry, m *Module, parent *Node) *Node {
	op := &Node{
		Name:   e.Name,
		Module: m,
		Kind:   RPC,
		Parent: parent,
		Config: true,
	}
	if parent != nil {
		op.Kind = Action
		op.Access = parent.Access
	}
	if e.RPC != nil {
		if e.RPC.Input != nil {
			op.Input = b.params(e.RPC.Input, m, op)
		}
		if e.RPC.Output != nil {
			op.Output = b.params(e.RPC.Output, m, op)
		}
	}
	return op
}

// params converts an operation's input or output.
func (b builder) params(e *yang.Entry, m *Module, op *Node) *Node {
	n := &Node{
		Name:   e.Name,
		Module: m,
		Kind:   Container,
		Parent: op,
		Config: true,
	}
	for _, name := range sortedEntryNames(e) {
		for _, child := range b.nodes(e.Dir[name], m, n, true) {
			n.addChild(child)
		}
	}
	return n
}

// access works out client access from config-ness, extension
// statements named hidden, write-only or read-only (in any module),
// and the parent's access.
func access(e *yang.Entry, parent *Node, config bool) Access {
	a := ReadWrite
	if !config {
		a = ReadOnly
	}
	if parent != nil && (parent.Access == Hidden || parent.Access == WriteOnly) {
		a = parent.Access
	}
	for _, ext := range e.Exts {
		keyword := ext.Keyword
		if colon := strings.IndexByte(keyword, ':'); colon >= 0 {
			keyword = keyword[colon+1:]
		}
		switch keyword {
		case "hidden":
			a = Hidden
		case "write-only":
			if a != Hidden {
				a = WriteOnly
			}
		case "read-only":
			if a == ReadWrite {
				a = ReadOnly
			}
		}
	}
	return a
}
