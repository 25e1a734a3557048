// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

import (
	"sort"

	"github.com/diffeo/go-restconf/store"
)

// Index is an immutable collection of loaded modules and their
// schema trees.
type Index struct {
	// Modules lists every loaded module, sorted by name.
	Modules []*Module

	// DefaultModule is used to resolve top-level names with no
	// prefix, or nil.
	DefaultModule *Module

	// ContentID changes every time a new index is loaded.
	ContentID string

	byName      map[string]*Module
	byPrefix    map[string]*Module
	byNamespace map[string]*Module
	roots       []*Node
	operations  []*Node
}

// Module returns the module with a name, or nil.
func (idx *Index) Module(name string) *Module {
	return idx.byName[name]
}

// ModuleByNamespace returns the module with a namespace URI, or nil.
func (idx *Index) ModuleByNamespace(ns string) *Module {
	return idx.byNamespace[ns]
}

// Resolve maps a namespace prefix to a module.  An empty prefix
// resolves to the context module, or to the default module if there
// is no context; this may be nil.  Otherwise the prefix must match a
// module name or a module's declared prefix exactly.
func (idx *Index) Resolve(prefix string, context *Module) (*Module, error) {
	if prefix == "" {
		if context != nil {
			return context, nil
		}
		return idx.DefaultModule, nil
	}
	if m := idx.byName[prefix]; m != nil {
		return m, nil
	}
	if m := idx.byPrefix[prefix]; m != nil {
		return m, nil
	}
	return nil, ErrUnknownNamespace{Prefix: prefix}
}

// Roots returns every top-level data node, sorted by name.
func (idx *Index) Roots() []*Node {
	return idx.roots
}

// Root finds a top-level data node.  If m is non-nil the node must
// belong to it.  Otherwise the default module is tried first, and then
// any module with a unique node of that name.
func (idx *Index) Root(m *Module, name string) *Node {
	var matches []*Node
	for _, root := range idx.roots {
		if root.Name == name {
			matches = append(matches, root)
		}
	}
	for _, root := range matches {
		if m != nil && root.Module == m {
			return root
		}
		if m == nil && idx.DefaultModule != nil && root.Module == idx.DefaultModule {
			return root
		}
	}
	// Without a prefix, only an unambiguous name will do
	if m == nil && len(matches) == 1 {
		return matches[0]
	}
	return nil
}

// Operations returns every RPC, sorted by qualified name.
func (idx *Index) Operations() []*Node {
	return idx.operations
}

// Operation finds an RPC by module and name.
func (idx *Index) Operation(m *Module, name string) *Node {
	for _, op := range idx.operations {
		if op.Name == name && (m == nil || op.Module == m) {
			return op
		}
	}
	return nil
}

// RootPath returns the store path of a top-level node.
func (idx *Index) RootPath(root *Node) string {
	return store.Join(root.Module.PathPrefix, root.Name)
}

func (idx *Index) addModule(m *Module) {
	idx.Modules = append(idx.Modules, m)
	idx.byName[m.Name] = m
	if m.Prefix != "" {
		if _, taken := idx.byPrefix[m.Prefix]; !taken {
			idx.byPrefix[m.Prefix] = m
		}
	}
	if m.Namespace != "" {
		idx.byNamespace[m.Namespace] = m
	}
}

func (idx *Index) sort() {
	sort.Slice(idx.Modules, func(i, j int) bool {
		return idx.Modules[i].Name < idx.Modules[j].Name
	})
	sort.SliceStable(idx.roots, func(i, j int) bool {
		return idx.roots[i].QualifiedName() < idx.roots[j].QualifiedName()
	})
	sort.SliceStable(idx.operations, func(i, j int) bool {
		return idx.operations[i].QualifiedName() < idx.operations[j].QualifiedName()
	})
}
