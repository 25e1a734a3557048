// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// the path/value store.  There is no persistence on this store, nor is
// there any automatic sharing.  The entire system is behind a single
// global lock to protect against concurrent updates; in some cases
// this can limit performance in the name of correctness.
//
// This is mostly intended as a simple reference implementation of the
// store that can be used for testing, including in-process testing of
// the gateway.  It is generally tuned for correctness, not performance
// or scalability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restconf/store"
)

// New creates a new store that operates purely in memory.
func New() store.Store {
	return NewWithClock(clock.New())
}

// NewWithClock creates a new in-memory store using an explicit time
// source.  Most application code should call New(); this entry point
// is intended for tests that need to inject a mock time source.
func NewWithClock(clk clock.Clock) store.Store {
	return &memStore{
		root:  newNode(),
		clock: clk,
	}
}

type memStore struct {
	sem      sync.Mutex
	root     *node
	version  uint64
	clock    clock.Clock
	notifier store.Notifier
}

// node is one position in the tree.  A node exists only while it has
// a value or children.  rev is the revision of the latest change at or
// beneath it.
type node struct {
	value    string
	children map[string]*node
	rev      store.Revision
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// globalLock locks the store.  Pair this with globalUnlock, as
//
//     s.globalLock()
//     defer s.globalUnlock()
func (s *memStore) globalLock() {
	s.sem.Lock()
}

func (s *memStore) globalUnlock() {
	s.sem.Unlock()
}

// lookup finds the node at path, or returns nil.
func (s *memStore) lookup(path string) *node {
	n := s.root
	for _, seg := range store.Split(path) {
		n = n.children[seg]
		if n == nil {
			return nil
		}
	}
	return n
}

func (s *memStore) Get(ctx context.Context, path string) (string, error) {
	if err := store.CheckPath(path); err != nil {
		return "", err
	}
	s.globalLock()
	defer s.globalUnlock()

	n := s.lookup(path)
	if n == nil || n.value == "" {
		return "", store.ErrNotFound
	}
	return n.value, nil
}

func (s *memStore) Set(ctx context.Context, path, value string) error {
	_, err := s.SetTree(ctx, store.Batch{
		Values: []store.Value{{Path: path, Value: value}},
	})
	return err
}

func (s *memStore) Prune(ctx context.Context, path string) error {
	_, err := s.SetTree(ctx, store.Batch{Prune: []string{path}})
	return err
}

func (s *memStore) Search(ctx context.Context, path string) ([]string, error) {
	if err := store.CheckPath(path); err != nil {
		return nil, err
	}
	s.globalLock()
	defer s.globalUnlock()

	n := s.lookup(path)
	if n == nil {
		return []string{}, nil
	}
	return n.sortedChildren(), nil
}

func (s *memStore) GetTree(ctx context.Context, path string) (store.Snapshot, error) {
	if err := store.CheckPath(path); err != nil {
		return store.Snapshot{}, err
	}
	s.globalLock()
	defer s.globalUnlock()

	var snap store.Snapshot
	if n := s.lookup(path); n != nil {
		n.collect(path, &snap.Values)
		snap.Revision = n.rev
	}
	return snap, nil
}

func (s *memStore) Revision(ctx context.Context, path string) (store.Revision, error) {
	if err := store.CheckPath(path); err != nil {
		return store.Revision{}, err
	}
	s.globalLock()
	defer s.globalUnlock()

	if n := s.lookup(path); n != nil {
		return n.rev, nil
	}
	return store.Revision{}, nil
}

func (s *memStore) Watch(ctx context.Context, path string) (<-chan store.Change, error) {
	if err := store.CheckPath(path); err != nil {
		return nil, err
	}
	return s.notifier.Subscribe(ctx, path), nil
}

func (s *memStore) Proxy(ctx context.Context, path, url string) error {
	return store.ErrNotSupported
}

func (s *memStore) Unproxy(ctx context.Context, path, url string) error {
	return store.ErrNotSupported
}

func (n *node) sortedChildren() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// collect appends every non-empty value at or under n, in path order.
func (n *node) collect(path string, out *[]store.Value) {
	if n.value != "" {
		*out = append(*out, store.Value{Path: path, Value: n.value})
	}
	for _, name := range n.sortedChildren() {
		n.children[name].collect(store.Join(path, name), out)
	}
}
