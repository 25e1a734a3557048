// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storetest

import (
	"github.com/diffeo/go-restconf/store"
)

// TestGetSet does a basic round trip of a single value.
func (s *Suite) TestGetSet() {
	_, err := s.Store.Get(s.ctx, s.Path("a"))
	s.Equal(store.ErrNotFound, err)

	s.set(s.Path("a"), "one")
	value, err := s.Store.Get(s.ctx, s.Path("a"))
	if s.NoError(err) {
		s.Equal("one", value)
	}

	s.set(s.Path("a"), "two")
	value, err = s.Store.Get(s.ctx, s.Path("a"))
	if s.NoError(err) {
		s.Equal("two", value)
	}
}

// TestEmptyValueDeletes checks that setting "" removes a value.
func (s *Suite) TestEmptyValueDeletes() {
	s.set(s.Path("a"), "one")
	s.set(s.Path("a"), "")
	_, err := s.Store.Get(s.ctx, s.Path("a"))
	s.Equal(store.ErrNotFound, err)
	s.True(s.revision(s.Path("a")).IsZero())
	s.True(s.revision(s.root).IsZero())
}

// TestSpecialCharacters checks that values and path segments are
// stored byte for byte.
func (s *Suite) TestSpecialCharacters() {
	path := s.Path("k:e=y;(a)%2F,b")
	s.set(path, "a value with spaces, \"quotes\" and ünïcode")
	value, err := s.Store.Get(s.ctx, path)
	if s.NoError(err) {
		s.Equal("a value with spaces, \"quotes\" and ünïcode", value)
	}
}

// TestPrune checks that Prune removes a whole subtree and nothing
// else.
func (s *Suite) TestPrune() {
	s.set(s.Path("a", "b"), "1")
	s.set(s.Path("a", "c", "d"), "2")
	s.set(s.Path("ab"), "3")
	s.set(s.Path("a"), "4")

	s.Require().NoError(s.Store.Prune(s.ctx, s.Path("a")))
	for _, path := range []string{s.Path("a"), s.Path("a", "b"), s.Path("a", "c", "d")} {
		_, err := s.Store.Get(s.ctx, path)
		s.Equal(store.ErrNotFound, err, path)
	}
	value, err := s.Store.Get(s.ctx, s.Path("ab"))
	if s.NoError(err) {
		s.Equal("3", value)
	}

	// Pruning something absent is fine
	s.NoError(s.Store.Prune(s.ctx, s.Path("nothing")))
}

// TestSearch checks that Search returns sorted immediate children.
func (s *Suite) TestSearch() {
	s.set(s.Path("animal", "dog", "name"), "dog")
	s.set(s.Path("animal", "cat", "name"), "cat")
	s.set(s.Path("animal", "mouse", "colour"), "brown")

	names, err := s.Store.Search(s.ctx, s.Path("animal"))
	if s.NoError(err) {
		s.Equal([]string{"cat", "dog", "mouse"}, names)
	}

	names, err = s.Store.Search(s.ctx, s.Path("animal", "cat", "name"))
	if s.NoError(err) {
		s.Empty(names)
	}

	names, err = s.Store.Search(s.ctx, s.Path("nothing"))
	if s.NoError(err) {
		s.Empty(names)
	}
}

// TestGetTree checks that GetTree returns every value at and under a
// path, sorted by path.
func (s *Suite) TestGetTree() {
	s.set(s.Path("state", "uptime", "days"), "5")
	s.set(s.Path("state", "uptime", "hours"), "50")
	s.set(s.Path("state", "uptime", "minutes"), "30")
	s.set(s.Path("state", "uptimes"), "x")
	s.set(s.Path("state", "uptime"), "self")

	snap, err := s.Store.GetTree(s.ctx, s.Path("state", "uptime"))
	if s.NoError(err) {
		s.Equal([]store.Value{
			{Path: s.Path("state", "uptime"), Value: "self"},
			{Path: s.Path("state", "uptime", "days"), Value: "5"},
			{Path: s.Path("state", "uptime", "hours"), Value: "50"},
			{Path: s.Path("state", "uptime", "minutes"), Value: "30"},
		}, snap.Values)
		s.Equal(s.revision(s.Path("state", "uptime")), snap.Revision)
	}

	snap, err = s.Store.GetTree(s.ctx, s.Path("nothing"))
	if s.NoError(err) {
		s.Empty(snap.Values)
		s.True(snap.Revision.IsZero())
	}
}
