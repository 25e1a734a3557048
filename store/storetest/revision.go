// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storetest

import (
	"errors"
	"time"

	"github.com/diffeo/go-restconf/store"
)

// TestRevisionBubblesUp checks that a change to a leaf changes the
// revision of every ancestor but not of siblings.
func (s *Suite) TestRevisionBubblesUp() {
	s.set(s.Path("settings", "priority"), "1")
	s.set(s.Path("state", "counter"), "1")

	settings := s.revision(s.Path("settings"))
	state := s.revision(s.Path("state"))
	root := s.revision(s.root)
	s.False(settings.IsZero())
	s.True(state.Newer(settings))
	s.Equal(state, root)

	s.set(s.Path("state", "counter"), "2")
	s.Equal(settings, s.revision(s.Path("settings")))
	s.True(s.revision(s.Path("state")).Newer(state))
	s.True(s.revision(s.root).Newer(root))
}

// TestRevisionModified checks that the modification time comes from
// the store's clock.
func (s *Suite) TestRevisionModified() {
	s.Clock.Add(time.Hour)
	s.set(s.Path("leaf"), "x")
	first := s.revision(s.Path("leaf"))
	s.True(first.Modified.Equal(s.Clock.Now()), "%v != %v", first.Modified, s.Clock.Now())

	s.Clock.Add(time.Minute)
	s.set(s.Path("leaf"), "y")
	second := s.revision(s.Path("leaf"))
	s.True(second.Modified.Equal(s.Clock.Now()))
	s.True(second.Newer(first))
}

// TestRevisionIdempotent checks that rewriting the same value does not
// create a new revision.
func (s *Suite) TestRevisionIdempotent() {
	s.set(s.Path("leaf"), "x")
	before := s.revision(s.Path("leaf"))
	s.set(s.Path("leaf"), "x")
	s.Equal(before, s.revision(s.Path("leaf")))

	rev, err := s.Store.SetTree(s.ctx, store.Batch{
		Prune:  []string{s.Path("leaf")},
		Values: []store.Value{{Path: s.Path("leaf"), Value: "x"}},
	})
	if s.NoError(err) {
		s.True(rev.IsZero())
	}
	s.Equal(before, s.revision(s.Path("leaf")))
}

// TestRevisionAfterPrune checks that a pruned subtree has the zero
// revision, that its parent moves forward, and that a later write
// never reuses a version.
func (s *Suite) TestRevisionAfterPrune() {
	s.set(s.Path("a", "b"), "1")
	s.set(s.Path("a", "c"), "1")
	before := s.revision(s.Path("a", "b"))
	parent := s.revision(s.Path("a"))

	s.Require().NoError(s.Store.Prune(s.ctx, s.Path("a", "b")))
	s.True(s.revision(s.Path("a", "b")).IsZero())
	s.True(s.revision(s.Path("a")).Newer(parent))

	s.set(s.Path("a", "b"), "1")
	s.True(s.revision(s.Path("a", "b")).Newer(before))
}

// TestSetTree checks that a batch applies prunes and values together
// under a single revision.
func (s *Suite) TestSetTree() {
	s.set(s.Path("animal", "cat", "name"), "cat")
	s.set(s.Path("animal", "cat", "colour"), "black")
	s.set(s.Path("animal", "dog", "name"), "dog")

	rev, err := s.Store.SetTree(s.ctx, store.Batch{
		Prune: []string{s.Path("animal", "cat")},
		Values: []store.Value{
			{Path: s.Path("animal", "cat", "name"), Value: "cat"},
			{Path: s.Path("animal", "cat", "type"), Value: "big"},
			{Path: s.Path("animal", "dog", "name"), Value: ""},
		},
	})
	s.Require().NoError(err)
	s.False(rev.IsZero())
	s.Equal(rev, s.revision(s.Path("animal")))
	s.Equal(rev, s.revision(s.Path("animal", "cat")))

	snap, err := s.Store.GetTree(s.ctx, s.Path("animal"))
	if s.NoError(err) {
		s.Equal([]store.Value{
			{Path: s.Path("animal", "cat", "name"), Value: "cat"},
			{Path: s.Path("animal", "cat", "type"), Value: "big"},
		}, snap.Values)
	}
}

// TestSetTreeGuard checks that a failing guard prevents the whole
// batch, and that guards see the current revision.
func (s *Suite) TestSetTreeGuard() {
	s.set(s.Path("settings", "priority"), "1")
	current := s.revision(s.Path("settings"))
	errStale := errors.New("stale")

	var seen store.Revision
	_, err := s.Store.SetTree(s.ctx, store.Batch{
		Values: []store.Value{
			{Path: s.Path("settings", "priority"), Value: "2"},
			{Path: s.Path("settings", "debug"), Value: "1"},
		},
		Guards: []store.Guard{
			{
				Path: s.Path("settings"),
				Check: func(rev store.Revision) error {
					seen = rev
					return errStale
				},
			},
		},
	})
	s.Equal(errStale, err)
	s.Equal(current, seen)

	value, err := s.Store.Get(s.ctx, s.Path("settings", "priority"))
	if s.NoError(err) {
		s.Equal("1", value)
	}
	_, err = s.Store.Get(s.ctx, s.Path("settings", "debug"))
	s.Equal(store.ErrNotFound, err)
	s.Equal(current, s.revision(s.Path("settings")))

	// A guard on an absent path sees the zero revision
	_, err = s.Store.SetTree(s.ctx, store.Batch{
		Values: []store.Value{{Path: s.Path("new"), Value: "x"}},
		Guards: []store.Guard{
			{
				Path: s.Path("new"),
				Check: func(rev store.Revision) error {
					if !rev.IsZero() {
						return errStale
					}
					return nil
				},
			},
		},
	})
	s.NoError(err)
}
