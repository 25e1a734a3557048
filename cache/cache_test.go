// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache_test

import (
	"context"
	"testing"

	"github.com/diffeo/go-restconf/cache"
	"github.com/diffeo/go-restconf/memory"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic store tests through a cache.
type Suite struct {
	storetest.Suite
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Store = cache.New(memory.NewWithClock(s.Clock), 16)
}

// TestStore runs the store generic tests.
func TestStore(t *testing.T) {
	suite.Run(t, &Suite{})
}

// countingStore counts subtree reads.
type countingStore struct {
	store.Store
	reads int
}

func (c *countingStore) GetTree(ctx context.Context, path string) (store.Snapshot, error) {
	c.reads++
	return c.Store.GetTree(ctx, path)
}

type CacheAssertions struct {
	*assert.Assertions
	ctx     context.Context
	Backend *countingStore
	Store   store.Store
}

func NewCacheAssertions(t assert.TestingT) *CacheAssertions {
	backend := &countingStore{Store: memory.New()}
	return &CacheAssertions{
		assert.New(t),
		context.Background(),
		backend,
		cache.New(backend, 4),
	}
}

// GetTree reads a subtree through the cache and checks how many reads
// reached the backend so far.
func (a *CacheAssertions) GetTree(path string, reads int) store.Snapshot {
	snap, err := a.Store.GetTree(a.ctx, path)
	a.NoError(err)
	a.Equal(reads, a.Backend.reads, "backend reads after GetTree(%q)", path)
	return snap
}

// TestRevalidate checks that an unchanged subtree is served from the
// cache and a changed one is read again.
func TestRevalidate(t *testing.T) {
	a := NewCacheAssertions(t)
	a.NoError(a.Store.Set(a.ctx, "/a/b", "1"))
	a.NoError(a.Store.Set(a.ctx, "/c", "2"))

	snap := a.GetTree("/a", 1)
	a.Equal([]store.Value{{Path: "/a/b", Value: "1"}}, snap.Values)
	a.GetTree("/a", 1)

	// A change elsewhere does not invalidate /a
	a.NoError(a.Store.Set(a.ctx, "/c", "3"))
	a.GetTree("/a", 1)

	// A change beneath /a does
	a.NoError(a.Store.Set(a.ctx, "/a/b", "4"))
	snap = a.GetTree("/a", 2)
	a.Equal([]store.Value{{Path: "/a/b", Value: "4"}}, snap.Values)
	a.GetTree("/a", 2)
}

// TestEmptyNotCached checks that reads of empty subtrees always reach
// the backend.
func TestEmptyNotCached(t *testing.T) {
	a := NewCacheAssertions(t)
	snap := a.GetTree("/nothing", 1)
	a.Empty(snap.Values)
	a.GetTree("/nothing", 2)

	a.NoError(a.Store.Set(a.ctx, "/nothing/here", "x"))
	snap = a.GetTree("/nothing", 3)
	a.Len(snap.Values, 1)
	a.NoError(a.Store.Prune(a.ctx, "/nothing"))
	snap = a.GetTree("/nothing", 4)
	a.Empty(snap.Values)
}
