// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides revision-checked caching of store subtrees.
// The cache wraps some other store.  Every method but GetTree passes
// straight through.  GetTree first asks the underlying store for the
// revision of the path; if a cached snapshot of the path carries that
// same revision, nothing beneath the path has changed since it was
// read, and the cached snapshot is returned instead of reading the
// whole subtree again.
//
// This is worthwhile when revisions are much cheaper to fetch than
// subtrees, as in the postgres backend, and when the same large
// subtrees are read repeatedly.
//
// Caveats
//
// Snapshots of subtrees with no data are never cached, since every
// empty subtree has the same zero revision.
//
// Cached snapshots are shared between callers.  Callers must not
// modify the Values slice of a snapshot they get back.
package cache

import (
	"context"

	"github.com/diffeo/go-restconf/store"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultSize is the number of snapshots a cache holds if New is
// given a non-positive size.
const DefaultSize = 1024

// Lookups counts GetTree calls by whether they were served from the
// cache.  Programs that export Prometheus metrics can register it.
var Lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "restconf",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Subtree reads by cache result",
	},
	[]string{"result"},
)

type cacheStore struct {
	store.Store
	lru *lru
}

// New creates a new cache wrapping st that holds up to size
// snapshots.
func New(st store.Store, size int) store.Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &cacheStore{Store: st, lru: newLRU(size)}
}

func (c *cacheStore) GetTree(ctx context.Context, path string) (store.Snapshot, error) {
	rev, err := c.Store.Revision(ctx, path)
	if err != nil {
		return store.Snapshot{}, err
	}
	if rev.IsZero() {
		c.lru.Remove(path)
		Lookups.WithLabelValues("empty").Inc()
		return c.Store.GetTree(ctx, path)
	}

	valid := func(item entry) bool {
		return item.snap.Revision.Version == rev.Version
	}
	fetch := func(path string) (entry, error) {
		snap, err := c.Store.GetTree(ctx, path)
		return entry{path: path, snap: snap}, err
	}
	item, hit, err := c.lru.Get(path, valid, fetch)
	if err != nil {
		return store.Snapshot{}, err
	}
	if hit {
		Lookups.WithLabelValues("hit").Inc()
	} else {
		Lookups.WithLabelValues("miss").Inc()
	}
	return item.snap, nil
}
