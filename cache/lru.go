// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU cache of subtree snapshots, keyed by
// store path.

import (
	"container/list"
	"sync"

	"github.com/diffeo/go-restconf/store"
)

// entry is one cached snapshot.
type entry struct {
	path string
	snap store.Snapshot
}

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type lru struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an item from the cache if it is present and the valid
// function accepts it.  If it is not, calls the fetch function, and if that
// succeeds, saves the item and returns it.  This should return an
// error only if the item is not usable and the fetch function returns
// an error.
func (lru *lru) Get(path string, valid func(entry) bool, fetch func(string) (entry, error)) (entry, bool, error) {
	// This sadly happens under a writer lock, since we need to move
	// the item to the front of the list if it is present
	lru.lock.Lock()
	if element, present := lru.index[path]; present {
		item := element.Value.(entry)
		if valid(item) {
			lru.evictList.MoveToBack(element)
			lru.lock.Unlock()
			return item, true, nil
		}
	}
	lru.lock.Unlock()

	// Fetch without holding the lock; another caller may race us
	// to Put, which is harmless
	item, err := fetch(path)
	if err != nil {
		return item, false, err
	}
	lru.Put(item)
	return item, false, nil
}

// Peek looks for an item in the cache and returns it if present.
// This runs under a reader lock, and so can run concurrently with
// itself but not calls to Put or Get.  This does not affect the
// recency of the item.
func (lru *lru) Peek(path string) (entry, bool) {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[path]; present {
		return element.Value.(entry), true
	}
	return entry{}, false
}

// Put adds an item to the LRU cache, possibly evicting something.
func (lru *lru) Put(item entry) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Are we just updating an existing item?
	if element, present := lru.index[item.path]; present {
		element.Value = item
		lru.evictList.MoveToBack(element)
		return
	}

	// Otherwise add it
	lru.add(item)
}

// Remove takes an item out of the cache.  It does nothing if that
// path does not exist.
func (lru *lru) Remove(path string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[path]; present {
		delete(lru.index, path)
		lru.evictList.Remove(element)
	}
}

// Len returns the number of cached items.
func (lru *lru) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}

// add is an internal helper, running under the write lock, that adds a
// new item to the cache.  The item is known to not already exist.
func (lru *lru) add(item entry) {
	element := lru.evictList.PushBack(item)
	lru.index[item.path] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		item := head.Value.(entry)
		delete(lru.index, item.path)
		lru.evictList.Remove(head)
	}
}
