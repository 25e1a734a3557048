// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package store defines the hierarchical path/value store that sits
// behind the RESTCONF gateway.
//
// A store holds string values at absolute, slash-separated paths such
// as "/test/settings/priority".  Any path may have both a value and
// children; a path whose value is the empty string does not exist.
// Every committed mutation draws a new version number from a single
// store-wide counter, and every path remembers the version and time of
// the most recent mutation at or beneath it.  This is what the gateway
// uses for ETag and Last-Modified headers.
//
// There are several implementations of this interface.  The memory
// package holds everything in process, the postgres package uses a
// PostgreSQL database, and storerpc.Client talks to a remote store
// over CBOR-RPC.  The cache and proxy packages wrap another store.
package store

import (
	"context"
	"time"
)

// Store is the top-level interface to a path/value store.
type Store interface {
	// Get returns the value at a single path.  If there is no
	// value there, returns ErrNotFound.
	Get(ctx context.Context, path string) (string, error)

	// Set writes a single value.  Setting the empty string
	// deletes the value.
	Set(ctx context.Context, path, value string) error

	// Prune deletes a path and everything beneath it.  Pruning a
	// path that does not exist is not an error.
	Prune(ctx context.Context, path string) error

	// Search returns the sorted names of the immediate children
	// of path.  A path with no children returns an empty list.
	Search(ctx context.Context, path string) ([]string, error)

	// GetTree returns every non-empty value at or beneath path,
	// along with the revision of path, read as one atomic
	// operation.
	GetTree(ctx context.Context, path string) (Snapshot, error)

	// SetTree applies a batch of changes atomically.  If any of
	// the batch's guards fail, nothing is applied and the guard's
	// error is returned.  Returns the revision the batch was
	// committed at; a batch that does not change anything
	// returns the zero revision.
	SetTree(ctx context.Context, batch Batch) (Revision, error)

	// Revision returns the revision of path.  If there is no
	// data at or beneath path, this is the zero revision.
	Revision(ctx context.Context, path string) (Revision, error)

	// Watch returns a channel that receives one Change for every
	// committed mutation at or beneath path, in commit order.
	// The channel is closed when ctx is done.  Changes are never
	// dropped or merged, and slow readers never block writers.
	Watch(ctx context.Context, path string) (<-chan Change, error)

	// Proxy delegates the subtree at path to a remote store
	// addressed by url.
	Proxy(ctx context.Context, path, url string) error

	// Unproxy removes a delegation created by Proxy.
	Unproxy(ctx context.Context, path, url string) error
}

// Value is a single path/value pair.
type Value struct {
	Path  string
	Value string
}

// Revision identifies one state of a subtree.  Version numbers are
// strictly increasing across the entire store and are never reused.
// The zero Revision means there is no data.
type Revision struct {
	Version  uint64
	Modified time.Time
}

// IsZero returns true if rev is the zero revision.
func (rev Revision) IsZero() bool {
	return rev.Version == 0
}

// Newer returns true if rev was committed after other.
func (rev Revision) Newer(other Revision) bool {
	return rev.Version > other.Version
}

// Snapshot is the result of a GetTree call.
type Snapshot struct {
	// Values holds every non-empty value at or beneath the
	// requested path, sorted by path.
	Values []Value

	// Revision is the revision of the requested path as of the
	// time Values was read.
	Revision Revision
}

// Guard is a precondition on a batch write.  Check is called with the
// current revision of Path while the store holds whatever lock or
// transaction the batch will be applied under; if it returns an error
// the batch is abandoned.
type Guard struct {
	Path  string
	Check func(Revision) error
}

// Batch is a set of changes applied together by SetTree.  Prunes are
// applied first, then values in order.  A value of "" deletes.
type Batch struct {
	Prune  []string
	Values []Value
	Guards []Guard
}

// Empty returns true if the batch would not do anything.
func (b Batch) Empty() bool {
	return len(b.Prune) == 0 && len(b.Values) == 0
}

// Change describes one committed mutation, as delivered by Watch.
type Change struct {
	// Values lists every leaf the mutation changed, in order.
	// Deleted leaves carry an empty value.
	Values []Value

	// Revision is the revision the mutation was committed at.
	Revision Revision
}
