// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package proxy delegates subtrees of a store to remote stores.
//
// A proxy store wraps a local store.  Proxy(path, url) mounts the
// remote store named by url at path: from then on every operation on
// path or anything beneath it goes to the remote store, with the mount
// path stripped, so "/remote/a/b" under a mount at "/remote" is "/a/b"
// remotely.  Unproxy removes the mount again.
//
// Reads of an ancestor of a mount, such as GetTree("/"), merge the
// local data with the data of every mount beneath it.  The revision of
// such a merged read is the newest of the revisions involved; remote
// stores keep their own version counters, so these are only
// comparable with each other to the extent the stores' clocks agree.
// A batch that touches more than one store is applied one store at a
// time and is not atomic across them.  Guards and watches on an
// ancestor of a mount only see the local store.
package proxy

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/storerpc"
	"github.com/sirupsen/logrus"
)

// ErrMountConflict is returned by Proxy when the path is the root, or
// is already mounted, or is above or below an existing mount.
var ErrMountConflict = errors.New("path overlaps an existing proxy mount")

// Dialer connects to the remote store named by a URL.
type Dialer func(url string) (store.Store, error)

// DialRPC is the default Dialer.  It connects to a storerpc server at
// a tcp:// or unix:// URL.
func DialRPC(url string) (store.Store, error) {
	return storerpc.DialURL(url)
}

type mount struct {
	path   string
	url    string
	remote store.Store
}

// local converts a path in the remote store to the corresponding
// path in the local namespace.
func (m *mount) local(path string) string {
	if path == store.Root {
		return m.path
	}
	return m.path + path
}

type proxyStore struct {
	local  store.Store
	dial   Dialer
	lock   sync.RWMutex
	mounts map[string]*mount
}

// New creates a proxy store over local.  If dial is nil, DialRPC is
// used.
func New(local store.Store, dial Dialer) store.Store {
	if dial == nil {
		dial = DialRPC
	}
	return &proxyStore{
		local:  local,
		dial:   dial,
		mounts: make(map[string]*mount),
	}
}

// route returns the mount that owns path and the path within the
// mount's store, or nil if path is local.
func (p *proxyStore) route(path string) (*mount, string) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for _, m := range p.mounts {
		if store.Under(path, m.path) {
			return m, store.Relative(path, m.path)
		}
	}
	return nil, path
}

// below returns every mount strictly beneath path, sorted by path.
func (p *proxyStore) below(path string) []*mount {
	p.lock.RLock()
	defer p.lock.RUnlock()
	var result []*mount
	for _, m := range p.mounts {
		if m.path != path && store.Under(m.path, path) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].path < result[j].path })
	return result
}

func (p *proxyStore) Get(ctx context.Context, path string) (string, error) {
	if m, rel := p.route(path); m != nil {
		return m.remote.Get(ctx, rel)
	}
	return p.local.Get(ctx, path)
}

func (p *proxyStore) Set(ctx context.Context, path, value string) error {
	_, err := p.SetTree(ctx, store.Batch{
		Values: []store.Value{{Path: path, Value: value}},
	})
	return err
}

func (p *proxyStore) Prune(ctx context.Context, path string) error {
	_, err := p.SetTree(ctx, store.Batch{Prune: []string{path}})
	return err
}

func (p *proxyStore) Search(ctx context.Context, path string) ([]string, error) {
	if m, rel := p.route(path); m != nil {
		return m.remote.Search(ctx, rel)
	}
	names, err := p.local.Search(ctx, path)
	if err != nil {
		return nil, err
	}
	mounts := p.below(path)
	if len(mounts) == 0 {
		return names, nil
	}
	seen := make(map[string]bool)
	for _, name := range names {
		seen[name] = true
	}
	for _, m := range mounts {
		name := store.Split(store.Relative(m.path, path))[0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *proxyStore) GetTree(ctx context.Context, path string) (store.Snapshot, error) {
	if m, rel := p.route(path); m != nil {
		snap, err := m.remote.GetTree(ctx, rel)
		if err != nil {
			return store.Snapshot{}, err
		}
		for i, v := range snap.Values {
			snap.Values[i].Path = m.local(v.Path)
		}
		return snap, nil
	}

	snap, err := p.local.GetTree(ctx, path)
	if err != nil {
		return store.Snapshot{}, err
	}
	mounts := p.below(path)
	if len(mounts) == 0 {
		return snap, nil
	}

	// Local data hidden by a mount does not show through
	values := make([]store.Value, 0, len(snap.Values))
	for _, v := range snap.Values {
		if !shadowed(v.Path, mounts) {
			values = append(values, v)
		}
	}
	for _, m := range mounts {
		remote, err := m.remote.GetTree(ctx, store.Root)
		if err != nil {
			return store.Snapshot{}, err
		}
		for _, v := range remote.Values {
			values = append(values, store.Value{Path: m.local(v.Path), Value: v.Value})
		}
		snap.Revision = newest(snap.Revision, remote.Revision)
	}
	sort.SliceStable(values, func(i, j int) bool {
		return lessPath(values[i].Path, values[j].Path)
	})
	snap.Values = values
	return snap, nil
}

func (p *proxyStore) Revision(ctx context.Context, path string) (store.Revision, error) {
	if m, rel := p.route(path); m != nil {
		return m.remote.Revision(ctx, rel)
	}
	rev, err := p.local.Revision(ctx, path)
	if err != nil {
		return store.Revision{}, err
	}
	for _, m := range p.below(path) {
		remote, err := m.remote.Revision(ctx, store.Root)
		if err != nil {
			return store.Revision{}, err
		}
		rev = newest(rev, remote)
	}
	return rev, nil
}

// SetTree splits a batch by the store each part belongs to.  Pruning
// an ancestor of a mount also empties the mounted store.
func (p *proxyStore) SetTree(ctx context.Context, batch store.Batch) (store.Revision, error) {
	var order []*mount
	batches := make(map[*mount]*store.Batch)
	target := func(m *mount) *store.Batch {
		b := batches[m]
		if b == nil {
			b = &store.Batch{}
			batches[m] = b
			order = append(order, m)
		}
		return b
	}

	for _, path := range batch.Prune {
		if err := store.CheckPath(path); err != nil {
			return store.Revision{}, err
		}
		m, rel := p.route(path)
		b := target(m)
		b.Prune = append(b.Prune, rel)
		if m == nil {
			for _, below := range p.below(path) {
				b := target(below)
				b.Prune = append(b.Prune, store.Root)
			}
		}
	}
	for _, v := range batch.Values {
		if err := store.CheckPath(v.Path); err != nil {
			return store.Revision{}, err
		}
		m, rel := p.route(v.Path)
		b := target(m)
		b.Values = append(b.Values, store.Value{Path: rel, Value: v.Value})
	}
	for _, guard := range batch.Guards {
		m, rel := p.route(guard.Path)
		b := target(m)
		b.Guards = append(b.Guards, store.Guard{Path: rel, Check: guard.Check})
	}

	var rev store.Revision
	for _, m := range order {
		st := p.local
		if m != nil {
			st = m.remote
		}
		r, err := st.SetTree(ctx, *batches[m])
		if err != nil {
			return store.Revision{}, err
		}
		rev = newest(rev, r)
	}
	return rev, nil
}

func (p *proxyStore) Watch(ctx context.Context, path string) (<-chan store.Change, error) {
	m, rel := p.route(path)
	if m == nil {
		return p.local.Watch(ctx, path)
	}
	changes, err := m.remote.Watch(ctx, rel)
	if err != nil {
		return nil, err
	}
	out := make(chan store.Change)
	go func() {
		defer close(out)
		for change := range changes {
			for i, v := range change.Values {
				change.Values[i].Path = m.local(v.Path)
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *proxyStore) Proxy(ctx context.Context, path, url string) error {
	if err := store.CheckPath(path); err != nil {
		return err
	}
	if path == store.Root {
		return ErrMountConflict
	}
	p.lock.RLock()
	for _, m := range p.mounts {
		if store.Under(path, m.path) || store.Under(m.path, path) {
			p.lock.RUnlock()
			return ErrMountConflict
		}
	}
	p.lock.RUnlock()

	remote, err := p.dial(url)
	if err != nil {
		return err
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	// Check again, since the dial happened unlocked
	for _, m := range p.mounts {
		if store.Under(path, m.path) || store.Under(m.path, path) {
			closeStore(remote)
			return ErrMountConflict
		}
	}
	p.mounts[path] = &mount{path: path, url: url, remote: remote}
	logrus.WithFields(logrus.Fields{
		"path": path,
		"url":  url,
	}).Info("Mounted remote store")
	return nil
}

func (p *proxyStore) Unproxy(ctx context.Context, path, url string) error {
	p.lock.Lock()
	m := p.mounts[path]
	if m == nil || m.url != url {
		p.lock.Unlock()
		return store.ErrNotFound
	}
	delete(p.mounts, path)
	p.lock.Unlock()

	closeStore(m.remote)
	logrus.WithFields(logrus.Fields{
		"path": path,
		"url":  url,
	}).Info("Unmounted remote store")
	return nil
}

func closeStore(st store.Store) {
	if closer, ok := st.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing remote store")
		}
	}
}

// shadowed returns true if path is at or beneath any of mounts.
func shadowed(path string, mounts []*mount) bool {
	for _, m := range mounts {
		if store.Under(path, m.path) {
			return true
		}
	}
	return false
}

// newest returns whichever revision has the higher version.
func newest(a, b store.Revision) store.Revision {
	if b.Newer(a) {
		return b
	}
	return a
}

// lessPath orders paths segment by segment, so that every path sorts
// immediately before its own descendants.
func lessPath(a, b string) bool {
	as, bs := store.Split(a), store.Split(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}
