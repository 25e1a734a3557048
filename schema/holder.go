// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Holder publishes the current Index.  Readers call Load once at the
// start of a request and use that index throughout; loading a new set
// of modules replaces the index without disturbing them.
type Holder struct {
	value atomic.Value
	opts  Options
}

// NewHolder loads an index and returns a holder for it.  The options
// are remembered for Reload.
func NewHolder(opts Options) (*Holder, error) {
	idx, err := Load(opts)
	if err != nil {
		return nil, err
	}
	h := &Holder{opts: opts}
	h.value.Store(idx)
	return h, nil
}

// HolderFor wraps an index that has already been loaded.
func HolderFor(idx *Index) *Holder {
	h := &Holder{}
	h.value.Store(idx)
	return h
}

// Load returns the current index.
func (h *Holder) Load() *Index {
	return h.value.Load().(*Index)
}

// Swap publishes a new index and returns the one it replaced.
func (h *Holder) Swap(idx *Index) *Index {
	old := h.Load()
	h.value.Store(idx)
	logrus.WithFields(logrus.Fields{
		"old": old.ContentID,
		"new": idx.ContentID,
	}).Info("schema index replaced")
	return old
}

// Reload loads the modules again, with the same options as
// NewHolder, and publishes the result.  If loading fails the current
// index stays in place.
func (h *Holder) Reload() (*Index, error) {
	idx, err := Load(h.opts)
	if err != nil {
		return nil, err
	}
	h.Swap(idx)
	return idx, nil
}
