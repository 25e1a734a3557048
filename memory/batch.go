// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"context"

	"github.com/diffeo/go-restconf/store"
)

// staged is the net effect of a batch before it is applied: the final
// value of every touched path, in first-touch order.
type staged struct {
	order  []string
	values map[string]string
}

func (st *staged) put(path, value string) {
	if _, seen := st.values[path]; !seen {
		st.order = append(st.order, path)
	}
	st.values[path] = value
}

func (s *memStore) SetTree(ctx context.Context, batch store.Batch) (store.Revision, error) {
	for _, path := range batch.Prune {
		if err := store.CheckPath(path); err != nil {
			return store.Revision{}, err
		}
	}
	for _, v := range batch.Values {
		if err := store.CheckPath(v.Path); err != nil {
			return store.Revision{}, err
		}
	}

	s.globalLock()
	defer s.globalUnlock()

	for _, guard := range batch.Guards {
		var rev store.Revision
		if n := s.lookup(guard.Path); n != nil {
			rev = n.rev
		}
		if err := guard.Check(rev); err != nil {
			return store.Revision{}, err
		}
	}

	st := &staged{values: make(map[string]string)}
	for _, path := range batch.Prune {
		// Anything written earlier in this batch goes too
		for _, p := range st.order {
			if store.Under(p, path) {
				st.values[p] = ""
			}
		}
		if n := s.lookup(path); n != nil {
			var existing []store.Value
			n.collect(path, &existing)
			for _, v := range existing {
				st.put(v.Path, "")
			}
		}
	}
	for _, v := range batch.Values {
		st.put(v.Path, v.Value)
	}

	var changes []store.Value
	for _, path := range st.order {
		value := st.values[path]
		old := ""
		if n := s.lookup(path); n != nil {
			old = n.value
		}
		if old != value {
			changes = append(changes, store.Value{Path: path, Value: value})
		}
	}
	if len(changes) == 0 {
		return store.Revision{}, nil
	}

	s.version++
	rev := store.Revision{Version: s.version, Modified: s.clock.Now()}
	for _, change := range changes {
		s.write(change.Path, change.Value, rev)
	}
	s.notifier.Publish(store.Change{Values: changes, Revision: rev})
	return rev, nil
}

// write stores one value, stamping rev on the node and every ancestor
// that still exists afterwards.  Runs under the global lock.
func (s *memStore) write(path, value string, rev store.Revision) {
	segs := store.Split(path)
	chain := make([]*node, 0, len(segs)+1)
	n := s.root
	chain = append(chain, n)
	for _, seg := range segs {
		child := n.children[seg]
		if child == nil {
			if value == "" {
				// Deleting something that is not there
				break
			}
			child = newNode()
			n.children[seg] = child
		}
		n = child
		chain = append(chain, n)
	}
	if len(chain) == len(segs)+1 {
		n.value = value
	}

	// Walk back up, dropping nodes that no longer hold anything
	for i := len(chain) - 1; i > 0; i-- {
		if chain[i].value == "" && len(chain[i].children) == 0 {
			delete(chain[i-1].children, segs[i-1])
			chain = chain[:i]
		}
	}
	for _, n := range chain {
		n.rev = rev
	}
	if len(s.root.children) == 0 && s.root.value == "" {
		s.root.rev = store.Revision{}
	}
}
