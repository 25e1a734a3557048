// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import (
	"context"
	"sync"
)

// Notifier fans committed changes out to Watch subscribers.  Publish
// never blocks: each subscriber has its own unbounded queue that a
// goroutine drains into the subscriber's channel.  Store
// implementations call Publish while holding their commit lock so that
// every subscriber sees changes in commit order.
type Notifier struct {
	lock     sync.Mutex
	watchers map[*watcher]struct{}
}

type watcher struct {
	path  string
	lock  sync.Mutex
	queue []Change
	wake  chan struct{}
	out   chan Change
}

// Subscribe registers a new watcher on path.  The returned channel is
// closed after ctx is done.
func (n *Notifier) Subscribe(ctx context.Context, path string) <-chan Change {
	w := &watcher{
		path: path,
		wake: make(chan struct{}, 1),
		out:  make(chan Change),
	}
	n.lock.Lock()
	if n.watchers == nil {
		n.watchers = make(map[*watcher]struct{})
	}
	n.watchers[w] = struct{}{}
	n.lock.Unlock()

	go func() {
		defer func() {
			n.lock.Lock()
			delete(n.watchers, w)
			n.lock.Unlock()
			close(w.out)
		}()
		w.run(ctx)
	}()
	return w.out
}

// Publish delivers change to every watcher whose path covers at least
// one of the changed values.  Each watcher only sees the values under
// its own path.
func (n *Notifier) Publish(change Change) {
	n.lock.Lock()
	defer n.lock.Unlock()
	for w := range n.watchers {
		var values []Value
		for _, v := range change.Values {
			if Under(v.Path, w.path) {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			w.push(Change{Values: values, Revision: change.Revision})
		}
	}
}

// Watching returns the number of live subscriptions.
func (n *Notifier) Watching() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.watchers)
}

func (w *watcher) push(change Change) {
	w.lock.Lock()
	w.queue = append(w.queue, change)
	w.lock.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) run(ctx context.Context) {
	for {
		w.lock.Lock()
		if len(w.queue) == 0 {
			w.lock.Unlock()
			select {
			case <-w.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		change := w.queue[0]
		w.queue = w.queue[1:]
		w.lock.Unlock()

		select {
		case w.out <- change:
		case <-ctx.Done():
			return
		}
	}
}
