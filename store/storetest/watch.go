// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storetest

import (
	"context"
	"time"

	"github.com/diffeo/go-restconf/store"
)

// receive waits a little while for a change.
func (s *Suite) receive(ch <-chan store.Change) (store.Change, bool) {
	select {
	case change, ok := <-ch:
		return change, ok
	case <-time.After(5 * time.Second):
		s.Fail("timed out waiting for a change")
		return store.Change{}, false
	}
}

// TestWatch checks that every mutation under the watched path is
// delivered in order, and nothing else.
func (s *Suite) TestWatch() {
	if s.NoWatch {
		s.T().Skip("backend does not support watches")
	}
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	ch, err := s.Store.Watch(ctx, s.Path("state"))
	s.Require().NoError(err)

	s.set(s.Path("settings", "priority"), "1")
	s.set(s.Path("state", "uptime", "days"), "1")
	s.set(s.Path("state", "uptime", "days"), "2")
	s.Require().NoError(s.Store.Prune(s.ctx, s.Path("state", "uptime")))

	change, ok := s.receive(ch)
	if s.True(ok) {
		s.Equal([]store.Value{{Path: s.Path("state", "uptime", "days"), Value: "1"}}, change.Values)
	}
	first := change.Revision

	change, ok = s.receive(ch)
	if s.True(ok) {
		s.Equal([]store.Value{{Path: s.Path("state", "uptime", "days"), Value: "2"}}, change.Values)
		s.True(change.Revision.Newer(first))
	}

	change, ok = s.receive(ch)
	if s.True(ok) {
		s.Equal([]store.Value{{Path: s.Path("state", "uptime", "days"), Value: ""}}, change.Values)
	}

	cancel()
	for range ch {
	}
}
