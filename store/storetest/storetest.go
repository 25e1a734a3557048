// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package storetest provides generic functional tests for the store
// interface.  A typical backend test module needs to wrap Suite to
// create its backend:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-restconf/store/storetest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             storetest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             s.Store = NewWithClock(s.Clock)
//     }
//
//     // TestStore runs the store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
//
// Every test works under its own randomly named top-level path, so a
// persistent backend can be shared across runs.
package storetest

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restconf/store"
	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic store backend test suite.
type Suite struct {
	suite.Suite

	// Clock contains the alternate time source to be used in
	// tests.  It is pre-initialized to a mock clock.
	Clock *clock.Mock

	// Store contains the top-level interface to the backend under
	// test.  It is set by importing packages.
	Store store.Store

	// NoWatch skips the Watch tests, for backends that cannot
	// deliver changes.
	NoWatch bool

	ctx  context.Context
	root string
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
	s.ctx = context.Background()
}

// SetupTest picks a fresh top-level path for the next test.
func (s *Suite) SetupTest() {
	s.root = "/t" + uuid.NewV4().String()
}

// TearDownTest removes everything the test wrote.
func (s *Suite) TearDownTest() {
	if s.Store != nil {
		s.NoError(s.Store.Prune(s.ctx, s.root))
	}
}

// Path returns a path under the current test's root.
func (s *Suite) Path(segments ...string) string {
	return store.Join(s.root, segments...)
}

// Context returns the context tests pass to the store.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// set writes a value and fails the test on error.
func (s *Suite) set(path, value string) {
	s.Require().NoError(s.Store.Set(s.ctx, path, value))
}

// revision fetches a revision and fails the test on error.
func (s *Suite) revision(path string) store.Revision {
	rev, err := s.Store.Revision(s.ctx, path)
	s.Require().NoError(err)
	return rev
}
