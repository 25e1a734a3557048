// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres_test

import (
	"os"
	"testing"

	"github.com/diffeo/go-restconf/postgres"
	"github.com/diffeo/go-restconf/store/storetest"
	"github.com/stretchr/testify/suite"
)

// Suite is the PostgreSQL generic test suite.
type Suite struct {
	storetest.Suite
	connStr string
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	st, err := postgres.NewWithClock(s.connStr, s.Clock)
	s.Require().NoError(err)
	s.Store = st
}

// TestStore runs the store generic tests.
//
// This creates a PostgreSQL backend using the connection string in
// $RESTCONF_POSTGRES.  If that is empty, the standard libpq
// environment variables are used instead, as described in
// http://www.postgresql.org/docs/current/static/libpq-envars.html;
// if $PGHOST is not set either, the test is skipped.
func TestStore(t *testing.T) {
	connStr := os.Getenv("RESTCONF_POSTGRES")
	if connStr == "" && os.Getenv("PGHOST") == "" {
		t.Skip("no PostgreSQL database configured")
	}
	suite.Run(t, &Suite{connStr: connStr})
}
