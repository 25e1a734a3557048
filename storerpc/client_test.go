// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storerpc_test

import (
	"context"
	"net"
	"testing"

	"github.com/diffeo/go-restconf/memory"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/store/storetest"
	"github.com/diffeo/go-restconf/storerpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// serve starts a server for st on a loopback port.
func serve(t require.TestingT, st store.Store) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := &storerpc.Server{Store: st}
	go func() {
		_ = server.Serve(ln)
	}()
	return ln
}

// Suite runs the generic store tests through a client and server.
type Suite struct {
	storetest.Suite
	ln     net.Listener
	client *storerpc.Client
}

// SetupSuite starts a server over an in-memory store.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.NoWatch = true
	s.ln = serve(s.T(), memory.NewWithClock(s.Clock))
	var err error
	s.client, err = storerpc.Dial("tcp", s.ln.Addr().String())
	s.Require().NoError(err)
	s.Store = s.client
}

// TearDownSuite shuts down the client and server.
func (s *Suite) TearDownSuite() {
	s.NoError(s.client.Close())
	s.NoError(s.ln.Close())
}

// TestStore runs the store generic tests.
func TestStore(t *testing.T) {
	suite.Run(t, &Suite{})
}

func TestParseURL(t *testing.T) {
	for _, test := range []struct {
		url     string
		network string
		address string
		err     bool
	}{
		{"tcp://localhost:5932", "tcp", "localhost:5932", false},
		{"unix:///var/run/restconf.sock", "unix", "/var/run/restconf.sock", false},
		{"tcp://", "", "", true},
		{"unix://", "", "", true},
		{"http://localhost:8080", "", "", true},
		{"localhost:5932", "", "", true},
	} {
		network, address, err := storerpc.ParseURL(test.url)
		if test.err {
			assert.Error(t, err, test.url)
			continue
		}
		if assert.NoError(t, err, test.url) {
			assert.Equal(t, test.network, network, test.url)
			assert.Equal(t, test.address, address, test.url)
		}
	}
}

func TestWatchNotSupported(t *testing.T) {
	ln := serve(t, memory.New())
	defer ln.Close()
	client, err := storerpc.DialURL("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Watch(context.Background(), "/")
	assert.Equal(t, store.ErrNotSupported, err)
}

func TestRemoteErrors(t *testing.T) {
	ln := serve(t, memory.New())
	defer ln.Close()
	client, err := storerpc.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	_, err = client.Get(ctx, "relative/path")
	assert.Equal(t, store.ErrBadPath{Path: "relative/path"}, err)

	err = client.Proxy(ctx, "/remote", "tcp://localhost:1")
	assert.Equal(t, store.ErrNotSupported, err)

	// The connection is still usable after errors
	require.NoError(t, client.Set(ctx, "/a", "b"))
	value, err := client.Get(ctx, "/a")
	if assert.NoError(t, err) {
		assert.Equal(t, "b", value)
	}
}

func TestReconnect(t *testing.T) {
	ln := serve(t, memory.New())
	defer ln.Close()
	client, err := storerpc.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "/a", "b"))
	require.NoError(t, client.Close())

	value, err := client.Get(ctx, "/a")
	if assert.NoError(t, err) {
		assert.Equal(t, "b", value)
	}
	assert.NoError(t, client.Close())
}
