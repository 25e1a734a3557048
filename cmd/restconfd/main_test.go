// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/diffeo/go-restconf/memory"
	"github.com/diffeo/go-restconf/restserver"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/schema/schematest"
	"github.com/diffeo/go-restconf/storerpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	f, err := ioutil.TempFile("", "restconfd-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Parse(nil))
	assert.Equal(t, ":5980", cfg.HTTP)
	assert.Equal(t, "", cfg.RPC)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, restserver.DefaultRoot, cfg.Root)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFlags(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Parse([]string{
		"-http", ":8080",
		"-rpc", ":5932",
		"-backend", "postgres:dbname=restconf",
		"-yang", "/etc/yang",
		"-yang", "/usr/share/yang",
		"-yang-file", "extra.yang",
		"-default-module", "testing",
		"-cache-size", "10",
	}))
	assert.Equal(t, ":8080", cfg.HTTP)
	assert.Equal(t, ":5932", cfg.RPC)
	assert.Equal(t, "postgres:dbname=restconf", cfg.Backend)
	assert.Equal(t, []string{"/etc/yang", "/usr/share/yang"}, cfg.Yang.Dirs)
	assert.Equal(t, []string{"extra.yang"}, cfg.Yang.Files)
	assert.Equal(t, "testing", cfg.Yang.DefaultModule)
	assert.Equal(t, 10, cfg.CacheSize)

	cfg = defaultConfig()
	assert.Error(t, cfg.Parse([]string{"-backend", "sqlite"}))
}

func TestConfigFile(t *testing.T) {
	name := writeConfig(t, `
http: ":9000"
backend: "rpc:tcp://localhost:5932"
log_level: debug
cache_size: "64"
yang:
  dirs: [/etc/yang]
  default_module: testing
  path_prefixes:
    testing-2: /t2
mounts:
  - path: /remote
    url: tcp://other:5932
`)
	cfg := defaultConfig()
	require.NoError(t, cfg.Parse([]string{"-config", name, "-http", ":9001"}))
	assert.Equal(t, ":9001", cfg.HTTP, "flag wins over file")
	assert.Equal(t, "rpc:tcp://localhost:5932", cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, []string{"/etc/yang"}, cfg.Yang.Dirs)
	assert.Equal(t, "testing", cfg.Yang.DefaultModule)
	assert.Equal(t, map[string]string{"testing-2": "/t2"}, cfg.Yang.PathPrefixes)
	assert.Equal(t, []Mount{{Path: "/remote", URL: "tcp://other:5932"}}, cfg.Mounts)
	assert.Equal(t, schema.Options{
		Dirs:          []string{"/etc/yang"},
		DefaultModule: "testing",
		PathPrefixes:  map[string]string{"testing-2": "/t2"},
	}, cfg.Yang.Options())
}

func TestConfigFileErrors(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.Parse([]string{"-config", "/nonexistent/restconfd.yaml"}))

	name := writeConfig(t, "htpp: \":9000\"\n")
	cfg = defaultConfig()
	assert.Error(t, cfg.Parse([]string{"-config", name}))
}

func TestStoreMounts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	remote := memory.New()
	go func() {
		_ = (&storerpc.Server{Store: remote}).Serve(ln)
	}()

	cfg := defaultConfig()
	cfg.Mounts = []Mount{{Path: "/remote", URL: "tcp://" + ln.Addr().String()}}
	ctx := context.Background()
	st, err := cfg.Store(ctx)
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "/remote/a", "b"))
	require.NoError(t, st.Set(ctx, "/local", "c"))
	value, err := remote.Get(ctx, "/a")
	if assert.NoError(t, err) {
		assert.Equal(t, "b", value)
	}
	_, err = remote.Get(ctx, "/local")
	assert.Error(t, err)

	cfg.Mounts = []Mount{{Path: "/bad", URL: "gopher://nowhere"}}
	_, err = cfg.Store(ctx)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "/test/settings/priority", "3"))
	h := &HTTP{
		Store:   st,
		Schemas: schema.HolderFor(schematest.Index(t)),
		Root:    restserver.DefaultRoot,
	}
	server := httptest.NewServer(h.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/data/test/settings/priority")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"priority":3}`, string(body))

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err = ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body),
		`restconf_http_requests_total{code="200",method="GET",profile="restconf"}`))
}

func TestWantsStream(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/data", nil)
	assert.False(t, wantsStream(req))
	req.Header.Set("Accept", "application/x-ndjson")
	assert.True(t, wantsStream(req))
	req.Header.Set("Accept", "text/event-stream, */*;q=0.1")
	assert.True(t, wantsStream(req))
}
