// Regression tests for rest.go.
//
// Main tests are really by running requests end to end through the
// router in server_test.go.  This only contains special-case tests.
//
// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/diffeo/go-restconf/memory"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/schema/schematest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failResponseWriter struct {
	Headers    http.Header
	StatusCode int
}

func (rw *failResponseWriter) Header() http.Header {
	if rw.Headers == nil {
		rw.Headers = make(http.Header)
	}
	return rw.Headers
}

func (rw *failResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("foo")
}

func (rw *failResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
}

// TestDoubleFault checks that, if there is an error serializing a JSON
// response, it doesn't actually panic the process.
func TestDoubleFault(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.Set(context.Background(), "/test/settings/priority", "5"))

	router := NewRouter(st, schema.HolderFor(schematest.Index(t)), Options{})
	req := &http.Request{
		Method: http.MethodGet,
		URL: &url.URL{
			Path: "/api/data/test/settings",
		},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Close:      true,
		Host:       "localhost",
	}
	resp := &failResponseWriter{}
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestPanic checks that a panicking handler becomes a 500 error.
func TestPanic(t *testing.T) {
	api := &restAPI{Schemas: schema.HolderFor(schematest.Index(t))}
	h := &resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Get: func(*request) (*response, error) {
			panic("boom")
		},
	}
	req, err := http.NewRequest(http.MethodGet, "/api", nil)
	require.NoError(t, err)
	resp := &failResponseWriter{}
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, restdata.YangDataJSON, resp.Headers.Get("Content-Type"))
	assert.NotEmpty(t, resp.Headers.Get(restdata.HeaderRequestID))
}

func TestNegotiateResponse(t *testing.T) {
	for _, test := range []struct {
		Accept string
		Offers []string
		Type   string
		Err    error
	}{
		{"", restconfTypes, restdata.YangDataJSON, nil},
		{"*/*", restconfTypes, restdata.YangDataJSON, nil},
		{"application/*", restconfTypes, restdata.YangDataJSON, nil},
		{restdata.YangDataXML, restconfTypes, restdata.YangDataXML, nil},
		{"application/xml", restconfTypes, restdata.YangDataXML, nil},
		{"text/json", restconfTypes, restdata.JSONMediaType, nil},
		{"text/html, application/yang-data+xml;q=0.5", restconfTypes, restdata.YangDataXML, nil},
		{"application/yang-data+xml;q=0.5, application/yang-data+json", restconfTypes, restdata.YangDataJSON, nil},
		{"*/*;q=0.1, application/yang-data+xml", restconfTypes, restdata.YangDataXML, nil},
		{restdata.YangDataXML, apiTypes, "", restdata.ErrNotAcceptable{}},
		{"text/html", restconfTypes, "", restdata.ErrNotAcceptable{}},
		{restdata.EventStreamMediaType, restconfTypes, "", restdata.ErrNotAcceptable{}},
		{restdata.EventStreamMediaType, append(apiTypes, streamTypes...), restdata.EventStreamMediaType, nil},
		{restdata.NDJSONMediaType, append(apiTypes, streamTypes...), restdata.NDJSONMediaType, nil},
		{"application/json;q=2", apiTypes, "", restdata.ErrBadRequest{Err: errBadAccept}},
	} {
		req, err := http.NewRequest(http.MethodGet, "/api", nil)
		require.NoError(t, err)
		if test.Accept != "" {
			req.Header.Set("Accept", test.Accept)
		}
		mediaType, err := negotiateResponse(req, test.Offers)
		if test.Err != nil {
			assert.Equal(t, test.Err, err, "Accept: %v", test.Accept)
		} else if assert.NoError(t, err, "Accept: %v", test.Accept) {
			assert.Equal(t, test.Type, mediaType, "Accept: %v", test.Accept)
		}
	}
}

func TestProfileOf(t *testing.T) {
	for path, profile := range map[string]Profile{
		"/api":                           RESTCONF,
		"/api/data":                      RESTCONF,
		"/api/data/test":                 RESTCONF,
		"/api/operations/testing:reboot": RESTCONF,
		"/api/yang-library-version":      RESTCONF,
		"/.well-known/host-meta":         RESTCONF,
		"/api/":                          PlainAPI,
		"/api/test/settings":             PlainAPI,
		"/api/database":                  PlainAPI,
	} {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		require.NoError(t, err)
		assert.Equal(t, profile, ProfileOf("/api", req), path)
	}
}
