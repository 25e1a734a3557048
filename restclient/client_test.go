// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diffeo/go-restconf/memory"
	"github.com/diffeo/go-restconf/restclient"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/restserver"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/schema/schematest"
	"github.com/diffeo/go-restconf/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Suite runs the client against a gateway over a memory store.
type Suite struct {
	suite.Suite
	Store  store.Store
	Server *httptest.Server
	Client *restclient.Client
}

func (s *Suite) SetupTest() {
	s.Store = memory.New()
	ops := restserver.NewOperations()
	ops.Register("testing:get-reboot-info", func(ctx context.Context, inv *restserver.Invocation) ([]store.Value, error) {
		return []store.Value{{Path: "/message", Value: "soon"}}, nil
	})
	idx, err := schema.Load(schematest.Options())
	s.Require().NoError(err)
	router := restserver.NewRouter(s.Store, schema.HolderFor(idx), restserver.Options{Operations: ops})
	s.Server = httptest.NewServer(router)
	s.Client, err = restclient.New(s.Server.URL + "/api")
	s.Require().NoError(err)
}

func (s *Suite) TearDownTest() {
	s.Server.Close()
}

// JSONEq compares a decoded document against JSON text.
func (s *Suite) JSONEq(expected string, doc interface{}) {
	data, err := restdata.MarshalJSON(doc)
	s.Require().NoError(err)
	s.Suite.JSONEq(expected, string(data))
}

// status pulls the HTTP status out of a client error.
func status(err error) int {
	if e, ok := err.(interface{ HTTPStatus() int }); ok {
		return e.HTTPStatus()
	}
	return 0
}

func (s *Suite) TestRootResources() {
	ctx := context.Background()
	root, err := s.Client.Root(ctx)
	s.Require().NoError(err)
	s.JSONEq(`{"ietf-restconf:restconf":{"data":{},"operations":{},"yang-library-version":"2019-01-04"}}`, root)

	version, err := s.Client.LibraryVersion(ctx)
	if s.NoError(err) {
		s.Equal("2019-01-04", version)
	}

	ops, err := s.Client.Operations(ctx)
	if s.NoError(err) {
		s.Equal([]string{"testing:get-reboot-info", "testing:reboot"}, ops)
	}
}

func (s *Suite) TestPutGet() {
	ctx := context.Background()
	created, err := s.Client.Put(ctx, "test/settings", map[string]interface{}{
		"settings": map[string]interface{}{"priority": 3},
	}, restclient.Conditions{})
	s.Require().NoError(err)
	s.True(created)

	created, err = s.Client.Put(ctx, "test/settings", map[string]interface{}{
		"settings": map[string]interface{}{"priority": 4},
	}, restclient.Conditions{})
	s.Require().NoError(err)
	s.False(created)

	doc, err := s.Client.Get(ctx, "test/settings/priority", restclient.Query{}, restclient.Conditions{})
	s.Require().NoError(err)
	s.JSONEq(`{"priority":4}`, doc.Body)
	s.NotEmpty(doc.ETag)
	s.False(doc.LastModified.IsZero())
	s.False(doc.NotModified)

	again, err := s.Client.Get(ctx, "test/settings/priority", restclient.Query{},
		restclient.Conditions{IfNoneMatch: doc.ETag})
	s.Require().NoError(err)
	s.True(again.NotModified)
	s.Nil(again.Body)

	doc, err = s.Client.Get(ctx, "testing:test/settings/enable", restclient.Query{WithDefaults: "report-all"}, restclient.Conditions{})
	s.Require().NoError(err)
	s.JSONEq(`{"testing:enable":true}`, doc.Body)
}

func (s *Suite) TestPreconditions() {
	ctx := context.Background()
	s.Require().NoError(s.Store.Set(ctx, "/test/settings/priority", "3"))

	_, err := s.Client.Put(ctx, "test/settings", map[string]interface{}{
		"settings": map[string]interface{}{"priority": 1},
	}, restclient.Conditions{IfMatch: `"nope"`})
	s.Equal(http.StatusPreconditionFailed, status(err))

	err = s.Client.Delete(ctx, "test/settings", restclient.Conditions{
		IfUnmodifiedSince: time.Unix(0, 0),
	})
	s.Equal(http.StatusPreconditionFailed, status(err))

	value, err := s.Store.Get(ctx, "/test/settings/priority")
	s.Require().NoError(err)
	s.Equal("3", value)
}

func (s *Suite) TestPostEntry() {
	ctx := context.Background()
	location, err := s.Client.Post(ctx, "test/animals", map[string]interface{}{
		"animal": []interface{}{map[string]interface{}{"name": "a/b", "colour": "brown"}},
	}, restclient.Conditions{})
	s.Require().NoError(err)
	s.Equal("/api/data/test/animals/animal=a%2Fb", location)

	_, err = s.Client.Post(ctx, "test/animals", map[string]interface{}{
		"animal": []interface{}{map[string]interface{}{"name": "a/b"}},
	}, restclient.Conditions{})
	if s.Error(err) {
		s.Equal(http.StatusConflict, status(err))
		if e, ok := err.(restdata.Error); s.True(ok) {
			s.Equal(restdata.TagDataExists, e.Tag)
		}
	}

	path := "test/animals/" + restclient.Entry("animal", "a/b")
	doc, err := s.Client.Get(ctx, path+"/colour", restclient.Query{}, restclient.Conditions{})
	s.Require().NoError(err)
	s.JSONEq(`{"colour":"brown"}`, doc.Body)

	s.NoError(s.Client.Patch(ctx, path, map[string]interface{}{
		"animal": []interface{}{map[string]interface{}{"name": "a/b", "colour": "white"}},
	}, restclient.Conditions{}))
	doc, err = s.Client.Get(ctx, path+"/colour", restclient.Query{}, restclient.Conditions{})
	s.Require().NoError(err)
	s.JSONEq(`{"colour":"white"}`, doc.Body)

	s.NoError(s.Client.Delete(ctx, path, restclient.Conditions{}))
	_, err = s.Client.Get(ctx, path, restclient.Query{}, restclient.Conditions{})
	s.Equal(http.StatusNotFound, status(err))
}

func (s *Suite) TestInvoke() {
	ctx := context.Background()
	out, err := s.Client.Invoke(ctx, "testing:get-reboot-info", nil)
	s.Require().NoError(err)
	s.JSONEq(`{"testing:output":{"message":"soon"}}`, out)

	_, err = s.Client.Invoke(ctx, "testing:reboot", nil)
	s.Equal(http.StatusNotImplemented, status(err))
}

func (s *Suite) TestPlain() {
	ctx := context.Background()
	s.Require().NoError(s.Client.SetPlain(ctx, "/test/settings", map[string]interface{}{
		"priority": "3",
		"debug":    "1",
	}))

	doc, err := s.Client.GetPlain(ctx, "/test/settings/priority", restclient.Render{NoRoot: true})
	s.Require().NoError(err)
	s.Equal("3", doc)

	doc, err = s.Client.GetPlain(ctx, "/test/settings/debug", restclient.Render{Types: true, Multi: true})
	s.Require().NoError(err)
	s.JSONEq(`[{"debug":"enable"}]`, doc)

	names, err := s.Client.Search(ctx, "/test/settings")
	s.Require().NoError(err)
	s.Equal([]string{"debug", "priority"}, names)

	names, err = s.Client.Search(ctx, "/")
	s.Require().NoError(err)
	s.Equal([]string{"test"}, names)

	s.Require().NoError(s.Client.DeletePlain(ctx, "/test/settings"))
	names, err = s.Client.Search(ctx, "/test/settings")
	s.Require().NoError(err)
	s.Empty(names)
}

func (s *Suite) TestWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := s.Client.Watch(ctx, "test/settings/priority", restclient.Query{})
	s.Require().NoError(err)

	s.Require().NoError(s.Store.Set(ctx, "/test/settings/debug", "1"))
	s.Require().NoError(s.Store.Set(ctx, "/test/settings/priority", "2"))

	select {
	case doc, ok := <-changes:
		s.Require().True(ok)
		s.JSONEq(`{"priority":2}`, doc)
	case <-time.After(5 * time.Second):
		s.Fail("no change delivered")
	}

	cancel()
	for range changes {
	}
}

func TestClient(t *testing.T) {
	suite.Run(t, &Suite{})
}

func TestBadURL(t *testing.T) {
	for _, u := range []string{"", "/api", "ftp://example.com/api"} {
		_, err := restclient.New(u)
		assert.Equal(t, restclient.ErrBadURL, err, u)
	}
}

func TestNoServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	_, err := restclient.New(url + "/api")
	require.Error(t, err)
}

func TestEntry(t *testing.T) {
	assert.Equal(t, "animal=cat", restclient.Entry("animal", "cat"))
	assert.Equal(t, "pair=a%2Fb,c%2Cd", restclient.Entry("pair", "a/b", "c,d"))
}
