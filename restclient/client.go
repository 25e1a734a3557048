// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP client for the RESTCONF gateway
// served by the "restserver" package.
//
// The server in github.com/diffeo/go-restconf/cmd/restconfd runs a
// compatible REST server.  Call New() with the URL of its API root;
// for instance,
//
//     c, err := restclient.New("http://localhost:5980/api")
//
// RESTCONF data paths are passed already encoded, as they appear
// after {root}/data/, such as "testing:test/animals/animal=cat"; use
// Entry to build list entry segments with correctly escaped keys.
// Plain API paths are store paths such as "/test/animals/animal/cat".
package restclient

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/uripath"
)

// ErrBadURL is returned by New for a URL that is not absolute.
var ErrBadURL = errors.New("gateway URL must be an absolute http or https URL")

// Client talks to one gateway.
type Client struct {
	resource
}

// New creates a client for the gateway whose API root is at rootURL.
// It fetches the RESTCONF root resource to check that the gateway is
// there.
func New(rootURL string) (*Client, error) {
	return NewWithClient(rootURL, nil)
}

// NewWithClient creates a client that sends its requests through an
// explicit HTTP client.
func NewWithClient(rootURL string, client *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(rootURL, "/"))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrBadURL
	}
	c := &Client{resource: resource{URL: u, Client: client}}
	if _, err := c.Root(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Entry builds a RESTCONF list entry segment, escaping each key.
func Entry(name string, keys ...string) string {
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = uripath.EscapeKey(key)
	}
	return name + "=" + strings.Join(escaped, ",")
}

// Query holds RESTCONF query parameters.  Zero values are omitted.
type Query struct {
	Fields       string
	Depth        int
	Content      string
	WithDefaults string
}

// Conditions holds HTTP preconditions.  Zero values are omitted.
type Conditions struct {
	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   time.Time
	IfUnmodifiedSince time.Time
}

func (cond Conditions) header() http.Header {
	h := make(http.Header)
	if cond.IfMatch != "" {
		h.Set("If-Match", cond.IfMatch)
	}
	if cond.IfNoneMatch != "" {
		h.Set("If-None-Match", cond.IfNoneMatch)
	}
	if !cond.IfModifiedSince.IsZero() {
		h.Set("If-Modified-Since", cond.IfModifiedSince.UTC().Format(http.TimeFormat))
	}
	if !cond.IfUnmodifiedSince.IsZero() {
		h.Set("If-Unmodified-Since", cond.IfUnmodifiedSince.UTC().Format(http.TimeFormat))
	}
	return h
}

// Document is a resource as returned by a GET.
type Document struct {
	// Body is the decoded response, or nil if there was none.
	Body interface{}

	// ETag and LastModified are the validators the server sent.
	ETag         string
	LastModified time.Time

	// NotModified is true if the server answered 304 to a
	// conditional request.
	NotModified bool
}

// Root fetches the RESTCONF root resource.
func (c *Client) Root(ctx context.Context) (interface{}, error) {
	u, err := c.Template("{+root}", c.vars(nil))
	if err != nil {
		return nil, err
	}
	x := &exchange{Method: "GET", URL: u, Accept: restdata.YangDataJSON}
	if err := c.Do(ctx, x); err != nil {
		return nil, err
	}
	return x.Result, nil
}

// LibraryVersion fetches the yang-library-version leaf.
func (c *Client) LibraryVersion(ctx context.Context) (string, error) {
	u, err := c.Template("{+root}/yang-library-version", c.vars(nil))
	if err != nil {
		return "", err
	}
	x := &exchange{Method: "GET", URL: u, Accept: restdata.YangDataJSON}
	if err := c.Do(ctx, x); err != nil {
		return "", err
	}
	doc, _ := x.Result.(map[string]interface{})
	version, _ := doc[restdata.YangLibraryVersion].(string)
	return version, nil
}

// Operations lists the qualified names of the RPCs the gateway
// offers, sorted.
func (c *Client) Operations(ctx context.Context) ([]string, error) {
	u, err := c.Template("{+root}/operations", c.vars(nil))
	if err != nil {
		return nil, err
	}
	x := &exchange{Method: "GET", URL: u, Accept: restdata.YangDataJSON}
	if err := c.Do(ctx, x); err != nil {
		return nil, err
	}
	doc, _ := x.Result.(map[string]interface{})
	ops, _ := doc[restdata.Operations].(map[string]interface{})
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// vars returns template variables with root filled in.
func (c *Client) vars(vars map[string]interface{}) map[string]interface{} {
	if vars == nil {
		vars = make(map[string]interface{})
	}
	vars["root"] = c.URL.String()
	return vars
}

// dataURL builds the URL of a datastore resource.  path is already
// escaped, so it is appended after template expansion.
func (c *Client) dataURL(path string, q Query) (*url.URL, error) {
	vars := c.vars(nil)
	if q.Fields != "" {
		vars["fields"] = q.Fields
	}
	if q.Depth != 0 {
		vars["depth"] = strconv.Itoa(q.Depth)
	}
	if q.Content != "" {
		vars["content"] = q.Content
	}
	u, err := c.Template("{+root}/data{?fields,depth,content}", vars)
	if err != nil {
		return nil, err
	}
	if q.WithDefaults != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += "with-defaults=" + url.QueryEscape(q.WithDefaults)
	}
	path = strings.Trim(path, "/")
	if path != "" {
		unescaped, err := url.PathUnescape(path)
		if err != nil {
			return nil, err
		}
		u.RawPath = u.EscapedPath() + "/" + path
		u.Path = u.Path + "/" + unescaped
	}
	return u, nil
}

// Get fetches a datastore resource.  An empty path fetches the whole
// datastore.
func (c *Client) Get(ctx context.Context, path string, q Query, cond Conditions) (*Document, error) {
	u, err := c.dataURL(path, q)
	if err != nil {
		return nil, err
	}
	x := &exchange{Method: "GET", URL: u, Accept: restdata.YangDataJSON, Header: cond.header()}
	if err := c.Do(ctx, x); err != nil {
		return nil, err
	}
	return &Document{
		Body:         x.Result,
		ETag:         x.ETag,
		LastModified: x.LastModified,
		NotModified:  x.Status == http.StatusNotModified,
	}, nil
}

// write sends a body to a datastore resource.
func (c *Client) write(ctx context.Context, method, path string, body interface{}, cond Conditions) (*exchange, error) {
	u, err := c.dataURL(path, Query{})
	if err != nil {
		return nil, err
	}
	x := &exchange{
		Method:      method,
		URL:         u,
		ContentType: restdata.YangDataJSON,
		Body:        body,
		Accept:      restdata.YangDataJSON,
		Header:      cond.header(),
	}
	return x, c.Do(ctx, x)
}

// Put creates or replaces a datastore resource.  Returns true if the
// resource was created.
func (c *Client) Put(ctx context.Context, path string, body interface{}, cond Conditions) (bool, error) {
	x, err := c.write(ctx, "PUT", path, body, cond)
	if err != nil {
		return false, err
	}
	return x.Status == http.StatusCreated, nil
}

// Patch merges body into an existing datastore resource.
func (c *Client) Patch(ctx context.Context, path string, body interface{}, cond Conditions) error {
	_, err := c.write(ctx, "PATCH", path, body, cond)
	return err
}

// Post creates a child of a datastore resource and returns the URL of
// the new resource.
func (c *Client) Post(ctx context.Context, path string, body interface{}, cond Conditions) (string, error) {
	x, err := c.write(ctx, "POST", path, body, cond)
	if err != nil {
		return "", err
	}
	return x.Location, nil
}

// Delete removes a datastore resource.
func (c *Client) Delete(ctx context.Context, path string, cond Conditions) error {
	u, err := c.dataURL(path, Query{})
	if err != nil {
		return err
	}
	return c.Do(ctx, &exchange{Method: "DELETE", URL: u, Accept: restdata.YangDataJSON, Header: cond.header()})
}

// Invoke calls an RPC by its qualified name, such as
// "testing:reboot".  input may be nil.  Returns the decoded output
// document, or nil if the operation has no output.
func (c *Client) Invoke(ctx context.Context, operation string, input interface{}) (interface{}, error) {
	u, err := c.Template("{+root}/operations/{+operation}", c.vars(map[string]interface{}{
		"operation": operation,
	}))
	if err != nil {
		return nil, err
	}
	x := &exchange{Method: "POST", URL: u, Accept: restdata.YangDataJSON}
	if input != nil {
		x.ContentType = restdata.YangDataJSON
		x.Body = input
	}
	if err := c.Do(ctx, x); err != nil {
		return nil, err
	}
	return x.Result, nil
}

// Render selects plain API rendering options, sent as the X-JSON-*
// headers.
type Render struct {
	Types  bool
	Arrays bool
	NoRoot bool
	Multi  bool
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (r Render) header() http.Header {
	h := make(http.Header)
	h.Set(restdata.HeaderTypes, onOff(r.Types))
	h.Set(restdata.HeaderArray, onOff(r.Arrays))
	h.Set(restdata.HeaderRoot, onOff(!r.NoRoot))
	h.Set(restdata.HeaderMulti, onOff(r.Multi))
	return h
}

// plainURL builds the plain API URL of a store path.
func (c *Client) plainURL(path string, search bool) (*url.URL, error) {
	if err := store.CheckPath(path); err != nil {
		return nil, err
	}
	segments := []interface{}{}
	for _, segment := range store.Split(path) {
		segments = append(segments, segment)
	}
	template := "{+root}{/segments*}"
	if len(segments) == 0 {
		template = "{+root}"
	}
	u, err := c.Template(template, c.vars(map[string]interface{}{
		"segments": segments,
	}))
	if err != nil {
		return nil, err
	}
	if search {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u, nil
}

// GetPlain fetches a store path through the plain API.
func (c *Client) GetPlain(ctx context.Context, path string, r Render) (interface{}, error) {
	u, err := c.plainURL(path, false)
	if err != nil {
		return nil, err
	}
	x := &exchange{Method: "GET", URL: u, Accept: restdata.JSONMediaType, Header: r.header()}
	if err := c.Do(ctx, x); err != nil {
		return nil, err
	}
	return x.Result, nil
}

// Search lists the names of the children of a store path through the
// plain API.
func (c *Client) Search(ctx context.Context, path string) ([]string, error) {
	u, err := c.plainURL(path, true)
	if err != nil {
		return nil, err
	}
	x := &exchange{Method: "GET", URL: u, Accept: restdata.JSONMediaType}
	if err := c.Do(ctx, x); err != nil {
		return nil, err
	}
	list, _ := x.Result.([]interface{})
	names := make([]string, 0, len(list))
	for _, item := range list {
		if name, ok := item.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// SetPlain writes a JSON document to a store path through the plain
// API, merging it with what is there.
func (c *Client) SetPlain(ctx context.Context, path string, body interface{}) error {
	u, err := c.plainURL(path, false)
	if err != nil {
		return err
	}
	return c.Do(ctx, &exchange{
		Method:      "POST",
		URL:         u,
		ContentType: restdata.JSONMediaType,
		Body:        body,
	})
}

// DeletePlain removes a store path and everything beneath it through
// the plain API.
func (c *Client) DeletePlain(ctx context.Context, path string) error {
	u, err := c.plainURL(path, false)
	if err != nil {
		return err
	}
	return c.Do(ctx, &exchange{Method: "DELETE", URL: u})
}

// Watch opens a change stream on a datastore resource.  Each document
// the server sends is delivered on the returned channel, which is
// closed when ctx is done or the connection ends.
func (c *Client) Watch(ctx context.Context, path string, q Query) (<-chan interface{}, error) {
	u, err := c.dataURL(path, q)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", restdata.NDJSONMediaType)
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkHTTPStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	out := make(chan interface{})
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			doc, err := restdata.UnmarshalJSON(line)
			if err != nil {
				return
			}
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
