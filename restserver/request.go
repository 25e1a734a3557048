// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"bytes"
	"errors"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/uripath"
	"github.com/satori/go.uuid"
)

// errNoBody is returned when a write arrives without a document.
var errNoBody = datatree.ErrBadDocument{Reason: "missing request body"}

// errNotObject is returned when a RESTCONF document is not a JSON
// object.
var errNotObject = datatree.ErrBadDocument{Reason: "request body must be an object"}

// request holds everything extracted from one HTTP request.
type request struct {
	*http.Request

	api     *restAPI
	profile Profile
	id      string

	// idx is the schema index captured when the request arrived.
	idx *schema.Index

	// responseType is the negotiated response media type.
	responseType string

	// path and loc are the parsed and resolved target.  root is
	// true if the request names the top of the datastore instead.
	path uripath.Path
	loc  schema.Location
	root bool

	// search is true for a plain API path with a trailing slash.
	search bool

	query datatree.Query
}

// requestID returns the client's request ID if it sent one, or a new
// one.
func requestID(req *http.Request) string {
	if id := req.Header.Get(restdata.HeaderRequestID); id != "" {
		return id
	}
	return uuid.NewV4().String()
}

// parseQuery parses the query string.  insert and point are only
// meaningful when creating or replacing.
func (r *request) parseQuery() error {
	q, err := datatree.ParseQuery(r.URL.RawQuery, r.profile == RESTCONF)
	if err != nil {
		return err
	}
	if q.HasInsert() && r.Method != http.MethodPost && r.Method != http.MethodPut {
		return datatree.ErrMalformedQuery
	}
	r.query = q
	return nil
}

// locate parses and resolves an escaped path relative to a resource
// root.  An empty path selects the root.
func (r *request) locate(escaped string) error {
	restconf := r.profile == RESTCONF
	path, err := uripath.Parse(escaped, restconf)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		r.root = true
		return nil
	}
	r.path = path
	r.loc, err = r.idx.Locate(path, restconf)
	return err
}

// body reads and decodes the request document.  A missing or blank
// body returns nil.  The plain API assumes JSON when no Content-Type
// is given.
func (r *request) body() (interface{}, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, restdata.ErrBadRequest{Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" && r.profile == PlainAPI {
		contentType = restdata.JSONMediaType
	}
	return restdata.Decode(contentType, bytes.NewReader(data), r.idx)
}

// document reads a request document that must be an object.
func (r *request) document() (map[string]interface{}, error) {
	body, err := r.body()
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errNoBody
	}
	doc, ok := body.(map[string]interface{})
	if !ok {
		return nil, errNotObject
	}
	return doc, nil
}

// renderOptions builds rendering options from the profile, the
// query, and the plain API's X-JSON headers.
func (r *request) renderOptions() datatree.RenderOptions {
	opts := datatree.RenderOptions{
		Depth:  r.query.Depth,
		Tagged: r.query.WithDefaults == datatree.ReportAllTagged,
	}
	if r.profile == RESTCONF {
		opts.RESTCONF = true
		opts.Typed = true
	} else {
		opts.Typed = headerOn(r.Header, restdata.HeaderTypes, false)
		opts.Arrays = headerOn(r.Header, restdata.HeaderArray, false)
	}
	return opts
}

// targetName is the name the target is rendered under.  RESTCONF
// qualifies it when the request did or when it is outside the default
// module; the plain API uses the last path segment.
func (r *request) targetName() string {
	n := r.loc.Node
	if r.profile == RESTCONF {
		if r.loc.Qualified || n.Module != r.idx.DefaultModule {
			return n.QualifiedName()
		}
		return n.Name
	}
	if len(r.path) > 0 {
		return r.path[len(r.path)-1].Raw
	}
	return n.Name
}

// namespace maps module names to XML namespaces for generic
// documents.
func (r *request) namespace(module string) string {
	switch module {
	case "ietf-restconf":
		return restdata.RestconfNamespace
	case "ietf-yang-library":
		return restdata.YangLibraryNamespace
	}
	if m := r.idx.Module(module); m != nil {
		return m.Namespace
	}
	return ""
}

// checkReadable rejects reads of targets clients may not see.  Hidden
// nodes do not exist as far as clients know.
func (r *request) checkReadable() error {
	switch r.loc.Node.Access {
	case schema.Hidden:
		return schema.ErrNoSuchNode{Path: r.path.String()}
	case schema.WriteOnly:
		return schema.ErrAccessDenied{Path: r.loc.StorePath}
	}
	return nil
}

// errKeyLeaf is returned for writes naming a list key leaf directly.
var errKeyLeaf = errors.New("list keys cannot be changed")

// checkWritable rejects writes to targets clients may not change.
// List key leaves never change once an entry exists: that would be a
// different entry.
func (r *request) checkWritable() error {
	if r.loc.Operation != nil {
		return restdata.ErrMethodNotAllowed{Method: r.Method}
	}
	if r.loc.Node.IsKey() {
		return restdata.Error{
			Type:    restdata.TypeProtocol,
			Tag:     restdata.TagOperationNotSupported,
			Message: errKeyLeaf.Error(),
			Status:  http.StatusMethodNotAllowed,
		}
	}
	if !r.loc.Node.Access.Writable() {
		return schema.ErrAccessDenied{Path: r.loc.StorePath}
	}
	return nil
}

// headerOn reads an "on"/"off" header.
func headerOn(h http.Header, name string, dflt bool) bool {
	switch strings.ToLower(strings.TrimSpace(h.Get(name))) {
	case "on", "true", "1", "yes":
		return true
	case "off", "false", "0", "no":
		return false
	}
	return dflt
}
