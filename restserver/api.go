// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"strings"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/revision"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
)

func (api *restAPI) plainHandler() *resourceHandler {
	return &resourceHandler{
		api:     api,
		Profile: PlainAPI,
		Types:   apiTypes,
		Stream:  true,
		Context: api.PlainContext,
		Get:     api.GetPlain,
		Post:    api.PostPlain,
		Delete:  api.DeletePlain,
	}
}

// PlainContext resolves a plain API path.  A trailing slash asks for
// the names of the children rather than the data.
func (api *restAPI) PlainContext(r *request) error {
	if err := r.parseQuery(); err != nil {
		return err
	}
	escaped := strings.TrimPrefix(r.URL.EscapedPath(), api.Root)
	if strings.HasSuffix(escaped, "/") {
		r.search = true
	}
	return r.locate(escaped)
}

// GetPlain reads data, or searches if the path ended in a slash.
func (api *restAPI) GetPlain(r *request) (*response, error) {
	if r.search {
		return api.search(r)
	}
	if r.root {
		return nil, restdata.ErrNotFound{Err: schema.ErrNoSuchNode{Path: "/"}}
	}
	if r.loc.Operation != nil {
		return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
	}
	if err := r.checkReadable(); err != nil {
		return nil, err
	}
	if isStream(r.responseType) {
		return api.openStream(r)
	}

	snap, err := api.Store.GetTree(r.Context(), r.loc.StorePath)
	if err != nil {
		return nil, err
	}
	resp := &response{Revision: snap.Revision, Stamp: true}
	if revision.NotModified(r.Header, snap.Revision) {
		resp.Status = http.StatusNotModified
		return resp, nil
	}
	tree := datatree.Apply(datatree.Assemble(r.loc, snap.Values), r.loc, r.query)
	resp.Doc = r.shape(datatree.Render(tree, r.targetName(), r.renderOptions()))
	resp.Status = http.StatusOK
	return resp, nil
}

// shape applies the X-JSON-Root and X-JSON-Multi headers to a
// rendered document.  A missing document is an empty object.
func (r *request) shape(doc map[string]interface{}) interface{} {
	var out interface{} = doc
	if doc == nil {
		out = map[string]interface{}{}
	} else if !headerOn(r.Header, restdata.HeaderRoot, true) && len(doc) == 1 {
		for _, v := range doc {
			out = v
		}
	}
	if headerOn(r.Header, restdata.HeaderMulti, false) {
		out = []interface{}{out}
	}
	return out
}

// search lists the names of the children of a path that clients may
// see.
func (api *restAPI) search(r *request) (*response, error) {
	path := "/"
	if !r.root {
		if err := r.checkReadable(); err != nil {
			return nil, err
		}
		path = r.loc.StorePath
	}
	rev, err := api.Store.Revision(r.Context(), path)
	if err != nil {
		return nil, err
	}
	resp := &response{Status: http.StatusOK, Revision: rev, Stamp: true}
	if revision.NotModified(r.Header, rev) {
		resp.Status = http.StatusNotModified
		return resp, nil
	}
	names, err := api.Store.Search(r.Context(), path)
	if err != nil {
		return nil, err
	}
	visible := make([]interface{}, 0, len(names))
	for _, name := range names {
		if r.visible(name) {
			visible = append(visible, name)
		}
	}
	resp.Doc = visible
	return resp, nil
}

// visible returns true if a child of the search target may be listed.
func (r *request) visible(name string) bool {
	if r.root {
		for _, top := range r.idx.Roots() {
			if top.Access.Readable() && store.Split(r.idx.RootPath(top))[0] == name {
				return true
			}
		}
		return false
	}
	n := r.loc.Node
	switch {
	case r.loc.Member || n.Kind == schema.Leaf:
		return false
	case n.Kind == schema.LeafList, n.Kind == schema.List && !r.loc.Entry:
		return true
	}
	child := n.Child(name)
	return child != nil && !child.IsOperation() && child.Access.Readable()
}

// PostPlain merges a document into the target, or invokes an action.
func (api *restAPI) PostPlain(r *request) (*response, error) {
	if r.root || r.search {
		return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
	}
	if r.loc.Operation != nil {
		return api.invoke(r, r.loc.Operation, r.loc.StorePath)
	}
	if err := r.checkWritable(); err != nil {
		return nil, err
	}
	body, err := r.body()
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errNoBody
	}
	w, err := datatree.DecodeContent(r.idx, r.loc, body)
	if err != nil {
		return nil, err
	}
	batch := store.Batch{
		Values: w.Values,
		Guards: r.guards(r.loc.StorePath),
	}
	if _, err := api.Store.SetTree(r.Context(), batch); err != nil {
		return nil, err
	}
	return &response{Status: http.StatusOK}, nil
}

// DeletePlain removes the target and everything beneath it.
func (api *restAPI) DeletePlain(r *request) (*response, error) {
	if r.root || r.search {
		return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
	}
	if err := r.checkWritable(); err != nil {
		return nil, err
	}
	batch := store.Batch{
		Prune:  []string{r.loc.StorePath},
		Guards: r.guards(r.loc.StorePath),
	}
	if _, err := api.Store.SetTree(r.Context(), batch); err != nil {
		return nil, err
	}
	return &response{Status: http.StatusOK}, nil
}
