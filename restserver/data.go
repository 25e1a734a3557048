// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/revision"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/uripath"
)

// replaceAttempts bounds how often a replace is retried when the
// target changes between reading it and writing it.
const replaceAttempts = 10

// errChanged is returned from a replace guard when the target moved
// on since it was read.
var errChanged = errors.New("target changed during replace")

// restconfDataRoot names the datastore resource in documents.
const restconfDataRoot = "ietf-restconf:data"

func (api *restAPI) dataHandler() *resourceHandler {
	return &resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Stream:  true,
		Data:    true,
		Context: api.DataContext,
		Get:     api.GetData,
		Put:     api.PutData,
		Post:    api.PostData,
		Patch:   api.PatchData,
		Delete:  api.DeleteData,
	}
}

// DataContext resolves the path beneath {root}/data.
func (api *restAPI) DataContext(r *request) error {
	if err := r.parseQuery(); err != nil {
		return err
	}
	escaped := strings.TrimPrefix(r.URL.EscapedPath(), api.Root+"/data")
	return r.locate(escaped)
}

// guards returns the guards every write to path carries: the
// client's preconditions, if any, plus extra.
func (r *request) guards(path string, extra ...store.Guard) []store.Guard {
	guards := extra
	if revision.HasWriteConditions(r.Header) {
		guards = append(guards, revision.Guard(path, r.Header))
	}
	return guards
}

// GetData reads a data resource.
func (api *restAPI) GetData(r *request) (*response, error) {
	if !r.root {
		if r.loc.Operation != nil {
			return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
		}
		if err := r.checkReadable(); err != nil {
			return nil, err
		}
	}
	if isStream(r.responseType) {
		return api.openStream(r)
	}

	path := "/"
	if !r.root {
		path = r.loc.StorePath
	}
	snap, err := api.Store.GetTree(r.Context(), path)
	if err != nil {
		return nil, err
	}
	resp := &response{Revision: snap.Revision, Stamp: true}
	if revision.NotModified(r.Header, snap.Revision) {
		resp.Status = http.StatusNotModified
		return resp, nil
	}
	opts := r.renderOptions()

	if r.root {
		tree := datatree.Apply(datatree.AssembleRoots(r.idx, snap.Values), schema.Location{}, r.query)
		content := datatree.Render(tree, "", opts)
		if content == nil {
			content = map[string]interface{}{}
		}
		resp.Doc = map[string]interface{}{restconfDataRoot: content}
		if tree != nil {
			resp.XML = func(w io.Writer) error {
				return datatree.RenderXML(w, tree, "", opts)
			}
		}
		return resp, nil
	}

	tree := datatree.Assemble(r.loc, snap.Values)
	if tree == nil && r.loc.Entry {
		return nil, restdata.ErrDataMissing{Path: r.loc.StorePath}
	}
	tree = datatree.Apply(tree, r.loc, r.query)
	name := r.targetName()
	doc := datatree.Render(tree, name, opts)
	if doc == nil {
		return resp, nil
	}
	resp.Doc = doc
	resp.XML = func(w io.Writer) error {
		return datatree.RenderXML(w, tree, name, opts)
	}
	return resp, nil
}

// PutData creates or replaces a data resource.  Everything writable
// beneath the target that the document does not mention is deleted.
func (api *restAPI) PutData(r *request) (*response, error) {
	if !r.root {
		if err := r.checkWritable(); err != nil {
			return nil, err
		}
	}
	doc, err := r.document()
	if err != nil {
		return nil, err
	}

	var writes []datatree.Write
	var targets []schema.Location
	path := "/"
	if r.root {
		for name, value := range doc {
			w, err := datatree.DecodeChild(r.idx, schema.Location{}, map[string]interface{}{name: value})
			if err != nil {
				return nil, err
			}
			writes = append(writes, w)
			targets = append(targets, schema.Location{Node: w.Node, StorePath: w.Path, Entry: w.Entry, Keys: w.Keys})
		}
	} else {
		w, err := datatree.DecodeTarget(r.idx, r.loc, doc)
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
		targets = append(targets, r.loc)
		path = r.loc.StorePath
	}

	for attempt := 0; attempt < replaceAttempts; attempt++ {
		snap, err := api.Store.GetTree(r.Context(), path)
		if err != nil {
			return nil, err
		}
		var batch store.Batch
		for i, w := range writes {
			batch.Values = append(batch.Values, datatree.Replaced(targets[i], w, snap.Values)...)
			batch.Values = append(batch.Values, w.Values...)
		}
		read := snap.Revision
		batch.Guards = r.guards(path, store.Guard{
			Path: path,
			Check: func(rev store.Revision) error {
				if rev.Version != read.Version {
					return errChanged
				}
				return nil
			},
		})
		rev, err := api.Store.SetTree(r.Context(), batch)
		if err == errChanged {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rev.IsZero() {
			rev = read
		}
		resp := &response{Status: http.StatusNoContent, Revision: rev, Stamp: true}
		if read.IsZero() {
			resp.Status = http.StatusCreated
		}
		return resp, nil
	}
	return nil, restdata.Error{
		Type:    restdata.TypeApplication,
		Tag:     restdata.TagOperationFailed,
		Message: errChanged.Error(),
		Status:  http.StatusConflict,
	}
}

// PatchData merges a document into a data resource.  A list entry
// must already exist to be merged into.
func (api *restAPI) PatchData(r *request) (*response, error) {
	if !r.root {
		if err := r.checkWritable(); err != nil {
			return nil, err
		}
	}
	doc, err := r.document()
	if err != nil {
		return nil, err
	}

	var batch store.Batch
	path := "/"
	if r.root {
		for name, value := range doc {
			w, err := datatree.DecodeChild(r.idx, schema.Location{}, map[string]interface{}{name: value})
			if err != nil {
				return nil, err
			}
			batch.Values = append(batch.Values, w.Values...)
		}
		batch.Guards = r.guards(path)
	} else {
		w, err := datatree.DecodeTarget(r.idx, r.loc, doc)
		if err != nil {
			return nil, err
		}
		batch.Values = w.Values
		path = r.loc.StorePath
		var extra []store.Guard
		if r.loc.Entry {
			extra = append(extra, store.Guard{
				Path: path,
				Check: func(rev store.Revision) error {
					if rev.IsZero() {
						return restdata.ErrDataMissing{Path: path}
					}
					return nil
				},
			})
		}
		batch.Guards = r.guards(path, extra...)
	}

	rev, err := api.Store.SetTree(r.Context(), batch)
	if err != nil {
		return nil, err
	}
	if rev.IsZero() {
		if rev, err = api.Store.Revision(r.Context(), path); err != nil {
			return nil, err
		}
	}
	return &response{Status: http.StatusNoContent, Revision: rev, Stamp: true}, nil
}

// PostData creates a child of a data resource, or invokes an action.
func (api *restAPI) PostData(r *request) (*response, error) {
	if !r.root && r.loc.Operation != nil {
		return api.invoke(r, r.loc.Operation, r.loc.StorePath)
	}
	if !r.root {
		if r.loc.Node.Kind == schema.Leaf || r.loc.Node.Kind == schema.LeafList || r.loc.Member {
			return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
		}
		if err := r.checkWritable(); err != nil {
			return nil, err
		}
	}
	doc, err := r.document()
	if err != nil {
		return nil, err
	}
	loc, parent := r.loc, r.loc.StorePath
	if r.root {
		loc, parent = schema.Location{}, "/"
	}
	w, err := datatree.DecodeChild(r.idx, loc, doc)
	if err != nil {
		return nil, err
	}

	batch := store.Batch{
		Values: w.Values,
		Guards: r.guards(parent, store.Guard{
			Path: w.Path,
			Check: func(rev store.Revision) error {
				if !rev.IsZero() {
					return restdata.ErrDataExists{Path: w.Path}
				}
				return nil
			},
		}),
	}
	rev, err := api.Store.SetTree(r.Context(), batch)
	if err != nil {
		return nil, err
	}
	return &response{
		Status:   http.StatusCreated,
		Revision: rev,
		Stamp:    true,
		Location: r.childLocation(w),
	}, nil
}

// childLocation builds the URL of a resource created by POST.
func (r *request) childLocation(w datatree.Write) string {
	base := strings.TrimSuffix(r.URL.EscapedPath(), "/")
	keys := func() string {
		escaped := make([]string, len(w.Keys))
		for i, k := range w.Keys {
			escaped[i] = uripath.EscapeKey(k)
		}
		return "=" + strings.Join(escaped, ",")
	}
	if !r.root && r.loc.Node.Kind == schema.List && !r.loc.Entry {
		return base + keys()
	}
	name := w.Node.Name
	if r.root || w.Node.Module != r.loc.Node.Module {
		name = w.Node.QualifiedName()
	}
	if w.Entry {
		name += keys()
	}
	return base + "/" + name
}

// DeleteData removes a data resource, which must exist.
func (api *restAPI) DeleteData(r *request) (*response, error) {
	if r.root {
		return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
	}
	if err := r.checkWritable(); err != nil {
		return nil, err
	}
	path := r.loc.StorePath
	batch := store.Batch{
		Prune: []string{path},
		Guards: r.guards(path, store.Guard{
			Path: path,
			Check: func(rev store.Revision) error {
				if rev.IsZero() {
					return restdata.ErrDataMissing{Path: path}
				}
				return nil
			},
		}),
	}
	if _, err := api.Store.SetTree(r.Context(), batch); err != nil {
		return nil, err
	}
	return &response{Status: http.StatusNoContent}, nil
}
