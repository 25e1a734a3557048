// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/store"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// openStream subscribes to changes beneath the target of a GET.  The
// response holds the connection open and sends the target every time
// something beneath it changes.  Each change is rendered by itself,
// with the same rules as an ordinary GET.  The stream ends when the
// client goes away.
func (api *restAPI) openStream(r *request) (*response, error) {
	path := r.loc.StorePath
	if r.root {
		path = "/"
	}
	changes, err := api.Store.Watch(r.Context(), path)
	if err != nil {
		return nil, err
	}
	return &response{Stream: func(w http.ResponseWriter, r *request) {
		r.streamChanges(w, changes)
	}}, nil
}

func (r *request) streamChanges(w http.ResponseWriter, changes <-chan store.Change) {
	log := logrus.WithFields(logrus.Fields{
		"id":     r.id,
		"stream": uuid.NewV4().String(),
		"path":   r.URL.EscapedPath(),
	})
	w.Header().Set("Content-Type", r.responseType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	log.Debug("stream opened")
	defer log.Debug("stream closed")

	opts := r.renderOptions()
	for change := range changes {
		doc := r.renderChange(change, opts)
		if doc == nil {
			continue
		}
		data, err := restdata.MarshalJSON(doc)
		if err != nil {
			log.WithError(err).Warn("could not encode change")
			continue
		}
		if r.responseType == restdata.EventStreamMediaType {
			data = append(append([]byte("data: "), data...), '\n', '\n')
		} else {
			data = append(data, '\n')
		}
		if _, err := w.Write(data); err != nil {
			log.WithError(err).Debug("could not write change")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// renderChange renders the values one change wrote beneath the
// target.  Deletions carry no data, so a change that only deletes
// renders as the empty document a GET of the missing target returns.
// Returns nil if the change left nothing beneath the target.
func (r *request) renderChange(change store.Change, opts datatree.RenderOptions) interface{} {
	if r.root {
		tree := datatree.Apply(datatree.AssembleRoots(r.idx, change.Values), r.loc, r.query)
		doc := datatree.Render(tree, "", opts)
		if doc == nil {
			if !r.deletes(change, store.Root) {
				return nil
			}
			doc = map[string]interface{}{}
		}
		return map[string]interface{}{restconfDataRoot: doc}
	}
	tree := datatree.Apply(datatree.Assemble(r.loc, change.Values), r.loc, r.query)
	doc := datatree.Render(tree, r.targetName(), opts)
	if doc == nil && !r.deletes(change, r.loc.StorePath) {
		return nil
	}
	if r.profile == PlainAPI {
		return r.shape(doc)
	}
	if doc == nil {
		return map[string]interface{}{}
	}
	return doc
}

// deletes returns true if change removed anything at or beneath
// path.
func (r *request) deletes(change store.Change, path string) bool {
	for _, v := range change.Values {
		if v.Value == "" && store.Under(v.Path, path) {
			return true
		}
	}
	return false
}
