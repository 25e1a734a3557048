// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/gorilla/mux"
)

// Profile selects which of the two HTTP surfaces handles a request.
type Profile int

const (
	// PlainAPI is the legacy JSON surface: untyped values by
	// default, status-only errors, trailing slash for search.
	PlainAPI Profile = iota

	// RESTCONF is the RFC 8040 surface.
	RESTCONF
)

func (p Profile) String() string {
	if p == RESTCONF {
		return "restconf"
	}
	return "api"
}

// DefaultRoot is the URL path both profiles live under by default.
const DefaultRoot = "/api"

// Options configure the gateway routes.
type Options struct {
	// Root is the URL path of the RESTCONF root resource; the
	// plain API lives directly beneath it.  Defaults to
	// DefaultRoot.
	Root string

	// Operations holds the handlers for RPCs and actions.  If
	// nil, every operation is reported as not supported.
	Operations *Operations
}

// NewRouter creates a new HTTP handler that processes all gateway
// requests against a store, interpreting paths with the schemas
// currently published in schemas.  For more control over this setup,
// create a mux.Router and call PopulateRouter instead.
func NewRouter(st store.Store, schemas *schema.Holder, opts Options) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, st, schemas, opts)
	return r
}

// PopulateRouter adds gateway routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to add a metrics endpoint next to the gateway:
//
//     r := mux.NewRouter()
//     r.Handle("/metrics", promhttp.Handler())
//     restserver.PopulateRouter(r, st, schemas, restserver.Options{})
//
// Paths are matched on their escaped form, so the router is set not
// to clean or decode them.
func PopulateRouter(r *mux.Router, st store.Store, schemas *schema.Holder, opts Options) {
	root := strings.TrimSuffix(opts.Root, "/")
	if root == "" {
		root = DefaultRoot
	}
	ops := opts.Operations
	if ops == nil {
		ops = NewOperations()
	}
	r.SkipClean(true)
	r.UseEncodedPath()
	api := &restAPI{
		Store:      st,
		Schemas:    schemas,
		Operations: ops,
		Root:       root,
		Router:     r,
	}
	api.PopulateRouter(r)
}

// ProfileOf returns the profile a request under root is served by.
// This is what the daemon labels its metrics with.
func ProfileOf(root string, req *http.Request) Profile {
	root = strings.TrimSuffix(root, "/")
	if root == "" {
		root = DefaultRoot
	}
	path := req.URL.EscapedPath()
	if path == root || path == "/.well-known/host-meta" {
		return RESTCONF
	}
	for _, sub := range []string{"/data", "/operations", "/yang-library-version"} {
		if path == root+sub || strings.HasPrefix(path, root+sub+"/") {
			return RESTCONF
		}
	}
	return PlainAPI
}

// restAPI holds the persistent state for the gateway.
type restAPI struct {
	Store      store.Store
	Schemas    *schema.Holder
	Operations *Operations
	Root       string
	Router     *mux.Router
}

// PopulateRouter adds all gateway URL paths to a router.  More
// specific routes come first.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	root := api.Root
	r.Path("/.well-known/host-meta").Name("host-meta").Handler(&hostMeta{Root: root})
	r.Path(root).Name("root").Handler(&resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Get:     api.RootDocument,
	})
	r.Path(root + "/yang-library-version").Name("yang-library-version").Handler(&resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Get:     api.LibraryVersion,
	})
	r.Path(root + "/operations").Name("operations").Handler(&resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Get:     api.OperationsDocument,
	})
	r.PathPrefix(root + "/operations/").Name("operation").Handler(&resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Context: api.OperationContext,
		Post:    api.InvokeRPC,
	})
	r.Path(root + "/data/" + restdata.YangLibrary).Name("yang-library").Handler(&resourceHandler{
		api:     api,
		Profile: RESTCONF,
		Types:   restconfTypes,
		Get:     api.YangLibrary,
	})
	data := api.dataHandler()
	r.Path(root + "/data").Name("datastore").Handler(data)
	r.PathPrefix(root + "/data/").Name("data").Handler(data)
	r.PathPrefix(root + "/").Name("api").Handler(api.plainHandler())
}

// RootDocument returns the RESTCONF root resource.
func (api *restAPI) RootDocument(r *request) (*response, error) {
	return &response{Doc: restdata.RootDocument(schema.LibraryVersion)}, nil
}

// LibraryVersion returns the yang-library-version resource.
func (api *restAPI) LibraryVersion(r *request) (*response, error) {
	return &response{Doc: map[string]interface{}{
		restdata.YangLibraryVersion: schema.LibraryVersion,
	}}, nil
}

// OperationsDocument lists every RPC the schema declares.
func (api *restAPI) OperationsDocument(r *request) (*response, error) {
	ops := make(map[string]interface{})
	for _, op := range r.idx.Operations() {
		ops[op.QualifiedName()] = []interface{}{nil}
	}
	return &response{Doc: map[string]interface{}{restdata.Operations: ops}}, nil
}

// YangLibrary describes the loaded modules.
func (api *restAPI) YangLibrary(r *request) (*response, error) {
	return &response{Doc: map[string]interface{}{
		restdata.YangLibrary: r.idx.YangLibrary(),
	}}, nil
}

// hostMeta serves the RFC 6415 document RESTCONF clients use to find
// the API root.
type hostMeta struct {
	Root string
}

func (h *hostMeta) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/xrd+xml")
	w.WriteHeader(http.StatusOK)
	if req.Method == http.MethodHead {
		return
	}
	fmt.Fprintf(w, "<XRD xmlns=\"http://docs.oasis-open.org/ns/xri/xrd-1.0\">\n"+
		"  <Link rel=\"restconf\" href=%q/>\n</XRD>\n", h.Root)
}
