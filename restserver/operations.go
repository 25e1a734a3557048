// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/uripath"
)

// Operation implements an RPC or action.  It returns the output
// parameters as values whose paths are relative to the output, such
// as "/reboot-time"; an operation without output returns nil.
type Operation func(ctx context.Context, inv *Invocation) ([]store.Value, error)

// Invocation describes one call of an operation.
type Invocation struct {
	// Node is the schema node of the RPC or action.
	Node *schema.Node

	// Path is the store path of the data node an action is bound
	// to, or "" for an RPC.
	Path string

	// Input holds the validated input parameters, with paths
	// relative to the input such as "/delay".
	Input []store.Value

	// Store is the store the gateway serves.
	Store store.Store
}

// Arg returns the value of an input parameter, given as a relative
// path such as "/delay", or "" if it was not given.
func (inv *Invocation) Arg(path string) string {
	for _, v := range inv.Input {
		if v.Path == path {
			return v.Value
		}
	}
	return ""
}

// OperationError is returned by an operation that failed in a way the
// client should hear about.  If Message is empty the failure is
// treated as an internal error.
type OperationError struct {
	Message string
}

func (e OperationError) Error() string {
	if e.Message == "" {
		return "operation failed"
	}
	return e.Message
}

// HTTPStatus returns 400 if the operation explained itself and 500
// otherwise.
func (e OperationError) HTTPStatus() int {
	if e.Message == "" {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Operations is a registry of operation handlers, keyed by
// "module:name".
type Operations struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewOperations creates an empty registry.
func NewOperations() *Operations {
	return &Operations{ops: make(map[string]Operation)}
}

// Register adds or replaces the handler for an operation named
// "module:name".
func (o *Operations) Register(name string, op Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[name] = op
}

// Lookup returns the handler for an operation, or nil.
func (o *Operations) Lookup(name string) Operation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ops[name]
}

// OperationContext finds the RPC named beneath {root}/operations.
func (api *restAPI) OperationContext(r *request) error {
	escaped := strings.TrimPrefix(r.URL.EscapedPath(), api.Root+"/operations")
	path, err := uripath.Parse(escaped, true)
	if err != nil {
		return err
	}
	if len(path) != 1 || path[0].HasKeys {
		return schema.ErrNoSuchNode{Path: path.String()}
	}
	m, err := r.idx.Resolve(path[0].Prefix, nil)
	if err != nil {
		return err
	}
	op := r.idx.Operation(m, path[0].Name)
	if op == nil {
		return schema.ErrNoSuchNode{Path: path.String()}
	}
	r.path = path
	r.loc = schema.Location{Operation: op, Qualified: path[0].Prefix != ""}
	return nil
}

// InvokeRPC runs the RPC found by OperationContext.
func (api *restAPI) InvokeRPC(r *request) (*response, error) {
	return api.invoke(r, r.loc.Operation, "")
}

// errNotSupported is sent for operations nothing is registered for.
func errNotSupported(op *schema.Node) error {
	return restdata.Error{
		Type:    restdata.TypeApplication,
		Tag:     restdata.TagOperationNotSupported,
		Message: "operation " + op.QualifiedName() + " is not implemented",
		Status:  http.StatusNotImplemented,
	}
}

// invoke decodes an operation's input, runs it, and renders its
// output.  path is the data node an action is bound to.
func (api *restAPI) invoke(r *request, op *schema.Node, path string) (*response, error) {
	body, err := r.body()
	if err != nil {
		return nil, err
	}
	input, err := r.operationInput(op, body)
	if err != nil {
		return nil, err
	}

	handler := api.Operations.Lookup(op.QualifiedName())
	if handler == nil {
		return nil, errNotSupported(op)
	}
	output, err := handler(r.Context(), &Invocation{
		Node:  op,
		Path:  path,
		Input: input,
		Store: api.Store,
	})
	if err != nil {
		return nil, operationFailure(err)
	}

	status := http.StatusNoContent
	if r.profile == PlainAPI {
		status = http.StatusOK
	}
	if op.Output == nil || len(output) == 0 {
		return &response{Status: status}, nil
	}
	loc := schema.Location{Node: op.Output, StorePath: "/"}
	tree := datatree.Assemble(loc, output)
	opts := r.renderOptions()
	if r.profile == PlainAPI {
		return &response{Doc: r.shape(datatree.Render(tree, op.Output.Name, opts))}, nil
	}
	name := op.Module.Name + ":" + op.Output.Name
	doc := datatree.Render(tree, name, opts)
	if doc == nil {
		return &response{Status: status}, nil
	}
	return &response{
		Doc: doc,
		XML: func(w io.Writer) error {
			return datatree.RenderXML(w, tree, op.Output.Name, opts)
		},
	}, nil
}

// operationInput validates an operation's input document.  RESTCONF
// wraps the input in a "module:input" member; the plain API sends its
// members directly.
func (r *request) operationInput(op *schema.Node, body interface{}) ([]store.Value, error) {
	if body == nil {
		return nil, nil
	}
	if op.Input == nil {
		if doc, ok := body.(map[string]interface{}); ok && len(doc) == 0 {
			return nil, nil
		}
		return nil, datatree.ErrBadDocument{Reason: op.QualifiedName() + " takes no input"}
	}
	loc := schema.Location{Node: op.Input, StorePath: "/"}
	var w datatree.Write
	var err error
	if r.profile == RESTCONF {
		doc, ok := body.(map[string]interface{})
		if !ok {
			return nil, errNotObject
		}
		w, err = datatree.DecodeTarget(r.idx, loc, doc)
	} else {
		w, err = datatree.DecodeContent(r.idx, loc, body)
	}
	if err != nil {
		return nil, err
	}
	return w.Values, nil
}

// operationFailure maps an operation's error onto the response sent.
func operationFailure(err error) error {
	switch et := err.(type) {
	case OperationError:
		return restdata.Error{
			Type:    restdata.TypeApplication,
			Tag:     restdata.TagOperationFailed,
			Message: et.Error(),
			Status:  et.HTTPStatus(),
		}
	case restdata.Error:
		return et
	}
	return restdata.Error{
		Type:    restdata.TypeApplication,
		Tag:     restdata.TagOperationFailed,
		Message: err.Error(),
		Status:  http.StatusInternalServerError,
	}
}
