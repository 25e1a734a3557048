// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"net/http"
	"testing"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/revision"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		Err    error
		Status int
		Tag    string
	}{
		{store.ErrNotFound, http.StatusNotFound, TagInvalidValue},
		{schema.ErrNoSuchNode{Path: "/x"}, http.StatusNotFound, TagInvalidValue},
		{schema.ErrUnknownNamespace{Prefix: "x"}, http.StatusBadRequest, TagUnknownNamespace},
		{schema.ErrAccessDenied{Path: "/x"}, http.StatusForbidden, TagAccessDenied},
		{schema.ErrOutOfRange{Name: "x", Value: "6"}, http.StatusBadRequest, TagMalformedMessage},
		{schema.ErrInvalidEnum{Name: "x", Value: "y"}, http.StatusBadRequest, TagMalformedMessage},
		{schema.ErrBadKeys{Name: "x"}, http.StatusBadRequest, TagMalformedMessage},
		{datatree.ErrMalformedQuery, http.StatusBadRequest, TagMalformedMessage},
		{datatree.ErrBadDocument{Reason: "x"}, http.StatusBadRequest, TagMalformedMessage},
		{revision.ErrPreconditionFailed, http.StatusPreconditionFailed, TagOperationFailed},
		{ErrDataExists{Path: "/x"}, http.StatusConflict, TagDataExists},
		{ErrDataMissing{Path: "/x"}, http.StatusNotFound, TagDataMissing},
		{ErrMethodNotAllowed{Method: "PATCH"}, http.StatusMethodNotAllowed, TagOperationNotSupported},
		{ErrUnsupportedMediaType{Type: "text/plain"}, http.StatusUnsupportedMediaType, TagInvalidValue},
		{ErrNotAcceptable{}, http.StatusNotAcceptable, TagInvalidValue},
		{ErrNotFound{Err: errors.New("gone")}, http.StatusNotFound, TagOperationFailed},
		{ErrBadRequest{Err: errors.New("eof")}, http.StatusBadRequest, TagMalformedMessage},
		{errors.New("boom"), http.StatusInternalServerError, TagOperationFailed},
	}
	for _, test := range tests {
		e := FromError(test.Err)
		assert.Equal(t, test.Status, e.HTTPStatus(), "%v", test.Err)
		assert.Equal(t, test.Tag, e.Tag, "%v", test.Err)
		assert.Equal(t, test.Err.Error(), e.Message)
	}

	e := Error{Type: TypeApplication, Tag: TagOperationFailed, Message: "nope", Status: http.StatusBadRequest}
	assert.Equal(t, e, FromError(e))
}

func TestFromPanic(t *testing.T) {
	e := FromPanic("oh no")
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())
	assert.Equal(t, "oh no", e.Message)
	assert.Contains(t, e.Stack, "goroutine")

	e = FromPanic(errors.New("bad"))
	assert.Equal(t, "bad", e.Message)
}

func TestErrorsDocument(t *testing.T) {
	doc := ErrorsDocument(FromError(revision.ErrPreconditionFailed))
	bytes, err := MarshalJSON(doc)
	if assert.NoError(t, err) {
		assert.Equal(t,
			`{"ietf-restconf:errors":{"error":[{"error-message":"object modified","error-tag":"operation-failed","error-type":"protocol"}]}}`,
			string(bytes))
	}

	parsed, err := UnmarshalJSON(bytes)
	if assert.NoError(t, err) {
		errs := ParseErrors(parsed, http.StatusPreconditionFailed)
		if assert.Len(t, errs, 1) {
			assert.Equal(t, Error{
				Type:    TypeProtocol,
				Tag:     TagOperationFailed,
				Message: "object modified",
				Status:  http.StatusPreconditionFailed,
			}, errs[0])
		}
	}

	assert.Nil(t, ParseErrors(map[string]interface{}{"x": 1}, 400))
	assert.Nil(t, ParseErrors("text", 400))
}
