// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/revision"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/uripath"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// RESTCONF error-type values.
const (
	TypeTransport   = "transport"
	TypeRPC         = "rpc"
	TypeProtocol    = "protocol"
	TypeApplication = "application"
)

// RESTCONF error-tag values used by the gateway.
const (
	TagInvalidValue          = "invalid-value"
	TagUnknownNamespace      = "unknown-namespace"
	TagAccessDenied          = "access-denied"
	TagMalformedMessage      = "malformed-message"
	TagDataExists            = "data-exists"
	TagDataMissing           = "data-missing"
	TagOperationFailed       = "operation-failed"
	TagOperationNotSupported = "operation-not-supported"
)

// Error is one entry of a RESTCONF error document, along with the
// HTTP status it is sent with.
type Error struct {
	Type    string
	Tag     string
	Message string
	Path    string
	Status  int

	// Stack holds the goroutine stack of a recovered panic.  It
	// is logged, never sent.
	Stack string
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Tag
}

// HTTPStatus returns the status the error is sent with.
func (e Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotAcceptable is returned if the Accept: header does not mention
// any media type the resource can be sent as.
type ErrNotAcceptable struct{}

func (e ErrNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

// HTTPStatus returns a fixed 406 Not Acceptable error code.
func (e ErrNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// ErrMethodNotAllowed flags a method the target resource does not
// support.
type ErrMethodNotAllowed struct {
	Method string
}

func (e ErrMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

// HTTPStatus returns a fixed 405 Method Not Allowed error code.
func (e ErrMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

// ErrDataExists is returned when a create targets something that is
// already there.
type ErrDataExists struct {
	Path string
}

func (e ErrDataExists) Error() string {
	return fmt.Sprintf("data already exists at %q", e.Path)
}

// HTTPStatus returns a fixed 409 Conflict error code.
func (e ErrDataExists) HTTPStatus() int {
	return http.StatusConflict
}

// ErrDataMissing is returned when a delete or merge targets something
// that is not there.
type ErrDataMissing struct {
	Path string
}

func (e ErrDataMissing) Error() string {
	return fmt.Sprintf("no data at %q", e.Path)
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrDataMissing) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// FromError maps any error the gateway can produce onto a RESTCONF
// error.  Errors not otherwise known become 500 operation-failed, or
// take their status from ErrorStatus.
func FromError(err error) Error {
	protocol := func(status int, tag string) Error {
		return Error{Type: TypeProtocol, Tag: tag, Message: err.Error(), Status: status}
	}
	application := func(status int, tag string) Error {
		return Error{Type: TypeApplication, Tag: tag, Message: err.Error(), Status: status}
	}

	switch err {
	case store.ErrNotFound:
		return protocol(http.StatusNotFound, TagInvalidValue)
	case store.ErrNotSupported:
		return application(http.StatusNotImplemented, TagOperationNotSupported)
	case uripath.ErrMalformedPath, datatree.ErrMalformedQuery:
		return protocol(http.StatusBadRequest, TagMalformedMessage)
	case revision.ErrPreconditionFailed:
		return protocol(http.StatusPreconditionFailed, TagOperationFailed)
	}

	switch et := err.(type) {
	case Error:
		return et
	case ErrNotFound:
		e := FromError(et.Err)
		e.Status = http.StatusNotFound
		return e
	case ErrBadRequest:
		e := FromError(et.Err)
		e.Status = http.StatusBadRequest
		if e.Tag == TagOperationFailed {
			e.Tag = TagMalformedMessage
		}
		return e
	case ErrUnsupportedMediaType, ErrNotAcceptable:
		return protocol(et.(ErrorStatus).HTTPStatus(), TagInvalidValue)
	case ErrMethodNotAllowed:
		return protocol(http.StatusMethodNotAllowed, TagOperationNotSupported)
	case ErrDataExists:
		e := application(http.StatusConflict, TagDataExists)
		e.Path = et.Path
		return e
	case ErrDataMissing:
		e := application(http.StatusNotFound, TagDataMissing)
		e.Path = et.Path
		return e
	case schema.ErrNoSuchNode:
		return protocol(http.StatusNotFound, TagInvalidValue)
	case schema.ErrUnknownNamespace:
		return protocol(http.StatusBadRequest, TagUnknownNamespace)
	case schema.ErrAccessDenied:
		e := protocol(http.StatusForbidden, TagAccessDenied)
		e.Path = et.Path
		return e
	case schema.ErrBadKeys, store.ErrBadPath, datatree.ErrBadDocument:
		return protocol(http.StatusBadRequest, TagMalformedMessage)
	case schema.ErrOutOfRange, schema.ErrInvalidEnum, schema.ErrInvalidValue:
		return application(http.StatusBadRequest, TagMalformedMessage)
	}

	if es, ok := err.(ErrorStatus); ok {
		return application(es.HTTPStatus(), TagOperationFailed)
	}
	return application(http.StatusInternalServerError, TagOperationFailed)
}

// FromPanic builds an error from a recovered panic.  Typical use is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             e := restdata.FromPanic(obj)
//             // write e out as makes sense
//         }
//    }
func FromPanic(obj interface{}) Error {
	e := Error{
		Type:   TypeApplication,
		Tag:    TagOperationFailed,
		Status: http.StatusInternalServerError,
	}
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
	return e
}

// ErrorsDocument builds the RESTCONF errors document for a set of
// errors.
func ErrorsDocument(errs ...Error) map[string]interface{} {
	list := make([]interface{}, len(errs))
	for i, e := range errs {
		entry := map[string]interface{}{
			"error-type": e.Type,
			"error-tag":  e.Tag,
		}
		if e.Message != "" {
			entry["error-message"] = e.Message
		}
		if e.Path != "" {
			entry["error-path"] = e.Path
		}
		list[i] = entry
	}
	return map[string]interface{}{
		RestconfErrors: map[string]interface{}{"error": list},
	}
}

// ParseErrors reads the errors out of a RESTCONF errors document.
// Anything that is not an errors document yields no errors.
func ParseErrors(doc interface{}, status int) []Error {
	top, ok := doc.(map[string]interface{})
	if !ok {
		return nil
	}
	body, ok := top[RestconfErrors].(map[string]interface{})
	if !ok {
		return nil
	}
	list, _ := body["error"].([]interface{})
	var errs []Error
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		e := Error{Status: status}
		e.Type, _ = entry["error-type"].(string)
		e.Tag, _ = entry["error-tag"].(string)
		e.Message, _ = entry["error-message"].(string)
		e.Path, _ = entry["error-path"].(string)
		errs = append(errs, e)
	}
	return errs
}
