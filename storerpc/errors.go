// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storerpc

import (
	"errors"

	"github.com/diffeo/go-restconf/store"
)

// ErrConflict is returned when a guarded batch could not be applied
// because a guarded path kept changing underneath it.
var ErrConflict = errors.New("guarded path changed during batch")

// Error kinds carried in a response's error map.  For kindBadPath the
// message is the offending path.
const (
	kindNotFound     = "not-found"
	kindNotSupported = "not-supported"
	kindBadPath      = "bad-path"
	kindConflict     = "conflict"
)

// errorResponse fills in the error fields of a response.
func errorResponse(response *Response, err error) {
	response.Error = err.Error()
	switch e := err.(type) {
	case store.ErrBadPath:
		response.ErrorKind = kindBadPath
		response.Error = e.Path
		return
	}
	switch err {
	case store.ErrNotFound:
		response.ErrorKind = kindNotFound
	case store.ErrNotSupported:
		response.ErrorKind = kindNotSupported
	case ErrConflict:
		response.ErrorKind = kindConflict
	}
}

// RemoteError is an error reported by the server that does not match
// any of the store's known errors.
type RemoteError struct {
	Message string
}

func (e RemoteError) Error() string {
	return "remote store: " + e.Message
}

// responseError rebuilds the error a response describes, or returns
// nil if it describes success.
func responseError(response Response) error {
	switch response.ErrorKind {
	case kindNotFound:
		return store.ErrNotFound
	case kindNotSupported:
		return store.ErrNotSupported
	case kindBadPath:
		return store.ErrBadPath{Path: response.Error}
	case kindConflict:
		return ErrConflict
	}
	if response.Error != "" {
		return RemoteError{Message: response.Error}
	}
	return nil
}
