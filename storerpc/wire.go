// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package storerpc carries the store interface over CBOR-RPC, so that
// one process can serve its store to another.  This is how the
// gateway's proxy mounts reach remote stores and how the storectl tool
// talks to a running daemon.
//
// Each message is a CBOR map wrapped in tag 24.  A request carries
// "method", "id", and "params"; a response carries "id" and either
// "result" or "error".  Method names are the snake-case forms of the
// store.Store methods, such as "get_tree".  A connection handles one
// request at a time, in order.
//
// Guards cannot travel over the wire.  Client.SetTree evaluates each
// guard locally against the current revision of its path, and sends
// the versions it saw; the server applies the batch only if those
// versions are still current, and the client retries otherwise.
// Client.Watch always returns store.ErrNotSupported.
package storerpc

import (
	"reflect"

	"github.com/ugorji/go/codec"
)

// Request defines the fields of a CBOR-RPC request.
type Request struct {
	// Name of the RPC method to invoke.
	Method string
	// Sequential, non-unique identifier for this request.
	ID uint
	// List of arbitrary parameters.
	Params []interface{}
}

// Response defines the fields of a CBOR-RPC response.
type Response struct {
	// Sequential, non-unique identifier for this response.  This should
	// always match the identifier from the corresponding Request.
	ID uint
	// Arbitrary response object; should be nil on error.
	Result interface{}
	// Error message on failure; should be empty on success.
	Error string
	// ErrorKind classifies Error so the client can rebuild the
	// store's sentinel errors.
	ErrorKind string
}

// Actual "wire format" representation for top-level CBOR-RPC messages.
type wireFormat []interface{}

// MapBySlice is a marker for the codec library to indicate this is
// actually a map.
func (w wireFormat) MapBySlice() {}

// Codec extension plugin to convert Request.
type reqExt struct {
	cbor *codec.CborHandle
}

// Encode Request as a byte string.
func (x reqExt) WriteExt(v interface{}) (resp []byte) {
	request := v.(Request)

	wire := wireFormat{
		"method", request.Method,
		"id", uint64(request.ID),
		"params", request.Params,
	}

	encoder := codec.NewEncoderBytes(&resp, x.cbor)
	encoder.MustEncode(wire)
	return
}

// Decode a byte string into a Request.
func (x reqExt) ReadExt(v interface{}, data []byte) {
	decoder := codec.NewDecoderBytes(data, x.cbor)
	var wire map[string]interface{}
	decoder.MustDecode(&wire)

	result := v.(*Request)
	if method := SloppyString(wire["method"]); method != nil {
		result.Method = *method
	}
	result.ID = wireID(wire["id"])
	result.Params, _ = wire["params"].([]interface{})
}

// Export a Request in some format.
func (x reqExt) ConvertExt(v interface{}) interface{} {
	return x.WriteExt(v)
}

// Unpackage some format into a Request.
func (x reqExt) UpdateExt(dest interface{}, v interface{}) {
	x.ReadExt(dest, v.([]byte))
}

// Codec extension plugin to convert Response.
type respExt struct {
	cbor *codec.CborHandle
}

// Encode Response as a byte string.
func (x respExt) WriteExt(v interface{}) (resp []byte) {
	response := v.(Response)

	wire := wireFormat{
		"id", uint64(response.ID),
	}
	if response.Result != nil {
		wire = append(wire, "result", response.Result)
	}
	if response.Error != "" || response.ErrorKind != "" {
		errorDict := map[string]string{"message": response.Error}
		if response.ErrorKind != "" {
			errorDict["kind"] = response.ErrorKind
		}
		wire = append(wire, "error", errorDict)
	}

	encoder := codec.NewEncoderBytes(&resp, x.cbor)
	encoder.MustEncode(wire)
	return
}

// Decode a byte string into a Response.
func (x respExt) ReadExt(v interface{}, data []byte) {
	decoder := codec.NewDecoderBytes(data, x.cbor)
	var wire map[string]interface{}
	decoder.MustDecode(&wire)

	response := v.(*Response)
	response.ID = wireID(wire["id"])
	response.Result = wire["result"]
	if errorDict := StringKeyedMap(wire["error"]); errorDict != nil {
		if msg := SloppyString(errorDict["message"]); msg != nil {
			response.Error = *msg
		}
		if kind := SloppyString(errorDict["kind"]); kind != nil {
			response.ErrorKind = *kind
		}
	}
}

// Export a Response in some format.
func (x respExt) ConvertExt(v interface{}) interface{} {
	return x.WriteExt(v)
}

// Unpackage some format into a Response.
func (x respExt) UpdateExt(dest interface{}, v interface{}) {
	x.ReadExt(dest, v.([]byte))
}

// wireID extracts a message identifier, which may have been decoded
// as either a signed or unsigned integer.
func wireID(v interface{}) uint {
	switch id := v.(type) {
	case uint64:
		return uint(id)
	case int64:
		return uint(id)
	default:
		return 0
	}
}

// NewHandle creates a CBOR codec handle that understands Request and
// Response.
func NewHandle() (*codec.CborHandle, error) {
	cbor := new(codec.CborHandle)
	if err := SetExts(cbor); err != nil {
		return nil, err
	}
	return cbor, nil
}

// SetExts sets up the CBOR codec to understand the other objects in
// this package.
func SetExts(cbor *codec.CborHandle) error {
	reqExt := new(reqExt)
	reqExt.cbor = cbor
	var req Request
	if err := cbor.SetExt(reflect.TypeOf(req), 24, reqExt); err != nil {
		return err
	}

	respExt := new(respExt)
	respExt.cbor = cbor
	var resp Response
	if err := cbor.SetExt(reflect.TypeOf(resp), 24, respExt); err != nil {
		return err
	}
	return nil
}
