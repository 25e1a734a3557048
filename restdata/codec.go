// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"io"
	"mime"
	"reflect"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/schema"
	"github.com/ugorji/go/codec"
)

// JSONHandle returns the codec settings every JSON document in the
// gateway is written and read with: object keys are sorted, and
// objects decode as map[string]interface{}.
func JSONHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.Canonical = true
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}

// CanonicalType maps a Content-Type header to one of YangDataJSON,
// YangDataXML or JSONMediaType, or returns ErrUnsupportedMediaType.
func CanonicalType(contentType string) (string, error) {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		contentType = "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedMediaType{Type: contentType}
	}
	switch mediaType {
	case YangDataJSON, YangDataXML, JSONMediaType:
		return mediaType, nil
	case "text/json":
		return JSONMediaType, nil
	case "application/xml", "text/xml":
		return YangDataXML, nil
	}
	return "", ErrUnsupportedMediaType{Type: mediaType}
}

// Decode reads a request or response body into generic form: objects
// become map[string]interface{}, arrays []interface{}.  XML bodies are
// interpreted against idx, which may be nil for JSON.  Syntax errors
// are returned as ErrBadRequest.
func Decode(contentType string, r io.Reader, idx *schema.Index) (interface{}, error) {
	mediaType, err := CanonicalType(contentType)
	if err != nil {
		return nil, err
	}
	if mediaType == YangDataXML {
		doc, err := datatree.ParseXML(idx, r)
		if err != nil {
			if _, bad := err.(datatree.ErrBadDocument); bad {
				return nil, ErrBadRequest{Err: err}
			}
			return nil, err
		}
		return doc, nil
	}

	var out interface{}
	decoder := codec.NewDecoder(r, JSONHandle())
	if err := decoder.Decode(&out); err != nil {
		return nil, ErrBadRequest{Err: err}
	}
	return out, nil
}

// EncodeJSON writes v as a JSON document.
func EncodeJSON(w io.Writer, v interface{}) error {
	return codec.NewEncoder(w, JSONHandle()).Encode(v)
}

// MarshalJSON returns the JSON encoding of v.
func MarshalJSON(v interface{}) ([]byte, error) {
	var out []byte
	err := codec.NewEncoderBytes(&out, JSONHandle()).Encode(v)
	return out, err
}

// UnmarshalJSON decodes a JSON document into generic form.
func UnmarshalJSON(in []byte) (interface{}, error) {
	return Decode(JSONMediaType, bytes.NewReader(in), nil)
}
