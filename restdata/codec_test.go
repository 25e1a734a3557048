// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"strings"
	"testing"

	"github.com/diffeo/go-restconf/schema/schematest"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalType(t *testing.T) {
	tests := []struct{ header, canonical string }{
		{"application/yang-data+json", YangDataJSON},
		{"application/yang-data+json; charset=utf-8", YangDataJSON},
		{"application/yang-data+xml", YangDataXML},
		{"application/xml", YangDataXML},
		{"application/json", JSONMediaType},
		{"text/json", JSONMediaType},
	}
	for _, test := range tests {
		mediaType, err := CanonicalType(test.header)
		if assert.NoError(t, err, test.header) {
			assert.Equal(t, test.canonical, mediaType)
		}
	}

	for _, bad := range []string{"", "text/plain", "application/yang-data+cbor", ";;"} {
		_, err := CanonicalType(bad)
		assert.IsType(t, ErrUnsupportedMediaType{}, err, bad)
	}
}

func TestDecodeJSON(t *testing.T) {
	doc, err := Decode(YangDataJSON, strings.NewReader(`{"b":[1,-2,"x"],"a":{"c":true}}`), nil)
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]interface{}{
			"a": map[string]interface{}{"c": true},
			"b": []interface{}{uint64(1), int64(-2), "x"},
		}, doc)
	}

	_, err = Decode(JSONMediaType, strings.NewReader(`{"a":`), nil)
	assert.IsType(t, ErrBadRequest{}, err)

	_, err = Decode("text/plain", strings.NewReader(`{}`), nil)
	assert.IsType(t, ErrUnsupportedMediaType{}, err)
}

func TestDecodeXML(t *testing.T) {
	idx := schematest.Index(t)
	doc, err := Decode(YangDataXML,
		strings.NewReader(`<priority xmlns="http://test.com/ns/yang/testing">3</priority>`), idx)
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]interface{}{"testing:priority": "3"}, doc)
	}

	_, err = Decode(YangDataXML, strings.NewReader(`<priority>`), idx)
	assert.IsType(t, ErrBadRequest{}, err)
}

func TestEncodeSorted(t *testing.T) {
	bytes, err := MarshalJSON(map[string]interface{}{"z": "1", "a": "2", "m": []interface{}{"3"}})
	if assert.NoError(t, err) {
		assert.Equal(t, `{"a":"2","m":["3"],"z":"1"}`, string(bytes))
	}
}

func TestRootDocument(t *testing.T) {
	bytes, err := MarshalJSON(RootDocument("2019-01-04"))
	if assert.NoError(t, err) {
		assert.Equal(t,
			`{"ietf-restconf:restconf":{"data":{},"operations":{},"yang-library-version":"2019-01-04"}}`,
			string(bytes))
	}
}
