// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines the wire-level constants, codecs and error
// documents shared between the restserver and restclient packages.
//
// API Usage
//
// The gateway serves two profiles over the same data, normally both
// rooted at /api.
//
// The RESTCONF profile follows RFC 8040.  GET {root} returns the
// root resource,
//
//     {
//         "ietf-restconf:restconf": {
//             "data": {},
//             "operations": {},
//             "yang-library-version": "2019-01-04"
//         }
//     }
//
// and the datastore lives under {root}/data.  List entries are
// selected with key predicates, "/api/data/testing:test/animals/animal=cat",
// where each key value is percent-encoded on its own and multiple keys
// are separated with commas.  A namespace prefix must appear on the
// first segment of a path naming a node outside the default module and
// may be omitted afterwards.  RPCs are invoked with POST on
// {root}/operations/module:name.  Request and response bodies are
// application/yang-data+json or application/yang-data+xml.
//
// The plain API profile addresses the same data by store path:
// "/api/test/animals/animal/cat".  A trailing slash lists the names of
// a node's children instead of fetching it.  Rendering is controlled
// with request headers; see the Header constants.  Errors carry no
// body in this profile.
//
// Encoding Considerations
//
// JSON objects are always written with their keys in sorted order.
// Untyped rendering (the default for the plain API) sends every
// scalar as a string, exactly as it is held in the store.  Typed
// rendering (always used by RESTCONF) sends booleans and numbers as
// JSON values, except 64-bit integers, which stay strings so that no
// precision is lost, and enumerations by name.
//
// HTTP Considerations
//
// Every data resource carries an ETag and, once it has been written,
// a Last-Modified header.  GET honors If-None-Match and
// If-Modified-Since; writes honor If-Match and If-Unmodified-Since
// and fail with 412 Precondition Failed when they do not hold.  A
// resource with no data has the ETag "0".
//
// A GET whose Accept header asks for text/event-stream,
// application/stream+json or application/x-ndjson stays open and
// sends one document each time the resource changes.
package restdata

// YangDataJSON is the RESTCONF JSON media type.
const YangDataJSON = "application/yang-data+json"

// YangDataXML is the RESTCONF XML media type.
const YangDataXML = "application/yang-data+xml"

// JSONMediaType is plain JSON, as used by the plain API profile.
const JSONMediaType = "application/json"

// EventStreamMediaType requests a server-sent event stream of changes.
const EventStreamMediaType = "text/event-stream"

// StreamJSONMediaType requests a stream of changes as one JSON
// document per line.
const StreamJSONMediaType = "application/stream+json"

// NDJSONMediaType is an alias for StreamJSONMediaType.
const NDJSONMediaType = "application/x-ndjson"

// AcceptPatch is the Accept-Patch header value returned by OPTIONS on
// data resources.
const AcceptPatch = YangDataJSON + ", " + YangDataXML

// Headers that control plain API rendering.  Each takes "on" or
// "off".
const (
	// HeaderTypes sends typed scalars when on.  Default off.
	HeaderTypes = "X-JSON-Types"

	// HeaderArray renders lists as arrays when on.  Default off.
	HeaderArray = "X-JSON-Array"

	// HeaderRoot, when off, strips the single top-level key and
	// sends its value alone.  Default on.
	HeaderRoot = "X-JSON-Root"

	// HeaderMulti wraps the response in a one-element array when
	// on.  Default off.
	HeaderMulti = "X-JSON-Multi"
)

// HeaderRequestID carries the identifier the server assigned to a
// request.
const HeaderRequestID = "X-Request-Id"

// Well-known member names of RESTCONF documents.
const (
	RestconfRoot       = "ietf-restconf:restconf"
	RestconfErrors     = "ietf-restconf:errors"
	YangLibrary        = "ietf-yang-library:yang-library"
	YangLibraryVersion = "ietf-restconf:yang-library-version"
	Operations         = "ietf-restconf:operations"
)

// RootDocument builds the RESTCONF root resource.
func RootDocument(libraryVersion string) map[string]interface{} {
	return map[string]interface{}{
		RestconfRoot: map[string]interface{}{
			"data":                 map[string]interface{}{},
			"operations":           map[string]interface{}{},
			"yang-library-version": libraryVersion,
		},
	}
}
