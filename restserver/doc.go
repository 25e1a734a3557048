// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a path/value store as a RESTCONF
// service, alongside an older plain JSON API on the same data.  The
// restclient package is a matching client.
//
// The wire details shared by both sides are in the restdata package.
//
// Profiles
//
// Both profiles live under one root, /api by default.  RESTCONF
// (RFC 8040) owns these resources:
//
//     /api
//     /api/yang-library-version
//     /api/operations
//     /api/operations/{module}:{rpc}
//     /api/data
//     /api/data/ietf-yang-library:yang-library
//     /api/data/{path}
//
// Everything else beneath /api is the plain API.  A plain API path
// names list entries and leaf-list values as ordinary segments,
// /api/test/animals/animal/cat, where RESTCONF uses key predicates,
// /api/data/testing:test/animals/animal=cat.  A plain API path ending
// in a slash lists the names of the children of its target.
//
// HTTP Considerations
//
// RESTCONF responses default to application/yang-data+json;
// application/yang-data+xml is also available.  The plain API only
// speaks application/json.  A GET that accepts text/event-stream,
// application/stream+json or application/x-ndjson instead holds the
// connection open and sends the target again every time it changes.
//
// Every data response carries ETag and Last-Modified headers, and
// reads and writes honor the usual conditional request headers.  The
// checks for writes run inside the store's critical section, so a
// write guarded by If-Match cannot race with another writer.
//
// RESTCONF errors carry an ietf-restconf:errors document.  Plain API
// errors carry only a status code.
//
// Every response carries an X-Request-Id header, copied from the
// request if it had one.
package restserver
