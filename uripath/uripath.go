// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package uripath parses the path part of gateway request URLs.
//
// Parsing works on the escaped form of the path, as returned by
// url.URL.EscapedPath(), so that percent-encoded separators inside key
// values survive.  Repeated slashes are collapsed and "." and ".."
// segments are resolved lexically before anything is decoded.
//
// In the RESTCONF form a segment is "[prefix:]name[=key1,key2,...]"
// and each key value is percent-decoded separately, so keys may
// contain any of "/ : = & ; ( ) , %".  In the plain form a segment is
// "[prefix:]name" and the whole segment is decoded; list entries are
// ordinary segments.
package uripath

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMalformedPath is returned for paths that climb above the root
// with "..", or that contain invalid percent-encoding.
var ErrMalformedPath = errors.New("malformed path")

// Segment is one parsed path segment.
type Segment struct {
	// Prefix is the namespace prefix, or "" if none was given.
	Prefix string

	// Name is the local node name.
	Name string

	// Keys holds the decoded list key values of a RESTCONF
	// "name=k1,k2" segment.
	Keys []string

	// HasKeys is true if the segment carried "=", even with an
	// empty key list.
	HasKeys bool

	// Raw is the whole decoded segment, including any prefix.
	Raw string
}

// Path is a parsed, rooted path.  The root itself has no segments.
type Path []Segment

// Parse parses an escaped URL path.  If restconf is true, segments may
// carry key predicates.
func Parse(escaped string, restconf bool) (Path, error) {
	var raws []string
	for _, seg := range strings.Split(escaped, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(raws) == 0 {
				return nil, ErrMalformedPath
			}
			raws = raws[:len(raws)-1]
		default:
			raws = append(raws, seg)
		}
	}

	path := make(Path, 0, len(raws))
	for _, raw := range raws {
		seg, err := parseSegment(raw, restconf)
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}
	return path, nil
}

func parseSegment(raw string, restconf bool) (Segment, error) {
	var seg Segment
	name := raw
	if restconf {
		if eq := strings.IndexByte(raw, '='); eq >= 0 {
			name = raw[:eq]
			seg.HasKeys = true
			for _, k := range strings.Split(raw[eq+1:], ",") {
				key, err := url.PathUnescape(k)
				if err != nil {
					return seg, ErrMalformedPath
				}
				seg.Keys = append(seg.Keys, key)
			}
		}
	}

	decoded, err := url.PathUnescape(name)
	if err != nil {
		return seg, ErrMalformedPath
	}
	if colon := strings.IndexByte(decoded, ':'); colon >= 0 {
		seg.Prefix = decoded[:colon]
		seg.Name = decoded[colon+1:]
	} else {
		seg.Name = decoded
	}

	seg.Raw, err = url.PathUnescape(raw)
	if err != nil {
		return seg, ErrMalformedPath
	}
	return seg, nil
}

// Qualified returns "prefix:name" or just "name".
func (s Segment) Qualified() string {
	if s.Prefix == "" {
		return s.Name
	}
	return s.Prefix + ":" + s.Name
}

// String re-encodes a segment in RESTCONF form.
func (s Segment) String() string {
	out := url.PathEscape(s.Qualified())
	if s.HasKeys {
		keys := make([]string, len(s.Keys))
		for i, k := range s.Keys {
			keys[i] = EscapeKey(k)
		}
		out += "=" + strings.Join(keys, ",")
	}
	return out
}

// String re-encodes a path in RESTCONF form, with a leading slash.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return "/" + strings.Join(parts, "/")
}

// EscapeKey percent-encodes a key value so that it can be placed in a
// RESTCONF key predicate.
func EscapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte("0123456789ABCDEF"[c>>4])
			b.WriteByte("0123456789ABCDEF"[c&15])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// shouldEscape allows only RFC 3986 unreserved characters through.
func shouldEscape(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == '-', c == '.', c == '_', c == '~':
		return false
	}
	return true
}
