// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package revision turns store revisions into HTTP cache validators
// and evaluates conditional request headers against them.
//
// The ETag of a resource is the store version of its subtree, in
// upper-case hexadecimal; a resource with no data has the ETag "0",
// which no real version produces.  Last-Modified is the time of that
// version.  Read preconditions (If-None-Match, If-Modified-Since) are
// checked against the revision returned with the data.  Write
// preconditions (If-Match, If-Unmodified-Since, and If-None-Match on
// writes) are checked by a store.Guard, inside the same critical
// section as the write itself.
package revision

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diffeo/go-restconf/store"
)

// ErrPreconditionFailed is returned when a write precondition does not
// hold.
var ErrPreconditionFailed = errors.New("object modified")

// ETag returns the quoted entity tag for a revision.
func ETag(rev store.Revision) string {
	return `"` + strings.ToUpper(strconv.FormatUint(rev.Version, 16)) + `"`
}

// LastModified returns the Last-Modified header value for a revision,
// or "" for the zero revision.
func LastModified(rev store.Revision) string {
	if rev.IsZero() || rev.Modified.IsZero() {
		return ""
	}
	return rev.Modified.UTC().Format(http.TimeFormat)
}

// Stamp sets the ETag and Last-Modified headers of a response.
func Stamp(h http.Header, rev store.Revision) {
	h.Set("ETag", ETag(rev))
	if lm := LastModified(rev); lm != "" {
		h.Set("Last-Modified", lm)
	}
}

// NotModified returns true if a read with these request headers should
// get a 304 response.  If-None-Match takes precedence over
// If-Modified-Since.  A resource with no data is never reported as
// not modified by date.
func NotModified(h http.Header, rev store.Revision) bool {
	if inm := h.Get("If-None-Match"); inm != "" {
		return matches(inm, rev)
	}
	if ims := h.Get("If-Modified-Since"); ims != "" && !rev.IsZero() {
		since, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		return !truncate(rev.Modified).After(since)
	}
	return false
}

// HasWriteConditions returns true if the headers carry any write
// precondition.
func HasWriteConditions(h http.Header) bool {
	return h.Get("If-Match") != "" || h.Get("If-Unmodified-Since") != "" || h.Get("If-None-Match") != ""
}

// CheckWrite returns ErrPreconditionFailed if a write with these
// request headers should not go ahead.  If-Unmodified-Since fails
// only if the resource changed strictly after the given time, so
// dates in the future always pass.
func CheckWrite(h http.Header, rev store.Revision) error {
	if im := h.Get("If-Match"); im != "" {
		if !matches(im, rev) {
			return ErrPreconditionFailed
		}
	} else if ius := h.Get("If-Unmodified-Since"); ius != "" {
		since, err := http.ParseTime(ius)
		if err == nil && !rev.IsZero() && truncate(rev.Modified).After(since) {
			return ErrPreconditionFailed
		}
	}
	if inm := h.Get("If-None-Match"); inm != "" && matches(inm, rev) {
		return ErrPreconditionFailed
	}
	return nil
}

// Guard returns a store guard that checks the write preconditions in
// h against the revision of path.
func Guard(path string, h http.Header) store.Guard {
	return store.Guard{
		Path: path,
		Check: func(rev store.Revision) error {
			return CheckWrite(h, rev)
		},
	}
}

// matches checks a comma-separated list of entity tags.  "*" matches
// any resource with data.  Tags may be quoted or not, and weak tags
// compare equal to strong ones.
func matches(header string, rev store.Revision) bool {
	current := strings.Trim(ETag(rev), `"`)
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			if !rev.IsZero() {
				return true
			}
			continue
		}
		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)
		if strings.EqualFold(tag, current) {
			return true
		}
	}
	return false
}

// truncate drops sub-second precision, which HTTP dates cannot carry.
func truncate(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
