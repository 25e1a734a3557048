// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package revision

import (
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restconf/store"
	"github.com/stretchr/testify/assert"
)

func headers(pairs ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

func TestETag(t *testing.T) {
	assert.Equal(t, `"0"`, ETag(store.Revision{}))
	assert.Equal(t, `"2A"`, ETag(store.Revision{Version: 42}))
	assert.Equal(t, `"FFFFFFFFFFFFFFFF"`, ETag(store.Revision{Version: 1<<64 - 1}))
}

func TestLastModified(t *testing.T) {
	clk := clock.NewMock()
	clk.Add(90 * time.Minute)
	rev := store.Revision{Version: 1, Modified: clk.Now()}
	assert.Equal(t, "Thu, 01 Jan 1970 01:30:00 GMT", LastModified(rev))
	assert.Equal(t, "", LastModified(store.Revision{}))

	h := http.Header{}
	Stamp(h, rev)
	assert.Equal(t, `"1"`, h.Get("ETag"))
	assert.Equal(t, "Thu, 01 Jan 1970 01:30:00 GMT", h.Get("Last-Modified"))

	h = http.Header{}
	Stamp(h, store.Revision{})
	assert.Equal(t, `"0"`, h.Get("ETag"))
	assert.Empty(t, h.Get("Last-Modified"))
}

func TestNotModified(t *testing.T) {
	clk := clock.NewMock()
	clk.Add(time.Hour + 500*time.Millisecond)
	rev := store.Revision{Version: 0x1F, Modified: clk.Now()}
	lm := LastModified(rev)

	assert.False(t, NotModified(headers(), rev))
	assert.True(t, NotModified(headers("If-None-Match", `"1F"`), rev))
	assert.True(t, NotModified(headers("If-None-Match", `1F`), rev))
	assert.True(t, NotModified(headers("If-None-Match", `W/"1f"`), rev))
	assert.True(t, NotModified(headers("If-None-Match", `"3", "1F"`), rev))
	assert.True(t, NotModified(headers("If-None-Match", `*`), rev))
	assert.False(t, NotModified(headers("If-None-Match", `"20"`), rev))

	assert.True(t, NotModified(headers("If-Modified-Since", lm), rev))
	later := clk.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.True(t, NotModified(headers("If-Modified-Since", later), rev))
	earlier := clk.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.False(t, NotModified(headers("If-Modified-Since", earlier), rev))
	assert.False(t, NotModified(headers("If-Modified-Since", "yesterday"), rev))

	// If-None-Match wins over If-Modified-Since
	assert.False(t, NotModified(headers("If-None-Match", `"20"`, "If-Modified-Since", later), rev))

	empty := store.Revision{}
	assert.True(t, NotModified(headers("If-None-Match", `"0"`), empty))
	assert.False(t, NotModified(headers("If-None-Match", `*`), empty))
	assert.False(t, NotModified(headers("If-Modified-Since", later), empty))
}

func TestCheckWrite(t *testing.T) {
	clk := clock.NewMock()
	clk.Add(time.Hour)
	rev := store.Revision{Version: 10, Modified: clk.Now()}

	assert.NoError(t, CheckWrite(headers(), rev))
	assert.NoError(t, CheckWrite(headers("If-Match", `"A"`), rev))
	assert.NoError(t, CheckWrite(headers("If-Match", `*`), rev))
	assert.Equal(t, ErrPreconditionFailed, CheckWrite(headers("If-Match", `"9"`), rev))
	assert.Equal(t, ErrPreconditionFailed, CheckWrite(headers("If-Match", `*`), store.Revision{}))

	same := clk.Now().UTC().Format(http.TimeFormat)
	future := clk.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	past := clk.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.NoError(t, CheckWrite(headers("If-Unmodified-Since", same), rev))
	assert.NoError(t, CheckWrite(headers("If-Unmodified-Since", future), rev))
	assert.Equal(t, ErrPreconditionFailed, CheckWrite(headers("If-Unmodified-Since", past), rev))
	assert.NoError(t, CheckWrite(headers("If-Unmodified-Since", past), store.Revision{}))

	assert.Equal(t, ErrPreconditionFailed, CheckWrite(headers("If-None-Match", `*`), rev))
	assert.NoError(t, CheckWrite(headers("If-None-Match", `*`), store.Revision{}))

	guard := Guard("/test", headers("If-Match", `"9"`))
	assert.Equal(t, "/test", guard.Path)
	assert.Equal(t, ErrPreconditionFailed, guard.Check(rev))
	assert.True(t, HasWriteConditions(headers("If-Unmodified-Since", past)))
	assert.False(t, HasWriteConditions(headers()))
}
