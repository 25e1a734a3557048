// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckPath(t *testing.T) {
	for _, good := range []string{"/", "/a", "/a/b", "/a/b:c/d=e"} {
		assert.NoError(t, CheckPath(good), good)
	}
	for _, bad := range []string{"", "a", "/a/", "//a", "/a//b", "/a/./b", "/a/.."} {
		assert.Error(t, CheckPath(bad), bad)
	}
}

func TestSplitJoin(t *testing.T) {
	assert.Nil(t, Split("/"))
	assert.Equal(t, []string{"a", "b"}, Split("/a/b"))
	assert.Equal(t, "/a/b", Join("/", "a", "b"))
	assert.Equal(t, "/a/b/c", Join("/a", "b", "c"))
	assert.Equal(t, "/a", Join("/a"))
	assert.Equal(t, "/", Join(""))
}

func TestUnder(t *testing.T) {
	assert.True(t, Under("/a/b", "/"))
	assert.True(t, Under("/a/b", "/a"))
	assert.True(t, Under("/a", "/a"))
	assert.False(t, Under("/ab", "/a"))
	assert.False(t, Under("/a", "/a/b"))
}

func TestRelativeParentBase(t *testing.T) {
	assert.Equal(t, "/b/c", Relative("/a/b/c", "/a"))
	assert.Equal(t, "/", Relative("/a", "/a"))
	assert.Equal(t, "/a", Relative("/a", "/"))
	assert.Equal(t, "/a", Parent("/a/b"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "b", Base("/a/b"))
	assert.Equal(t, "", Base("/"))
}

func TestNotifierFiltersByPath(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n Notifier
	ch := n.Subscribe(ctx, "/a")
	n.Publish(Change{Values: []Value{{Path: "/b/x", Value: "1"}}})
	n.Publish(Change{
		Values:   []Value{{Path: "/a/x", Value: "1"}, {Path: "/b/y", Value: "2"}},
		Revision: Revision{Version: 2},
	})
	n.Publish(Change{Values: []Value{{Path: "/a/y", Value: ""}}, Revision: Revision{Version: 3}})

	select {
	case c := <-ch:
		assert.Equal(t, []Value{{Path: "/a/x", Value: "1"}}, c.Values)
		assert.Equal(t, uint64(2), c.Revision.Version)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}
	select {
	case c := <-ch:
		assert.Equal(t, []Value{{Path: "/a/y", Value: ""}}, c.Values)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	for range ch {
	}
	assert.Equal(t, 0, n.Watching())
}

func TestNotifierDoesNotBlockPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n Notifier
	ch := n.Subscribe(ctx, "/")
	for i := 1; i <= 100; i++ {
		n.Publish(Change{
			Values:   []Value{{Path: "/x", Value: "v"}},
			Revision: Revision{Version: uint64(i)},
		})
	}
	for i := 1; i <= 100; i++ {
		c := <-ch
		assert.Equal(t, uint64(i), c.Revision.Version)
	}
}
