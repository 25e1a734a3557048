// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/schema/schematest"
	"github.com/diffeo/go-restconf/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertValues(t *testing.T, expected, actual []store.Value) {
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTargetLeaf(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/settings/priority", true)

	w, err := datatree.DecodeTarget(idx, loc, doc{"priority": uint64(5)})
	require.NoError(t, err)
	assertValues(t, []store.Value{{Path: "/test/settings/priority", Value: "5"}}, w.Values)

	w, err = datatree.DecodeTarget(idx, loc, doc{"testing:priority": "1"})
	require.NoError(t, err)
	assertValues(t, []store.Value{{Path: "/test/settings/priority", Value: "1"}}, w.Values)

	_, err = datatree.DecodeTarget(idx, loc, doc{"priority": "6"})
	assert.IsType(t, schema.ErrOutOfRange{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"debug": "1"})
	assert.IsType(t, datatree.ErrBadDocument{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"priority": "1", "debug": "1"})
	assert.IsType(t, datatree.ErrBadDocument{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"testing-2:priority": "1"})
	assert.IsType(t, datatree.ErrBadDocument{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"nope:priority": "1"})
	assert.IsType(t, schema.ErrUnknownNamespace{}, err)
}

func TestDecodeTargetContainer(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/settings", true)

	w, err := datatree.DecodeTarget(idx, loc, doc{"settings": doc{
		"debug":           "enable",
		"enable":          false,
		"hidden":          "sneaky",
		"testing-2:speed": uint64(7),
		"users":           list{"bob", "alice"},
		"time":            doc{"day": "3"},
		"priority":        "",
	}})
	require.NoError(t, err)
	assertValues(t, []store.Value{
		{Path: "/test/settings/debug", Value: "1"},
		{Path: "/test/settings/enable", Value: "false"},
		{Path: "/test/settings/priority", Value: ""},
		{Path: "/test/settings/speed", Value: "7"},
		{Path: "/test/settings/time/day", Value: "3"},
		{Path: "/test/settings/users/bob", Value: "bob"},
		{Path: "/test/settings/users/alice", Value: "alice"},
	}, w.Values)

	_, err = datatree.DecodeTarget(idx, loc, doc{"settings": doc{"readonly": "x"}})
	assert.IsType(t, schema.ErrAccessDenied{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"settings": doc{"debug": "loud"}})
	assert.IsType(t, schema.ErrInvalidEnum{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"settings": doc{"colour": "red"}})
	assert.IsType(t, datatree.ErrBadDocument{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"settings": "flat"})
	assert.IsType(t, datatree.ErrBadDocument{}, err)
}

func TestDecodeTargetEntry(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/animals/animal=cat", true)

	w, err := datatree.DecodeTarget(idx, loc, doc{"animal": list{doc{
		"name": "cat",
		"type": "big",
		"food": list{doc{"name": "fish/chips", "type": "dinner"}},
	}}})
	require.NoError(t, err)
	assert.True(t, w.Entry)
	assertValues(t, []store.Value{
		{Path: "/test/animals/animal/cat/name", Value: "cat"},
		{Path: "/test/animals/animal/cat/food/fish%2Fchips/name", Value: "fish/chips"},
		{Path: "/test/animals/animal/cat/food/fish%2Fchips/type", Value: "dinner"},
		{Path: "/test/animals/animal/cat/type", Value: "1"},
	}, w.Values)

	_, err = datatree.DecodeTarget(idx, loc, doc{"animal": list{doc{"name": "dog"}}})
	assert.IsType(t, datatree.ErrBadDocument{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"animal": list{doc{"name": "cat"}, doc{"name": "cat"}}})
	assert.IsType(t, datatree.ErrBadDocument{}, err)

	_, err = datatree.DecodeTarget(idx, loc, doc{"animal": list{doc{"type": "big"}}})
	assert.IsType(t, datatree.ErrBadDocument{}, err)
}

func TestDecodeTargetMultiKey(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/pair=a,b%2Cc", true)
	w, err := datatree.DecodeTarget(idx, loc, doc{"pair": list{doc{"first": "a", "second": "b,c", "note": "hi"}}})
	require.NoError(t, err)
	assertValues(t, []store.Value{
		{Path: "/test/pair/a,b%2Cc/first", Value: "a"},
		{Path: "/test/pair/a,b%2Cc/second", Value: "b,c"},
		{Path: "/test/pair/a,b%2Cc/note", Value: "hi"},
	}, w.Values)
}

func TestDecodeChild(t *testing.T) {
	idx := schematest.Index(t)

	loc := locate(t, idx, "/test/animals", true)
	w, err := datatree.DecodeChild(idx, loc, doc{"animal": list{doc{"name": "mouse", "colour": "grey"}}})
	require.NoError(t, err)
	assert.True(t, w.Entry)
	assert.Equal(t, "/test/animals/animal/mouse", w.Path)
	assert.Equal(t, []string{"mouse"}, w.Keys)
	assertValues(t, []store.Value{
		{Path: "/test/animals/animal/mouse/name", Value: "mouse"},
		{Path: "/test/animals/animal/mouse/colour", Value: "grey"},
	}, w.Values)

	loc = locate(t, idx, "/test/animals/animal", true)
	w, err = datatree.DecodeChild(idx, loc, doc{"animal": doc{"name": "rat"}})
	require.NoError(t, err)
	assert.Equal(t, "/test/animals/animal/rat", w.Path)

	loc = locate(t, idx, "/test/settings", true)
	w, err = datatree.DecodeChild(idx, loc, doc{"time": doc{"active": true}})
	require.NoError(t, err)
	assert.Equal(t, "/test/settings/time", w.Path)
	assertValues(t, []store.Value{{Path: "/test/settings/time/active", Value: "true"}}, w.Values)

	_, err = datatree.DecodeChild(idx, loc, doc{"readonly": "x"})
	assert.IsType(t, schema.ErrAccessDenied{}, err)

	_, err = datatree.DecodeChild(idx, loc, doc{"hidden": "x"})
	assert.IsType(t, schema.ErrAccessDenied{}, err)

	w, err = datatree.DecodeChild(idx, schema.Location{}, doc{"testing-2:test2": doc{"status": "new"}})
	require.NoError(t, err)
	assert.Equal(t, "/test2", w.Path)
	assertValues(t, []store.Value{{Path: "/test2/status", Value: "new"}}, w.Values)
}

func TestDecodeContent(t *testing.T) {
	idx := schematest.Index(t)

	loc := locate(t, idx, "/test/settings", false)
	w, err := datatree.DecodeContent(idx, loc, doc{"priority": "2", "debug": "0"})
	require.NoError(t, err)
	assertValues(t, []store.Value{
		{Path: "/test/settings/debug", Value: "0"},
		{Path: "/test/settings/priority", Value: "2"},
	}, w.Values)

	loc = locate(t, idx, "/test/animals/animal", false)
	w, err = datatree.DecodeContent(idx, loc, doc{"cat": doc{"type": "2"}})
	require.NoError(t, err)
	assertValues(t, []store.Value{
		{Path: "/test/animals/animal/cat/name", Value: "cat"},
		{Path: "/test/animals/animal/cat/type", Value: "2"},
	}, w.Values)

	loc = locate(t, idx, "/test/animals/animal/dog", false)
	w, err = datatree.DecodeContent(idx, loc, doc{"colour": "black"})
	require.NoError(t, err)
	assertValues(t, []store.Value{
		{Path: "/test/animals/animal/dog/name", Value: "dog"},
		{Path: "/test/animals/animal/dog/colour", Value: "black"},
	}, w.Values)

	loc = locate(t, idx, "/test/settings/priority", false)
	w, err = datatree.DecodeContent(idx, loc, doc{"priority": "4"})
	require.NoError(t, err)
	assertValues(t, []store.Value{{Path: "/test/settings/priority", Value: "4"}}, w.Values)

	w, err = datatree.DecodeContent(idx, loc, "5")
	require.NoError(t, err)
	assertValues(t, []store.Value{{Path: "/test/settings/priority", Value: "5"}}, w.Values)

	_, err = datatree.DecodeContent(idx, loc, "0")
	assert.IsType(t, schema.ErrOutOfRange{}, err)
}

func TestRenderXML(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/settings", true)
	tree := datatree.Assemble(loc, []store.Value{
		{Path: "/test/settings/debug", Value: "1"},
		{Path: "/test/settings/speed", Value: "9"},
		{Path: "/test/settings/users/a", Value: "a"},
		{Path: "/test/settings/users/b", Value: "b"},
	})
	var buf bytes.Buffer
	require.NoError(t, datatree.RenderXML(&buf, tree, "settings", datatree.RenderOptions{RESTCONF: true, Typed: true}))
	assert.Equal(t,
		`<settings xmlns="http://test.com/ns/yang/testing">`+
			`<debug>enable</debug>`+
			`<speed xmlns="http://test.com/ns/yang/testing-2">9</speed>`+
			`<users>a</users><users>b</users>`+
			`</settings>`,
		buf.String())
}

func TestRenderXMLDepth(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/animals", true)
	tree := datatree.Assemble(loc, rows)
	var buf bytes.Buffer
	require.NoError(t, datatree.RenderXML(&buf, tree, "animals", datatree.RenderOptions{RESTCONF: true, Depth: 2}))
	assert.Equal(t,
		`<animals xmlns="http://test.com/ns/yang/testing">`+
			`<animal><name>cat</name></animal>`+
			`<animal><name>dog</name></animal>`+
			`<animal><name>hamster</name></animal>`+
			`</animals>`,
		buf.String())
}

func TestParseXML(t *testing.T) {
	idx := schematest.Index(t)
	body := `<animals xmlns="http://test.com/ns/yang/testing">
  <animal><name>cat</name><type>big</type></animal>
  <animal><name>dog</name></animal>
</animals>`
	parsed, err := datatree.ParseXML(idx, strings.NewReader(body))
	require.NoError(t, err)
	assertDoc(t, doc{"testing:animals": doc{"animal": list{
		doc{"name": "cat", "type": "big"},
		doc{"name": "dog"},
	}}}, parsed)

	loc := locate(t, idx, "/test/animals", true)
	w, err := datatree.DecodeTarget(idx, loc, parsed)
	require.NoError(t, err)
	assert.Len(t, w.Values, 3)

	body = `<settings xmlns="http://test.com/ns/yang/testing"><speed xmlns="http://test.com/ns/yang/testing-2">3</speed></settings>`
	parsed, err = datatree.ParseXML(idx, strings.NewReader(body))
	require.NoError(t, err)
	assertDoc(t, doc{"testing:settings": doc{"testing-2:speed": "3"}}, parsed)

	_, err = datatree.ParseXML(idx, strings.NewReader(`<a xmlns="urn:nowhere"/>`))
	assert.IsType(t, schema.ErrUnknownNamespace{}, err)

	_, err = datatree.ParseXML(idx, strings.NewReader(`<a><b></a>`))
	assert.IsType(t, datatree.ErrBadDocument{}, err)
}

func TestReplaced(t *testing.T) {
	idx := schematest.Index(t)
	loc := locate(t, idx, "/test/settings", true)
	w, err := datatree.DecodeTarget(idx, loc, doc{"settings": doc{"priority": "2", "users": list{"bob"}}})
	require.NoError(t, err)

	existing := []store.Value{
		{Path: "/test/settings/debug", Value: "1"},
		{Path: "/test/settings/hidden", Value: "x"},
		{Path: "/test/settings/priority", Value: "3"},
		{Path: "/test/settings/readonly", Value: "yes"},
		{Path: "/test/settings/time/day", Value: "4"},
		{Path: "/test/settings/users/alice", Value: "alice"},
		{Path: "/test/settings/users/bob", Value: "bob"},
		{Path: "/test/settings/writeonly", Value: "pw"},
		{Path: "/test/settings/junk/thing", Value: "j"},
	}
	assertValues(t, []store.Value{
		{Path: "/test/settings/debug"},
		{Path: "/test/settings/time/day"},
		{Path: "/test/settings/users/alice"},
		{Path: "/test/settings/writeonly"},
	}, datatree.Replaced(loc, w, existing))

	loc = locate(t, idx, "/test/animals/animal=cat", true)
	w, err = datatree.DecodeTarget(idx, loc, doc{"animal": list{doc{"name": "cat"}}})
	require.NoError(t, err)
	assertValues(t, []store.Value{
		{Path: "/test/animals/animal/cat/food/fish/name"},
		{Path: "/test/animals/animal/cat/type"},
	}, datatree.Replaced(loc, w, []store.Value{
		{Path: "/test/animals/animal/cat/food/fish/name", Value: "fish"},
		{Path: "/test/animals/animal/cat/name", Value: "cat"},
		{Path: "/test/animals/animal/cat/type", Value: "1"},
		{Path: "/test/animals/animal/dog/type", Value: "2"},
	}))
}
