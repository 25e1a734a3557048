// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseFields(t *testing.T) {
	for expr, expected := range map[string]Selection{
		"a":               {"a": nil},
		"a;b":             {"a": nil, "b": nil},
		"a/b/c":           {"a": {"b": {"c": nil}}},
		"a(b;c)":          {"a": {"b": nil, "c": nil}},
		"a/b(c;d/e)":      {"a": {"b": {"c": nil, "d": {"e": nil}}}},
		"a/b;a/c":         {"a": {"b": nil, "c": nil}},
		"a/b;a":           {"a": nil},
		"a;a/b":           {"a": nil},
		"t1:a/t2:b":       {"t1:a": {"t2:b": nil}},
		"a(b(c;d);e)":     {"a": {"b": {"c": nil, "d": nil}, "e": nil}},
		"a(b);a(c)":       {"a": {"b": nil, "c": nil}},
		"days;minutes":    {"days": nil, "minutes": nil},
		"animal(name;x)":  {"animal": {"name": nil, "x": nil}},
	} {
		sel, err := ParseFields(expr)
		if assert.NoError(t, err, expr) {
			if diff := cmp.Diff(expected, sel); diff != "" {
				t.Errorf("%s: (-want +got)\n%s", expr, diff)
			}
		}
	}

	for _, bad := range []string{"", ";", "a;", ";a", "a//b", "a(", "a(b", "a)", "a()", "(a)", "a(b))", "a(b)c"} {
		_, err := ParseFields(bad)
		assert.Equal(t, ErrMalformedQuery, err, bad)
	}
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery("", true)
	if assert.NoError(t, err) {
		assert.Equal(t, Query{}, q)
	}

	q, err = ParseQuery("depth=3&content=nonconfig&with-defaults=report-all-tagged", true)
	if assert.NoError(t, err) {
		assert.Equal(t, 3, q.Depth)
		assert.Equal(t, ContentNonConfig, q.Content)
		assert.Equal(t, ReportAllTagged, q.WithDefaults)
	}

	q, err = ParseQuery("depth=unbounded&fields=a%3Bb", true)
	if assert.NoError(t, err) {
		assert.Equal(t, 0, q.Depth)
		assert.Equal(t, Selection{"a": nil, "b": nil}, q.Fields)
	}

	q, err = ParseQuery("insert=before&point=%2Ftest%2Fanimals%2Fanimal%3Dcat", true)
	if assert.NoError(t, err) {
		assert.Equal(t, "before", q.Insert)
		assert.Equal(t, "/test/animals/animal=cat", q.Point)
		assert.True(t, q.HasInsert())
	}

	q, err = ParseQuery("fields=", false)
	if assert.NoError(t, err) {
		assert.NotNil(t, q.Fields)
		assert.Empty(t, q.Fields)
	}

	for _, bad := range []string{
		"fields=",
		"fields=a(",
		"depth=0",
		"depth=65536",
		"depth=deep",
		"content=some",
		"with-defaults=sometimes",
		"insert=middle",
		"insert=before",
		"point=/a",
		"insert=first&point=/a",
		"depth=1&depth=2",
		"depth=1&",
		"&depth=1",
		"depth=1&&content=all",
		"depth",
		"=1",
		"banana=1",
		"fields=%zz",
	} {
		_, err := ParseQuery(bad, true)
		assert.Equal(t, ErrMalformedQuery, err, bad)
	}

	for _, bad := range []string{"with-defaults=trim", "insert=first", "point=/a"} {
		_, err := ParseQuery(bad, false)
		assert.Equal(t, ErrMalformedQuery, err, bad)
	}
}
