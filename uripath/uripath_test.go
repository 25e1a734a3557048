// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package uripath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func names(p Path) []string {
	var out []string
	for _, seg := range p {
		out = append(out, seg.Qualified())
	}
	return out
}

func TestParseNormalizes(t *testing.T) {
	for input, expected := range map[string][]string{
		"/test/settings/priority":          {"test", "settings", "priority"},
		"//test///settings//priority/":     {"test", "settings", "priority"},
		"/test/./settings/./priority":      {"test", "settings", "priority"},
		"/test/state/../settings/priority": {"test", "settings", "priority"},
		"/test/settings/priority/..":       {"test", "settings"},
		"/test/..":                         nil,
		"/testing:test/settings":           {"testing:test", "settings"},
	} {
		p, err := Parse(input, true)
		if assert.NoError(t, err, input) {
			assert.Equal(t, expected, names(p), input)
		}
	}
}

func TestParseAboveRoot(t *testing.T) {
	_, err := Parse("/test/../../settings", true)
	assert.Equal(t, ErrMalformedPath, err)
	_, err = Parse("/..", false)
	assert.Equal(t, ErrMalformedPath, err)
}

func TestParseBadEscape(t *testing.T) {
	_, err := Parse("/test/animal=ca%zzt", true)
	assert.Equal(t, ErrMalformedPath, err)
	_, err = Parse("/test/ca%2", false)
	assert.Equal(t, ErrMalformedPath, err)
}

func TestParsePrefix(t *testing.T) {
	p, err := Parse("/testing:test/settings", true)
	if assert.NoError(t, err) && assert.Len(t, p, 2) {
		assert.Equal(t, "testing", p[0].Prefix)
		assert.Equal(t, "test", p[0].Name)
		assert.Equal(t, "", p[1].Prefix)
		assert.Equal(t, "settings", p[1].Name)
	}
}

func TestParseKeys(t *testing.T) {
	p, err := Parse("/test/animals/animal=cat/food=banana,ripe", true)
	if assert.NoError(t, err) && assert.Len(t, p, 4) {
		assert.Equal(t, "animal", p[2].Name)
		assert.True(t, p[2].HasKeys)
		assert.Equal(t, []string{"cat"}, p[2].Keys)
		assert.Equal(t, []string{"banana", "ripe"}, p[3].Keys)
		assert.False(t, p[1].HasKeys)
	}
}

func TestParseReservedKeyCharacters(t *testing.T) {
	key := "a/b:c=d&e;f(g)h,i%j"
	p, err := Parse("/test/animals/animal="+EscapeKey(key), true)
	if assert.NoError(t, err) && assert.Len(t, p, 3) {
		assert.Equal(t, []string{key}, p[2].Keys)
	}
	assert.Equal(t, "/test/animals/animal="+EscapeKey(key), p.String())
}

func TestParsePlainKeepsEquals(t *testing.T) {
	p, err := Parse("/test/animals/animal/a=b%2Fc", false)
	if assert.NoError(t, err) && assert.Len(t, p, 4) {
		assert.False(t, p[3].HasKeys)
		assert.Equal(t, "a=b/c", p[3].Raw)
	}
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, "cat", EscapeKey("cat"))
	assert.Equal(t, "a%2Fb%2Cc%25", EscapeKey("a/b,c%"))
	assert.Equal(t, "%20", EscapeKey(" "))
}
