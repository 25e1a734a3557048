// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package schematest provides a small YANG model for tests.
//
// The "testing" module (prefix t1) has a top-level container test
// holding settings, state data, a keyed animal list with a nested
// food list and a feed action, and a two-key pair list; it also
// declares the reboot and get-reboot-info RPCs.  The "testing-2"
// module (prefix t2) augments test/settings with a speed leaf and has
// its own top-level test2 container.  "testing" is the default
// module.
package schematest

import (
	"embed"
	"path"
	"testing"

	"github.com/diffeo/go-restconf/schema"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/*.yang
var files embed.FS

// Sources returns the test modules as a name-to-source map, suitable
// for schema.Options.Sources.
func Sources() map[string]string {
	entries, err := files.ReadDir("testdata")
	if err != nil {
		panic(err)
	}
	sources := make(map[string]string)
	for _, entry := range entries {
		data, err := files.ReadFile(path.Join("testdata", entry.Name()))
		if err != nil {
			panic(err)
		}
		sources[entry.Name()] = string(data)
	}
	return sources
}

// Options returns load options for the test model.
func Options() schema.Options {
	return schema.Options{
		Sources:       Sources(),
		DefaultModule: "testing",
	}
}

// Index loads the test model, failing t if it does not load.
func Index(t testing.TB) *schema.Index {
	idx, err := schema.Load(Options())
	require.NoError(t, err)
	return idx
}
