// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a store based
// on command-line flags.
package backend

import (
	"errors"
	"strings"

	"github.com/diffeo/go-restconf/memory"
	"github.com/diffeo/go-restconf/postgres"
	"github.com/diffeo/go-restconf/store"
	"github.com/diffeo/go-restconf/storerpc"
)

// Backend describes user-visible parameters to store gateway data.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{"memory", ""}
//         flag.Var(&backend, "backend", "impl:address of the store")
//         flag.Parse()
//         st, err := backend.Store()
//     }
//
// The known implementations are "memory", which takes no address;
// "postgres", whose address is a PostgreSQL connection string; and
// "rpc", whose address is a tcp:// or unix:// URL of another
// process's store RPC listener.
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// ErrUnknownImplementation is returned by Set and Store for an
// implementation name that is not one of the known ones.
type ErrUnknownImplementation struct {
	Implementation string
}

func (e ErrUnknownImplementation) Error() string {
	return "unknown store backend " + e.Implementation
}

// Store creates a new store.  This generally should be only called
// once.  If the backend has in-process state, such as a database
// connection pool or an in-memory store, calling this multiple times
// will create multiple copies of that state.  In particular, if
// b.Implementation is "memory", multiple calls to this will create
// multiple independent store "worlds".
func (b *Backend) Store() (store.Store, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(b.Address)
	case "rpc":
		return storerpc.DialURL(b.Address)
	default:
		return nil, ErrUnknownImplementation{b.Implementation}
	}
}

// Remote returns true if the backend keeps its data outside this
// process, so that reads are worth caching.
func (b *Backend) Remote() bool {
	return b.Implementation != "memory"
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither this
// nor Store() attempts to validate the b.Address part of the string
// before actually making a connection.
func (b *Backend) Set(param string) error {
	parts := strings.SplitN(param, ":", 2)
	if parts[0] == "" {
		return errors.New("must specify a backend type")
	}
	switch parts[0] {
	case "memory", "postgres", "rpc":
	default:
		return ErrUnknownImplementation{parts[0]}
	}
	b.Implementation = parts[0]
	b.Address = ""
	if len(parts) == 2 {
		b.Address = parts[1]
	}
	return nil
}
