// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storerpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/diffeo/go-restconf/store"
	"github.com/ugorji/go/codec"
)

// conflictRetries is the number of times SetTree resends a guarded
// batch that lost a race with another writer.
const conflictRetries = 10

// ErrBadURL is returned by ParseURL for URLs it does not understand.
var ErrBadURL = errors.New("store URL must be tcp://host:port or unix:///path")

// ParseURL splits a store URL into a network and address suitable for
// net.Dial.  It accepts "tcp://host:port" and "unix:///path/to/socket".
func ParseURL(rawurl string) (network, address string, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "tcp":
		if u.Host == "" {
			return "", "", ErrBadURL
		}
		return "tcp", u.Host, nil
	case "unix":
		if u.Path == "" {
			return "", "", ErrBadURL
		}
		return "unix", u.Path, nil
	default:
		return "", "", ErrBadURL
	}
}

// Client is a store.Store that forwards every call to a remote
// storerpc Server.  A Client holds one connection and sends one
// request at a time; if the connection fails it is redialed on the
// next call.
type Client struct {
	network string
	address string
	cbor    *codec.CborHandle

	lock    sync.Mutex
	conn    net.Conn
	writer  *bufio.Writer
	encoder *codec.Encoder
	decoder *codec.Decoder
	nextID  uint
}

// Dial connects to a storerpc server.
func Dial(network, address string) (*Client, error) {
	cbor, err := NewHandle()
	if err != nil {
		return nil, err
	}
	c := &Client{network: network, address: address, cbor: cbor}
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// DialURL connects to a storerpc server named by a URL as accepted by
// ParseURL.
func DialURL(rawurl string) (*Client, error) {
	network, address, err := ParseURL(rawurl)
	if err != nil {
		return nil, err
	}
	return Dial(network, address)
}

// Close shuts down the client's connection.
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// connect opens the connection.  Runs under the lock.
func (c *Client) connect() error {
	conn, err := net.Dial(c.network, c.address)
	if err != nil {
		return err
	}
	c.conn = conn
	c.writer = bufio.NewWriter(conn)
	c.encoder = codec.NewEncoder(c.writer, c.cbor)
	c.decoder = codec.NewDecoder(bufio.NewReader(conn), c.cbor)
	return nil
}

// call sends one request and decodes its result into result, which
// may be nil if the method has no result.
func (c *Client) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.conn == nil {
		if err := c.connect(); err != nil {
			return err
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}

	c.nextID++
	request := Request{Method: method, ID: c.nextID, Params: params}
	var response Response
	err := c.encoder.Encode(request)
	if err == nil {
		err = c.writer.Flush()
	}
	if err == nil {
		err = c.decoder.Decode(&response)
	}
	if err == nil && response.ID != request.ID {
		err = fmt.Errorf("response ID %v does not match request ID %v", response.ID, request.ID)
	}
	if err != nil {
		// The stream is in an unknown state
		c.conn.Close()
		c.conn = nil
		return err
	}
	if err := responseError(response); err != nil {
		return err
	}
	if result != nil && response.Result != nil {
		return decode(response.Result, result)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string) (string, error) {
	var value string
	err := c.call(ctx, &value, "get", path)
	return value, err
}

func (c *Client) Set(ctx context.Context, path, value string) error {
	return c.call(ctx, nil, "set", path, value)
}

func (c *Client) Prune(ctx context.Context, path string) error {
	return c.call(ctx, nil, "prune", path)
}

func (c *Client) Search(ctx context.Context, path string) ([]string, error) {
	var names []string
	err := c.call(ctx, &names, "search", path)
	return names, err
}

func (c *Client) GetTree(ctx context.Context, path string) (store.Snapshot, error) {
	var snap Snapshot
	if err := c.call(ctx, &snap, "get_tree", path); err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Values: snap.Values, Revision: snap.Revision.toRevision()}, nil
}

// SetTree applies a batch remotely.  Guards run here, against
// revisions fetched from the server; the server then refuses the
// batch if any guarded path has moved since, and the whole exchange
// is retried.
func (c *Client) SetTree(ctx context.Context, batch store.Batch) (store.Revision, error) {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		wire := Batch{Prune: batch.Prune, Values: batch.Values}
		for _, guard := range batch.Guards {
			rev, err := c.Revision(ctx, guard.Path)
			if err != nil {
				return store.Revision{}, err
			}
			if err := guard.Check(rev); err != nil {
				return store.Revision{}, err
			}
			wire.Guards = append(wire.Guards, Guard{Path: guard.Path, Version: rev.Version})
		}
		var rev Revision
		err := c.call(ctx, &rev, "set_tree", wire)
		if err == ErrConflict {
			continue
		}
		if err != nil {
			return store.Revision{}, err
		}
		return rev.toRevision(), nil
	}
	return store.Revision{}, ErrConflict
}

func (c *Client) Revision(ctx context.Context, path string) (store.Revision, error) {
	var rev Revision
	if err := c.call(ctx, &rev, "revision", path); err != nil {
		return store.Revision{}, err
	}
	return rev.toRevision(), nil
}

// Watch is not supported over CBOR-RPC.
func (c *Client) Watch(ctx context.Context, path string) (<-chan store.Change, error) {
	return nil, store.ErrNotSupported
}

func (c *Client) Proxy(ctx context.Context, path, url string) error {
	return c.call(ctx, nil, "proxy", path, url)
}

func (c *Client) Unproxy(ctx context.Context, path, url string) error {
	return c.call(ctx, nil, "unproxy", path, url)
}
