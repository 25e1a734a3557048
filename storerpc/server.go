// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storerpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"runtime"
	"strings"

	"github.com/diffeo/go-restconf/store"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Server serves a store over CBOR-RPC.
type Server struct {
	// Store is the store to serve.
	Store store.Store

	// RequestLogger, if not nil, receives a debug-level entry for
	// every request and response.
	RequestLogger *logrus.Logger
}

// ListenAndServe serves connections on a new listener forever.  It
// only returns if the listener fails.
func (s *Server) ListenAndServe(network, laddr string) error {
	ln, err := net.Listen(network, laddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln and handles each in its own
// goroutine.  It returns when Accept fails, such as when ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	cbor, err := NewHandle()
	if err != nil {
		return err
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn, cbor)
	}
}

// Convert a "snake case" name, like 'foo_bar_baz', to a "camel case" name
// with its first letter capitalized, like 'FooBarBaz'.
func snakeToCamel(s string) string {
	words := strings.Split(s, "_")
	for n, word := range words {
		if word != "" {
			words[n] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, "")
}

func (s *Server) handleConnection(conn net.Conn, cbor *codec.CborHandle) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reqLog, errLog *logrus.Entry
	fields := logrus.Fields{
		"remote": conn.RemoteAddr(),
	}
	errLog = logrus.WithFields(fields)
	if s.RequestLogger != nil {
		reqLog = s.RequestLogger.WithFields(fields)
	}

	methods := reflect.ValueOf(&methods{ctx: ctx, store: s.Store})

	reader := bufio.NewReader(conn)
	decoder := codec.NewDecoder(reader, cbor)
	writer := bufio.NewWriter(conn)
	encoder := codec.NewEncoder(writer, cbor)

	for {
		var request Request
		err := decoder.Decode(&request)
		if err == io.EOF {
			if reqLog != nil {
				reqLog.Debug("Connection closed")
			}
			return
		} else if err != nil {
			errLog.WithError(err).Error("Error reading message")
			return
		}
		if reqLog != nil {
			reqLog.WithFields(logrus.Fields{
				"id":     request.ID,
				"method": request.Method,
			}).Debug("Request")
		}
		response := doRequest(methods, request)
		if reqLog != nil {
			entry := reqLog.WithField("id", response.ID)
			if response.Error != "" {
				entry = entry.WithField("error", response.Error)
			}
			entry.Debug("Response")
		}
		err = encoder.Encode(response)
		if err != nil {
			errLog.WithError(err).Error("Error encoding response")
			return
		}
		err = writer.Flush()
		if err != nil {
			errLog.WithError(err).Error("Error writing response")
			return
		}
	}
}

func doRequest(methodsv reflect.Value, request Request) (response Response) {
	response.ID = request.ID

	// If we panic in the middle of this, turn it into a response
	defer func() {
		if oops := recover(); oops != nil {
			buf := make([]byte, 65536)
			n := runtime.Stack(buf, false)
			logrus.WithFields(logrus.Fields{
				"panic": oops,
				"stack": string(buf[:n]),
			}).Error("Panic in store RPC server")
			response.Result = nil
			response.Error = fmt.Sprintf("%v", oops)
			response.ErrorKind = ""
		}
	}()

	method := snakeToCamel(request.Method)
	var err error
	var params, returns []reflect.Value
	funcv := methodsv.MethodByName(method)
	if !funcv.IsValid() {
		err = fmt.Errorf("no such method %v", request.Method)
	}
	if err == nil {
		params, err = CreateParamList(funcv, request.Params)
	}
	if err == nil {
		// Every method returns an error last, possibly after a
		// single result
		returns = funcv.Call(params)
		if len(returns) == 0 {
			err = errors.New("empty return from method")
		} else {
			if errV := returns[len(returns)-1].Interface(); errV != nil {
				err = errV.(error)
			}
			returns = returns[:len(returns)-1]
		}
	}

	if err != nil {
		errorResponse(&response, err)
	} else if len(returns) == 1 {
		response.Result = returns[0].Interface()
	}
	return
}

// methods holds the RPC-callable methods.  Each takes wire-form
// parameters and returns wire-form results followed by an error.
type methods struct {
	ctx   context.Context
	store store.Store
}

func (m *methods) Get(path string) (string, error) {
	return m.store.Get(m.ctx, path)
}

func (m *methods) Set(path, value string) error {
	return m.store.Set(m.ctx, path, value)
}

func (m *methods) Prune(path string) error {
	return m.store.Prune(m.ctx, path)
}

func (m *methods) Search(path string) ([]string, error) {
	return m.store.Search(m.ctx, path)
}

func (m *methods) GetTree(path string) (Snapshot, error) {
	snap, err := m.store.GetTree(m.ctx, path)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Values: snap.Values, Revision: fromRevision(snap.Revision)}, nil
}

func (m *methods) SetTree(batch Batch) (Revision, error) {
	b := store.Batch{Prune: batch.Prune, Values: batch.Values}
	for _, guard := range batch.Guards {
		version := guard.Version
		b.Guards = append(b.Guards, store.Guard{
			Path: guard.Path,
			Check: func(rev store.Revision) error {
				if rev.Version != version {
					return ErrConflict
				}
				return nil
			},
		})
	}
	rev, err := m.store.SetTree(m.ctx, b)
	if err != nil {
		return Revision{}, err
	}
	return fromRevision(rev), nil
}

func (m *methods) Revision(path string) (Revision, error) {
	rev, err := m.store.Revision(m.ctx, path)
	if err != nil {
		return Revision{}, err
	}
	return fromRevision(rev), nil
}

func (m *methods) Proxy(path, url string) error {
	return m.store.Proxy(m.ctx, path, url)
}

func (m *methods) Unproxy(path, url string) error {
	return m.store.Unproxy(m.ctx, path, url)
}
