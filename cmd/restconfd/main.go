// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restconfd provides a RESTCONF gateway daemon.  It serves
// YANG-modelled data kept in a store over HTTP, both as RFC 8040
// RESTCONF and as the plain JSON API, and can serve the store itself
// over CBOR-RPC so that other gateways may mount it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/diffeo/go-restconf/restserver"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/storerpc"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := defaultConfig()
	if err := cfg.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Could not load configuration")
		return
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Invalid log level")
		return
	}
	logrus.SetLevel(level)

	ctx := context.Background()
	st, err := cfg.Store(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"backend": cfg.Backend,
			"err":     err,
		}).Fatal("Could not create store")
		return
	}

	schemas, err := schema.NewHolder(cfg.Yang.Options())
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("Could not load YANG modules")
		return
	}
	go reloadOnHangup(schemas)

	var reqLogger *logrus.Logger
	if cfg.LogRequests {
		stdlog := logrus.StandardLogger()
		reqLogger = &logrus.Logger{
			Out:       stdlog.Out,
			Formatter: stdlog.Formatter,
			Hooks:     stdlog.Hooks,
			Level:     logrus.DebugLevel,
		}
	}

	if cfg.RPC != "" {
		rpc := &storerpc.Server{Store: st, RequestLogger: reqLogger}
		go func() {
			err := rpc.ListenAndServe("tcp", cfg.RPC)
			logrus.WithFields(logrus.Fields{
				"address": cfg.RPC,
				"err":     err,
			}).Fatal("CBOR-RPC server failed")
		}()
	}

	go observe(ctx, st)

	h := &HTTP{
		Store:       st,
		Schemas:     schemas,
		Operations:  restserver.NewOperations(),
		Root:        cfg.Root,
		LogRequests: cfg.LogRequests,
		Laddr:       cfg.HTTP,
	}
	logrus.WithFields(logrus.Fields{
		"http":    cfg.HTTP,
		"rpc":     cfg.RPC,
		"backend": cfg.Backend,
	}).Info("Gateway started")
	err = h.Serve()
	logrus.WithFields(logrus.Fields{
		"address": cfg.HTTP,
		"err":     err,
	}).Fatal("HTTP server failed")
}

// reloadOnHangup loads the YANG modules again every time the process
// gets SIGHUP.
func reloadOnHangup(schemas *schema.Holder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		if _, err := schemas.Reload(); err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Error("Could not reload YANG modules; keeping the old ones")
		}
	}
}
