// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/diffeo/go-restconf/restserver"
	"github.com/diffeo/go-restconf/schema"
	"github.com/diffeo/go-restconf/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// HTTP serves the RESTCONF gateway and its metrics.
type HTTP struct {
	Store       store.Store
	Schemas     *schema.Holder
	Operations  *restserver.Operations
	Root        string
	LogRequests bool
	Laddr       string
}

// Handler builds the middleware chain and router.
func (h *HTTP) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	restserver.PopulateRouter(r, h.Store, h.Schemas, restserver.Options{
		Root:       h.Root,
		Operations: h.Operations,
	})

	n := negroni.New()
	recovery := negroni.NewRecovery()
	recovery.Logger = logrus.StandardLogger()
	recovery.PrintStack = false
	n.Use(recovery)
	if h.LogRequests {
		logger := negroni.NewLogger()
		logger.ALogger = logrus.StandardLogger()
		n.Use(logger)
	}
	n.Use(&metrics{Root: h.Root})
	n.UseHandler(r)
	return n
}

// Serve runs an HTTP server on the configured local address.  This
// serves connections forever, and probably wants to be run in a
// goroutine.
func (h *HTTP) Serve() error {
	return http.ListenAndServe(h.Laddr, h.Handler())
}
