// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diffeo/go-restconf/cache"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/restserver"
	"github.com/diffeo/go-restconf/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "restconf",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by profile, method and status",
	},
	[]string{
		"profile",
		"method",
		"code",
	},
)

var requestLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "restconf",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to answer HTTP requests, excluding streams",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{
		"profile",
		"method",
	},
)

var openStreams = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "restconf",
		Subsystem: "http",
		Name:      "open_streams",
		Help:      "Change streams currently open",
	},
)

var storeVersion = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "restconf",
		Subsystem: "store",
		Name:      "version",
		Help:      "Latest committed store version",
	},
)

func init() {
	prometheus.MustRegister(requestCount, requestLatency, openStreams, storeVersion, cache.Lookups)
}

// metrics is negroni middleware that counts and times requests.
type metrics struct {
	Root string
}

// wantsStream guesses from the Accept header whether a request will
// become a change stream.
func wantsStream(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	for _, t := range []string{restdata.EventStreamMediaType, restdata.StreamJSONMediaType, restdata.NDJSONMediaType} {
		if strings.Contains(accept, t) {
			return true
		}
	}
	return false
}

func (m *metrics) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	profile := restserver.ProfileOf(m.Root, r).String()
	stream := r.Method == http.MethodGet && wantsStream(r)
	if stream {
		openStreams.Inc()
		defer openStreams.Dec()
	}
	start := time.Now()
	next(rw, r)

	status := http.StatusOK
	if res, ok := rw.(negroni.ResponseWriter); ok && res.Status() != 0 {
		status = res.Status()
	}
	requestCount.With(prometheus.Labels{
		"profile": profile,
		"method":  r.Method,
		"code":    strconv.Itoa(status),
	}).Inc()
	if !stream {
		requestLatency.With(prometheus.Labels{
			"profile": profile,
			"method":  r.Method,
		}).Observe(time.Since(start).Seconds())
	}
}

// observe tracks the store version until ctx is done.
func observe(ctx context.Context, st store.Store) {
	if rev, err := st.Revision(ctx, "/"); err == nil {
		storeVersion.Set(float64(rev.Version))
	}
	changes, err := st.Watch(ctx, "/")
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Info("Store cannot be watched; version metric will not update")
		return
	}
	for change := range changes {
		storeVersion.Set(float64(change.Revision.Version))
	}
}
