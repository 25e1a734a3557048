// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/diffeo/go-restconf/restdata"
	"github.com/jtacoma/uritemplates"
)

// resource is any object that has a URL.
type resource struct {
	URL    *url.URL
	Client *http.Client
}

// Template expands a URI template with vars and returns the result
// relative to the resource's URL.  Values are expanded as given; use
// {+var} for values that are already escaped.
func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}
	return r.URL.Parse(expanded)
}

// exchange describes one HTTP request and, after Do, its response.
type exchange struct {
	Method string
	URL    *url.URL

	// ContentType and Body, if Body is not nil, are sent as the
	// request body.  Body is encoded as JSON unless it is a
	// []byte.
	ContentType string
	Body        interface{}

	// Accept is sent as the Accept header.
	Accept string

	// Header holds additional request headers.
	Header http.Header

	// Response fields, set by Do.
	Status       int
	ETag         string
	LastModified time.Time
	Location     string
	Result       interface{}
}

// Do performs some HTTP action.  Any response body is decoded into
// x.Result in generic form.  A non-2xx response is returned as an
// error.
func (r *resource) Do(ctx context.Context, x *exchange) (err error) {
	// Set up the body as serialized JSON, if there is one
	var body io.Reader
	if x.Body != nil {
		data, isBytes := x.Body.([]byte)
		if !isBytes {
			data, err = restdata.MarshalJSON(x.Body)
			if err != nil {
				return err
			}
		}
		body = bytes.NewReader(data)
	}

	// Create the request and set headers
	req, err := http.NewRequest(x.Method, x.URL.String(), body)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	for name, values := range x.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	if x.Body != nil {
		req.Header.Set("Content-Type", x.ContentType)
	}
	if x.Accept != "" {
		req.Header.Set("Accept", x.Accept)
	}

	// Actually do the request
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	// If the response included a body, clean up afterwards
	defer func() {
		err = firstError(err, resp.Body.Close())
	}()

	x.Status = resp.StatusCode
	x.ETag = resp.Header.Get("ETag")
	x.Location = resp.Header.Get("Location")
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		x.LastModified, _ = http.ParseTime(lm)
	}

	// Check the response code
	if err = checkHTTPStatus(resp); err != nil {
		return err
	}

	// If there is a body, decode it
	noBody := resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified
	if !noBody && resp.ContentLength != 0 && x.Method != "HEAD" {
		data, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			contentType := resp.Header.Get("Content-Type")
			x.Result, err = restdata.Decode(contentType, bytes.NewReader(data), nil)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Response.Status
}

// HTTPStatus returns the status code of the failing response.
func (e ErrorHTTP) HTTPStatus() int {
	return e.Response.StatusCode
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.  304 Not Modified counts as success.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusNotModified {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Take a shot at decoding it as a better error
	contentType := resp.Header.Get("Content-Type")
	doc, err := restdata.Decode(contentType, bytes.NewReader(body), nil)
	if err == nil {
		if errs := restdata.ParseErrors(doc, resp.StatusCode); len(errs) > 0 {
			// Given that we decoded that successfully, return
			// the server-provided error
			return errs[0]
		}
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}
