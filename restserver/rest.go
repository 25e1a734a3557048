// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains a REST skeleton framework.
//
// The bulk of this is dealing with HTTP content type negotiation,
// dispatching on the HTTP method, and turning handler results and
// errors into responses in the style of each profile.  RESTCONF
// errors carry an errors document; plain API errors carry only a
// status code.

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/diffeo/go-restconf/datatree"
	"github.com/diffeo/go-restconf/restdata"
	"github.com/diffeo/go-restconf/revision"
	"github.com/diffeo/go-restconf/store"
	"github.com/sirupsen/logrus"
)

// typeMap maps media types clients may ask for onto the media types
// resources produce.
var typeMap = map[string]string{
	"text/json":                   restdata.JSONMediaType,
	restdata.JSONMediaType:        restdata.JSONMediaType,
	restdata.YangDataJSON:         restdata.YangDataJSON,
	restdata.YangDataXML:          restdata.YangDataXML,
	"application/xml":             restdata.YangDataXML,
	"text/xml":                    restdata.YangDataXML,
	restdata.EventStreamMediaType: restdata.EventStreamMediaType,
	restdata.StreamJSONMediaType:  restdata.StreamJSONMediaType,
	restdata.NDJSONMediaType:      restdata.NDJSONMediaType,
}

// restconfTypes are the media types RESTCONF resources produce, most
// preferred first.
var restconfTypes = []string{restdata.YangDataJSON, restdata.YangDataXML, restdata.JSONMediaType}

// apiTypes are the media types plain API resources produce.
var apiTypes = []string{restdata.JSONMediaType}

// streamTypes are the additional media types a streaming GET
// produces.
var streamTypes = []string{restdata.EventStreamMediaType, restdata.StreamJSONMediaType, restdata.NDJSONMediaType}

// errBadAccept is returned from negotiateResponse() if the Accept:
// header is malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

func isStream(mediaType string) bool {
	for _, t := range streamTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}

// response is what a handler function produces.
type response struct {
	// Status is the HTTP status.  If zero, it is 200 if there is
	// a body and 204 if not.
	Status int

	// Header holds extra response headers.
	Header http.Header

	// Revision is sent as ETag and Last-Modified if Stamp is set.
	Revision store.Revision
	Stamp    bool

	// Location holds the URL of a newly created resource.
	Location string

	// Doc is the body, as a generic JSON document, or nil for
	// none.
	Doc interface{}

	// XML, if non-nil, writes the body as XML.  Otherwise an XML
	// response encodes Doc generically.
	XML func(io.Writer) error

	// Stream, if non-nil, takes over the connection.
	Stream func(http.ResponseWriter, *request)
}

type handlerFunc func(*request) (*response, error)

type resourceHandler struct {
	api     *restAPI
	Profile Profile

	// Types lists the media types the resource produces, most
	// preferred first.
	Types []string

	// Stream is true if a GET may ask for a change stream.
	Stream bool

	// Data is true for datastore resources, which advertise
	// Accept-Patch.
	Data bool

	// Context reads the target of the request out of its URL.
	Context func(*request) error

	// Get, if non-nil, returns a representation of the resource.
	// It also serves HEAD.
	Get handlerFunc

	// Put, if non-nil, creates or replaces the resource.
	Put handlerFunc

	// Post, if non-nil, creates a child resource or invokes an
	// operation.
	Post handlerFunc

	// Patch, if non-nil, merges into the resource.
	Patch handlerFunc

	// Delete, if non-nil, deletes the resource.
	Delete handlerFunc
}

func (h *resourceHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r := &request{
		Request: req,
		api:     h.api,
		profile: h.Profile,
		id:      requestID(req),
		idx:     h.api.Schemas.Load(),
	}
	w.Header().Set(restdata.HeaderRequestID, r.id)

	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			e := restdata.FromPanic(recovered)
			logrus.WithFields(logrus.Fields{
				"id":     r.id,
				"method": req.Method,
				"path":   req.URL.EscapedPath(),
				"stack":  e.Stack,
			}).Error("panic serving request")
			h.writeError(w, r, e)
		}
	}()

	// Start by trying to come up with a response type, even before
	// trying to parse the input.  This determines what format an
	// error message could be sent back as.
	var err error
	r.responseType, err = negotiateResponse(req, h.offers(req.Method))
	if err != nil {
		r.responseType = h.Types[0]
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			// Nothing much will be sent back anyway
			err = nil
		}
	}

	if err == nil && h.Context != nil {
		err = h.Context(r)
	}

	var resp *response
	if err == nil {
		resp, err = h.dispatch(r)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.write(w, r, resp)
}

// offers returns the media types a request with some method may be
// answered with.
func (h *resourceHandler) offers(method string) []string {
	if h.Stream && method == http.MethodGet {
		return append(append([]string(nil), h.Types...), streamTypes...)
	}
	return h.Types
}

func (h *resourceHandler) dispatch(r *request) (*response, error) {
	var fn handlerFunc
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		fn = h.Get
	case http.MethodPut:
		fn = h.Put
	case http.MethodPost:
		fn = h.Post
	case http.MethodPatch:
		fn = h.Patch
	case http.MethodDelete:
		fn = h.Delete
	case http.MethodOptions:
		return h.options(), nil
	}
	if fn == nil {
		return nil, restdata.ErrMethodNotAllowed{Method: r.Method}
	}
	return fn(r)
}

// allowed lists the methods the resource supports.
func (h *resourceHandler) allowed() []string {
	methods := []string{http.MethodOptions}
	if h.Get != nil {
		methods = append(methods, http.MethodGet, http.MethodHead)
	}
	if h.Put != nil {
		methods = append(methods, http.MethodPut)
	}
	if h.Post != nil {
		methods = append(methods, http.MethodPost)
	}
	if h.Patch != nil {
		methods = append(methods, http.MethodPatch)
	}
	if h.Delete != nil {
		methods = append(methods, http.MethodDelete)
	}
	sort.Strings(methods)
	return methods
}

func (h *resourceHandler) options() *response {
	header := http.Header{}
	header.Set("Allow", strings.Join(h.allowed(), ", "))
	if h.Data && h.Patch != nil {
		header.Set("Accept-Patch", restdata.AcceptPatch)
	}
	return &response{Status: http.StatusOK, Header: header}
}

// write sends a successful response.  It is possible for the actual
// writer to fail, but by the point this happens we've already written
// an HTTP status line, so all that is left is to log it.
func (h *resourceHandler) write(w http.ResponseWriter, r *request, resp *response) {
	if resp.Stream != nil {
		resp.Stream(w, r)
		return
	}
	for name, values := range resp.Header {
		w.Header()[name] = values
	}
	if resp.Stamp {
		revision.Stamp(w.Header(), resp.Revision)
	}
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}

	status := resp.Status
	hasBody := resp.Doc != nil
	if status == 0 {
		status = http.StatusOK
		if !hasBody {
			status = http.StatusNoContent
		}
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		hasBody = false
	}
	if hasBody {
		w.Header().Set("Content-Type", r.responseType)
	}
	w.WriteHeader(status)
	h.log(r, status).Debug("request")
	if !hasBody || r.Method == http.MethodHead {
		return
	}

	var err error
	if r.responseType == restdata.YangDataXML {
		if resp.XML != nil {
			err = resp.XML(w)
		} else if doc, ok := resp.Doc.(map[string]interface{}); ok {
			err = restdata.EncodeXML(w, doc, r.namespace)
		}
	} else {
		err = restdata.EncodeJSON(w, resp.Doc)
	}
	if err != nil {
		h.log(r, status).WithError(err).Warn("could not write response")
	}
}

// writeError sends an error response.  The plain API sends only a
// status code.  RESTCONF sends an errors document.
func (h *resourceHandler) writeError(w http.ResponseWriter, r *request, err error) {
	e := restdata.FromError(err)
	status := e.HTTPStatus()
	if h.Profile == PlainAPI {
		status = apiStatus(err, e)
	}

	entry := h.log(r, status).WithField("error", err.Error())
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request failed")
	}

	if _, notAllowed := err.(restdata.ErrMethodNotAllowed); notAllowed {
		w.Header().Set("Allow", strings.Join(h.allowed(), ", "))
	}
	if h.Profile == PlainAPI {
		w.WriteHeader(status)
		return
	}

	contentType := restdata.YangDataJSON
	if r.responseType == restdata.YangDataXML {
		contentType = restdata.YangDataXML
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	doc := restdata.ErrorsDocument(e)
	var werr error
	if contentType == restdata.YangDataXML {
		werr = restdata.EncodeXML(w, doc, r.namespace)
	} else {
		werr = restdata.EncodeJSON(w, doc)
	}
	if werr != nil {
		entry.WithError(werr).Warn("could not write error response")
	}
}

// apiStatus is the status the plain API sends for an error.  It has
// no notion of a bad namespace or query, only of a path that does not
// lead anywhere.
func apiStatus(err error, e restdata.Error) int {
	if e.Tag == restdata.TagUnknownNamespace || err == datatree.ErrMalformedQuery {
		return http.StatusNotFound
	}
	return e.HTTPStatus()
}

func (h *resourceHandler) log(r *request, status int) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"id":      r.id,
		"profile": h.Profile.String(),
		"method":  r.Method,
		"path":    r.URL.EscapedPath(),
		"status":  status,
	})
}

// negotiateResponse returns a supported MIME type for the response
// body, following the path laid out in RFC 7231 section 5.3.  offers
// lists the types the resource produces, most preferred first.
func negotiateResponse(req *http.Request, offers []string) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	offered := func(mediaType string) bool {
		canonical, known := typeMap[mediaType]
		if !known {
			return false
		}
		for _, o := range offers {
			if o == canonical {
				return true
			}
		}
		return false
	}

	bestType := ""
	bestQ := 0.0
	mediaRanges := strings.Split(accept, ",")
	for _, mediaRange := range mediaRanges {
		mediaRange = strings.TrimSpace(mediaRange)
		if mediaRange == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", restdata.ErrBadRequest{Err: errBadAccept}
		}

		// What is the "q" ("quality") parameter for this type?
		// If it is less than the best known so far, skip it
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil || q < 0.0 || q > 1.0 {
				return "", restdata.ErrBadRequest{Err: errBadAccept}
			}
		}
		if q < bestQ {
			continue
		}

		// This is acceptable if it's one of the offered types,
		// or it's one of a couple of specific wildcards.  Also
		// need to handle wildcard precedence.  So:
		if mediaType == "*/*" {
			// Doesn't override anything.
			if q > bestQ {
				bestType = mediaType
				bestQ = q
			}
		} else if mediaType == "text/*" || mediaType == "application/*" {
			// Only overrides "*/*".
			if q > bestQ || bestType == "*/*" {
				bestType = mediaType
				bestQ = q
			}
		} else if offered(mediaType) {
			// Overrides any wildcard.  We want the first one
			// at a given q to win.
			if q > bestQ || strings.HasSuffix(bestType, "/*") {
				bestType = mediaType
				bestQ = q
			}
		}
		// Otherwise we don't recognize this type at all, so
		// just drop it.
	}
	// If this failed to win, return an error
	if bestQ == 0.0 {
		return "", restdata.ErrNotAcceptable{}
	}
	if strings.HasSuffix(bestType, "/*") {
		return offers[0], nil
	}
	return typeMap[bestType], nil
}
