// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-restconf/schema"
)

// ErrMalformedQuery is returned by ParseQuery for query strings with
// unknown or repeated parameters, bad values, or bad syntax.
var ErrMalformedQuery = errors.New("malformed query")

// Content selects configuration or state data.
type Content int

const (
	// ContentAll returns everything.
	ContentAll Content = iota
	// ContentConfig returns only configuration data.
	ContentConfig
	// ContentNonConfig returns only state data.
	ContentNonConfig
)

// WithDefaults says how schema defaults are reported.
type WithDefaults int

const (
	// Explicit reports exactly what is stored.
	Explicit WithDefaults = iota
	// ReportAll fills in default values that are not stored.
	ReportAll
	// ReportAllTagged is ReportAll, with filled-in values marked.
	ReportAllTagged
	// Trim omits stored values that equal their default.
	Trim
)

// Selection is a parsed fields expression.  Each key is a node name,
// possibly with a module prefix; a nil value selects the node's whole
// subtree.
type Selection map[string]Selection

// Query is a parsed request query string.
type Query struct {
	// Fields, if non-nil, selects the nodes to return.
	Fields Selection

	// Depth limits how many levels are returned, counting the
	// target as level 1.  Zero means unbounded.
	Depth int

	Content      Content
	WithDefaults WithDefaults

	// Insert and Point position a new entry of a user-ordered
	// list.
	Insert string
	Point  string
}

// HasInsert returns true if the query carries insert or point.
func (q Query) HasInsert() bool {
	return q.Insert != "" || q.Point != ""
}

// ParseQuery parses a raw query string.  The string is split by hand
// rather than with url.ParseQuery, since fields expressions contain
// literal semicolons.  If restconf is false, the plain API rules
// apply: an empty fields expression selects nothing, and only fields,
// depth and content are understood.
func ParseQuery(raw string, restconf bool) (Query, error) {
	var q Query
	if raw == "" {
		return q, nil
	}
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, "&") {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return q, ErrMalformedQuery
		}
		key, err := url.QueryUnescape(part[:eq])
		if err != nil {
			return q, ErrMalformedQuery
		}
		value, err := url.QueryUnescape(part[eq+1:])
		if err != nil {
			return q, ErrMalformedQuery
		}
		if seen[key] {
			return q, ErrMalformedQuery
		}
		seen[key] = true

		switch key {
		case "fields":
			if value == "" {
				if restconf {
					return q, ErrMalformedQuery
				}
				q.Fields = Selection{}
				continue
			}
			q.Fields, err = ParseFields(value)
			if err != nil {
				return q, err
			}
		case "depth":
			if value == "unbounded" {
				q.Depth = 0
				continue
			}
			depth, err := strconv.Atoi(value)
			if err != nil || depth < 1 || depth > 65535 {
				return q, ErrMalformedQuery
			}
			q.Depth = depth
		case "content":
			switch value {
			case "all":
				q.Content = ContentAll
			case "config":
				q.Content = ContentConfig
			case "nonconfig":
				q.Content = ContentNonConfig
			default:
				return q, ErrMalformedQuery
			}
		case "with-defaults":
			if !restconf {
				return q, ErrMalformedQuery
			}
			switch value {
			case "explicit":
				q.WithDefaults = Explicit
			case "report-all":
				q.WithDefaults = ReportAll
			case "report-all-tagged":
				q.WithDefaults = ReportAllTagged
			case "trim":
				q.WithDefaults = Trim
			default:
				return q, ErrMalformedQuery
			}
		case "insert":
			if !restconf {
				return q, ErrMalformedQuery
			}
			switch value {
			case "first", "last", "before", "after":
				q.Insert = value
			default:
				return q, ErrMalformedQuery
			}
		case "point":
			if !restconf || value == "" {
				return q, ErrMalformedQuery
			}
			q.Point = value
		default:
			return q, ErrMalformedQuery
		}
	}
	needPoint := q.Insert == "before" || q.Insert == "after"
	if needPoint != (q.Point != "") {
		return q, ErrMalformedQuery
	}
	return q, nil
}

// ParseFields parses a fields expression such as "a;b/c;d(e;f)".
func ParseFields(expr string) (Selection, error) {
	p := fieldParser{s: expr}
	sel, err := p.list()
	if err != nil {
		return nil, err
	}
	if p.i != len(p.s) {
		return nil, ErrMalformedQuery
	}
	return sel, nil
}

type fieldParser struct {
	s string
	i int
}

// list parses "item;item;...".
func (p *fieldParser) list() (Selection, error) {
	sel := Selection{}
	for {
		if err := p.item(sel); err != nil {
			return nil, err
		}
		if p.i < len(p.s) && p.s[p.i] == ';' {
			p.i++
			continue
		}
		return sel, nil
	}
}

// item parses "a/b/c" or "a/b(sub)" and merges it into sel.
func (p *fieldParser) item(sel Selection) error {
	var names []string
	for {
		name := p.name()
		if name == "" {
			return ErrMalformedQuery
		}
		names = append(names, name)
		if p.i < len(p.s) && p.s[p.i] == '/' {
			p.i++
			continue
		}
		break
	}

	var leaf Selection
	if p.i < len(p.s) && p.s[p.i] == '(' {
		p.i++
		sub, err := p.list()
		if err != nil {
			return err
		}
		if p.i >= len(p.s) || p.s[p.i] != ')' {
			return ErrMalformedQuery
		}
		p.i++
		leaf = sub
	}

	for i, name := range names {
		last := i == len(names)-1
		existing, present := sel[name]
		switch {
		case present && existing == nil:
			// Already selecting the whole subtree
			return nil
		case last && leaf == nil:
			sel[name] = nil
			return nil
		case last:
			if !present {
				sel[name] = leaf
			} else {
				existing.merge(leaf)
			}
			return nil
		case !present:
			existing = Selection{}
			sel[name] = existing
		}
		sel = existing
	}
	return nil
}

func (p *fieldParser) name() string {
	start := p.i
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ';', '/', '(', ')':
			return p.s[start:p.i]
		}
		p.i++
	}
	return p.s[start:p.i]
}

func (s Selection) merge(other Selection) {
	for name, sub := range other {
		existing, present := s[name]
		switch {
		case !present:
			s[name] = sub
		case existing == nil:
		case sub == nil:
			s[name] = nil
		default:
			existing.merge(sub)
		}
	}
}

// lookup finds the selection for a child node, matching its local
// name, or its name qualified by module name or prefix.
func (s Selection) lookup(n *schema.Node) (Selection, bool) {
	for _, name := range []string{n.Name, n.QualifiedName(), n.Module.Prefix + ":" + n.Name} {
		if sub, ok := s[name]; ok {
			return sub, true
		}
	}
	return nil, false
}
