// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Namespaces of the IETF modules the gateway answers for itself.
const (
	RestconfNamespace    = "urn:ietf:params:xml:ns:yang:ietf-restconf"
	YangLibraryNamespace = "urn:ietf:params:xml:ns:yang:ietf-yang-library"
)

// Namespace maps a module name to its XML namespace, or "".
type Namespace func(module string) string

// EncodeXML writes a generic document, as built for JSON, as XML.
// Member names of the form "module:name" become elements in that
// module's namespace; arrays repeat their element.  Members starting
// with "@" are left out.
func EncodeXML(w io.Writer, doc map[string]interface{}, ns Namespace) error {
	enc := xml.NewEncoder(w)
	for _, name := range sortedKeys(doc) {
		if err := encodeXML(enc, name, doc[name], "", ns); err != nil {
			return err
		}
	}
	return enc.Flush()
}

func encodeXML(enc *xml.Encoder, name string, value interface{}, parentNS string, ns Namespace) error {
	if strings.HasPrefix(name, "@") {
		return nil
	}
	local := name
	space := parentNS
	if colon := strings.IndexByte(name, ':'); colon >= 0 {
		local = name[colon+1:]
		if s := ns(name[:colon]); s != "" {
			space = s
		}
	}

	if list, ok := value.([]interface{}); ok {
		for _, item := range list {
			if err := encodeXML(enc, name, item, parentNS, ns); err != nil {
				return err
			}
		}
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: local}}
	if space != parentNS {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: space}}
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	switch v := value.(type) {
	case map[string]interface{}:
		for _, child := range sortedKeys(v) {
			if err := encodeXML(enc, child, v[child], space, ns); err != nil {
				return err
			}
		}
	case nil:
	default:
		if err := enc.EncodeToken(xml.CharData(fmt.Sprint(v))); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
