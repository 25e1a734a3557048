// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datatree

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/diffeo/go-restconf/schema"
)

// RestconfNamespace is the XML namespace of the RESTCONF data
// resource, used on the element wrapping a whole datastore.
const RestconfNamespace = "urn:ietf:params:xml:ns:yang:ietf-restconf"

// RenderXML writes a tree as an XML document whose top-level element
// is named name.  Every element whose module differs from its
// parent's carries an xmlns attribute.  A tree without a schema is
// wrapped in a RESTCONF data element.  A nil tree writes nothing.
func RenderXML(w io.Writer, tree *Node, name string, opts RenderOptions) error {
	if tree == nil {
		return nil
	}
	enc := xml.NewEncoder(w)
	x := xmlRenderer{enc: enc, opts: opts}
	if tree.Schema == nil {
		start := xml.StartElement{
			Name: xml.Name{Local: "data"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: RestconfNamespace}},
		}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, c := range tree.SortedChildren() {
			if err := x.node(c, c.Schema.Name, nil, 1); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return err
		}
		return enc.Flush()
	}
	if tree.Entry || tree.Member {
		name = tree.Schema.Name
	}
	if err := x.node(tree, name, nil, 1); err != nil {
		return err
	}
	return enc.Flush()
}

type xmlRenderer struct {
	enc  *xml.Encoder
	opts RenderOptions
}

func (x xmlRenderer) start(name string, m, parent *schema.Module) xml.StartElement {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if m != parent {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: m.Namespace}}
	}
	return start
}

func (x xmlRenderer) leaf(name string, m, parent *schema.Module, value interface{}) error {
	start := x.start(name, m, parent)
	if err := x.enc.EncodeToken(start); err != nil {
		return err
	}
	if text := xmlText(value); text != "" {
		if err := x.enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return x.enc.EncodeToken(start.End())
}

func (x xmlRenderer) node(n *Node, name string, parent *schema.Module, level int) error {
	m := n.Schema.Module
	switch {
	case n.isList():
		if x.opts.Depth > 0 && level > x.opts.Depth {
			return nil
		}
		for _, e := range n.Entries {
			if err := x.node(e, name, parent, level); err != nil {
				return err
			}
		}
		return nil

	case n.Schema.Kind == schema.LeafList:
		for _, raw := range n.Values {
			if err := x.leaf(name, m, parent, n.Schema.Encode(raw, x.opts.Typed)); err != nil {
				return err
			}
		}
		return nil

	case n.isComposite():
		start := x.start(name, m, parent)
		if err := x.enc.EncodeToken(start); err != nil {
			return err
		}
		limited := x.opts.Depth > 0 && level >= x.opts.Depth
		for _, c := range n.SortedChildren() {
			if limited && !(n.Entry && level > 1 && c.Schema.IsKey()) {
				continue
			}
			if err := x.node(c, c.Schema.Name, m, level+1); err != nil {
				return err
			}
		}
		return x.enc.EncodeToken(start.End())
	}

	if n.Value == "" {
		return nil
	}
	return x.leaf(name, m, parent, n.Schema.Encode(n.Value, x.opts.Typed))
}

func xmlText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []interface{}:
		// The empty type
		return ""
	}
	return fmt.Sprint(value)
}

// ParseXML reads an XML request document into the same generic form a
// JSON document decodes to.  Element names are qualified with their
// module name wherever their namespace differs from their parent's.
// Repeated elements become arrays, elements with children become
// objects, and other elements become their text.
func ParseXML(idx *schema.Index, r io.Reader) (map[string]interface{}, error) {
	dec := xml.NewDecoder(r)
	var stack []*xmlElement
	var root *xmlElement
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, badDocument("%v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name.Local, space: t.Name.Space}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root != nil {
				return nil, badDocument("more than one top-level element")
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, badDocument("empty XML document")
	}
	name, err := root.qualifiedName(idx, "")
	if err != nil {
		return nil, err
	}
	value, err := root.value(idx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{name: value}, nil
}

type xmlElement struct {
	name     string
	space    string
	text     strings.Builder
	children []*xmlElement
}

func (el *xmlElement) qualifiedName(idx *schema.Index, parentSpace string) (string, error) {
	if el.space == "" || el.space == parentSpace {
		return el.name, nil
	}
	m := idx.ModuleByNamespace(el.space)
	if m == nil {
		return "", schema.ErrUnknownNamespace{Prefix: el.space}
	}
	return m.Name + ":" + el.name, nil
}

func (el *xmlElement) value(idx *schema.Index) (interface{}, error) {
	if len(el.children) == 0 {
		return strings.TrimSpace(el.text.String()), nil
	}
	obj := make(map[string]interface{})
	for _, c := range el.children {
		name, err := c.qualifiedName(idx, el.space)
		if err != nil {
			return nil, err
		}
		v, err := c.value(idx)
		if err != nil {
			return nil, err
		}
		switch existing := obj[name].(type) {
		case nil:
			obj[name] = v
		case []interface{}:
			obj[name] = append(existing, v)
		default:
			obj[name] = []interface{}{existing, v}
		}
	}
	return obj, nil
}
