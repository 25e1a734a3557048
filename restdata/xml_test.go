// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ietf(module string) string {
	switch module {
	case "ietf-restconf":
		return RestconfNamespace
	case "ietf-yang-library":
		return YangLibraryNamespace
	}
	return ""
}

func TestEncodeXMLErrors(t *testing.T) {
	var buf bytes.Buffer
	doc := ErrorsDocument(Error{Type: TypeProtocol, Tag: TagAccessDenied, Message: "no", Status: http.StatusForbidden})
	if assert.NoError(t, EncodeXML(&buf, doc, ietf)) {
		assert.Equal(t,
			`<errors xmlns="urn:ietf:params:xml:ns:yang:ietf-restconf"><error>`+
				`<error-message>no</error-message><error-tag>access-denied</error-tag><error-type>protocol</error-type>`+
				`</error></errors>`,
			buf.String())
	}
}

func TestEncodeXMLNested(t *testing.T) {
	var buf bytes.Buffer
	doc := map[string]interface{}{
		"ietf-restconf:operations": map[string]interface{}{
			"testing:reboot": []interface{}{nil},
		},
	}
	ns := func(module string) string {
		if module == "testing" {
			return "urn:testing"
		}
		return ietf(module)
	}
	if assert.NoError(t, EncodeXML(&buf, doc, ns)) {
		assert.Equal(t,
			`<operations xmlns="urn:ietf:params:xml:ns:yang:ietf-restconf">`+
				`<reboot xmlns="urn:testing"></reboot></operations>`,
			buf.String())
	}
}
