// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package storerpc

import (
	"errors"
	"reflect"
	"time"

	"github.com/diffeo/go-restconf/store"
	"github.com/mitchellh/mapstructure"
)

// Revision is the wire form of store.Revision.  Modified is in Unix
// nanoseconds, and is zero for the zero revision.
type Revision struct {
	Version  uint64
	Modified int64
}

// Snapshot is the wire form of store.Snapshot.
type Snapshot struct {
	Values   []store.Value
	Revision Revision
}

// Guard is the wire form of a batch precondition.  The server applies
// the batch only if Path is still at Version.
type Guard struct {
	Path    string
	Version uint64
}

// Batch is the wire form of store.Batch.
type Batch struct {
	Prune  []string
	Values []store.Value
	Guards []Guard
}

func fromRevision(rev store.Revision) Revision {
	if rev.IsZero() {
		return Revision{}
	}
	return Revision{Version: rev.Version, Modified: rev.Modified.UnixNano()}
}

func (rev Revision) toRevision() store.Revision {
	if rev.Version == 0 {
		return store.Revision{}
	}
	return store.Revision{Version: rev.Version, Modified: time.Unix(0, rev.Modified)}
}

// CreateParamList tries to match a CBOR-RPC parameter list to a specific
// callable's parameter list.  funcv is the reflected method to eventually
// call, and params is the list of parameters from the CBOR-RPC request.
// On success, the return value is a list of parameter values that can be
// passed to funcv.Call().
func CreateParamList(funcv reflect.Value, params []interface{}) ([]reflect.Value, error) {
	funct := funcv.Type()
	numParams := funct.NumIn()
	if len(params) != numParams {
		return nil, errors.New("wrong number of parameters")
	}
	results := make([]reflect.Value, numParams)
	for i := 0; i < numParams; i++ {
		paramValue := reflect.New(funct.In(i))
		if err := decode(params[i], paramValue.Interface()); err != nil {
			return nil, err
		}
		results[i] = paramValue.Elem()
	}
	return results, nil
}

// decode converts a generically decoded CBOR object into a typed Go
// object.
func decode(from interface{}, to interface{}) error {
	config := mapstructure.DecoderConfig{
		DecodeHook: DecodeBytesAsString,
		Result:     to,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return err
	}
	return decoder.Decode(from)
}

// SloppyString converts a string or []byte to a string, or returns nil.
func SloppyString(obj interface{}) *string {
	switch str := obj.(type) {
	case string:
		return &str
	case []byte:
		s := string(str)
		return &s
	default:
		return nil
	}
}

// DecodeBytesAsString is a mapstructure decode hook that accepts a
// byte slice where a string is expected.
func DecodeBytesAsString(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() == reflect.String && from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8 {
		return string(data.([]uint8)), nil
	}
	return data, nil
}

// StringKeyedMap tries to convert an arbitrary object to a string-keyed
// map.  If this fails (because obj isn't a map or because any of its keys
// aren't strings) returns nil without further explanation.
func StringKeyedMap(obj interface{}) map[string]interface{} {
	switch objAsMap := obj.(type) {
	case map[string]interface{}:
		return objAsMap
	case map[interface{}]interface{}:
		result := make(map[string]interface{})
		for key, value := range objAsMap {
			keyAsString := SloppyString(key)
			if keyAsString == nil {
				// some key isn't a string
				return nil
			}
			result[*keyAsString] = value
		}
		return result
	default:
		// not a map
		return nil
	}
}
