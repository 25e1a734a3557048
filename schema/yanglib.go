// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

// LibraryVersion is the revision of ietf-yang-library the gateway
// reports as its yang-library-version.
const LibraryVersion = "2019-01-04"

// YangLibrary returns the contents of the ietf-yang-library
// yang-library container describing the loaded modules, as a generic
// JSON document without the top-level name.
func (idx *Index) YangLibrary() map[string]interface{} {
	modules := make([]interface{}, 0, len(idx.Modules))
	for _, m := range idx.Modules {
		entry := map[string]interface{}{
			"name":      m.Name,
			"namespace": m.Namespace,
		}
		if m.Revision != "" {
			entry["revision"] = m.Revision
		}
		modules = append(modules, entry)
	}
	return map[string]interface{}{
		"content-id": idx.ContentID,
		"module-set": []interface{}{
			map[string]interface{}{
				"name":   "all",
				"module": modules,
			},
		},
		"schema": []interface{}{
			map[string]interface{}{
				"name":       "all",
				"module-set": []interface{}{"all"},
			},
		},
		"datastore": []interface{}{
			map[string]interface{}{
				"name":   "ietf-datastores:running",
				"schema": "all",
			},
			map[string]interface{}{
				"name":   "ietf-datastores:operational",
				"schema": "all",
			},
		},
	}
}
