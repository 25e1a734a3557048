// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package store

import "strings"

// Root is the path of the top of the store.
const Root = "/"

// CheckPath returns ErrBadPath unless path is an absolute store path.
// The root path "/" is valid; otherwise the path must not end in a
// slash and no segment may be empty, "." or "..".
func CheckPath(path string) error {
	if path == Root {
		return nil
	}
	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return ErrBadPath{Path: path}
	}
	for _, seg := range strings.Split(path[1:], "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrBadPath{Path: path}
		}
	}
	return nil
}

// Split returns the segments of an absolute path.  The root path has
// no segments.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Join appends segments to a base path.
func Join(base string, segments ...string) string {
	if len(segments) == 0 {
		if base == "" {
			return Root
		}
		return base
	}
	base = strings.TrimSuffix(base, "/")
	return base + "/" + strings.Join(segments, "/")
}

// Under returns true if path is root or is beneath it.
func Under(path, root string) bool {
	if root == Root || path == root {
		return true
	}
	return strings.HasPrefix(path, root) && len(path) > len(root) && path[len(root)] == '/'
}

// Relative returns path relative to root, as an absolute path.  path
// must be Under root.  Relative("/a/b/c", "/a") is "/b/c", and
// Relative("/a", "/a") is "/".
func Relative(path, root string) string {
	if root == Root {
		return path
	}
	rest := path[len(root):]
	if rest == "" {
		return Root
	}
	return rest
}

// Parent returns the parent of a path.  The parent of the root is the
// root.
func Parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return Root
	}
	return path[:i]
}

// Base returns the last segment of a path, or "" for the root.
func Base(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}
