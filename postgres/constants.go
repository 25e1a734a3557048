// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

const (
	// SQL table names:
	versionTable  = "store_version"
	valueTable    = "store_value"
	revisionTable = "store_revision"
	changeTable   = "store_change"

	// SQL column names:
	versionVersion   = versionTable + ".version"
	valuePath        = valueTable + ".path"
	valueValue       = valueTable + ".value"
	revisionPath     = revisionTable + ".path"
	revisionParent   = revisionTable + ".parent"
	revisionVersion  = revisionTable + ".version"
	revisionModified = revisionTable + ".modified"
	changeVersion    = changeTable + ".version"
	changeSeq        = changeTable + ".seq"
	changePath       = changeTable + ".path"
	changeValue      = changeTable + ".value"
	changeModified   = changeTable + ".modified"

	// notifyChannel is the LISTEN/NOTIFY channel that carries
	// committed version numbers.
	notifyChannel = "store_change"

	// changeRetention is the number of versions of change history
	// kept for watchers to catch up on.
	changeRetention = 10000
)
