// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/diffeo/go-restconf/store"
	"github.com/lib/pq"
)

// errUnchanged rolls back a batch that would not change anything, so
// that it does not consume a version.
var errUnchanged = errors.New("batch changes nothing")

// staged is the net effect of a batch before it is applied: the final
// value of every touched path, in first-touch order.
type staged struct {
	order  []string
	values map[string]string
}

func (st *staged) put(path, value string) {
	if _, seen := st.values[path]; !seen {
		st.order = append(st.order, path)
	}
	st.values[path] = value
}

func (s *pgStore) SetTree(ctx context.Context, batch store.Batch) (store.Revision, error) {
	for _, path := range batch.Prune {
		if err := store.CheckPath(path); err != nil {
			return store.Revision{}, err
		}
	}
	for _, v := range batch.Values {
		if err := store.CheckPath(v.Path); err != nil {
			return store.Revision{}, err
		}
	}

	var rev store.Revision
	err := withTx(ctx, s.db, false, func(tx *sql.Tx) (err error) {
		rev, err = s.setTree(tx, batch)
		return
	})
	if err == errUnchanged {
		return store.Revision{}, nil
	}
	if err != nil {
		return store.Revision{}, err
	}
	return rev, nil
}

// setTree applies a batch inside a read-write transaction.
func (s *pgStore) setTree(tx *sql.Tx, batch store.Batch) (store.Revision, error) {
	// Claim the next version first.  This row lock serializes
	// writers, and under REPEATABLE READ a writer that started
	// before another committed fails here and is retried.
	var version int64
	err := tx.QueryRow(buildUpdate(
		versionTable,
		[]string{"version=version+1"},
		nil,
	) + " RETURNING " + versionVersion).Scan(&version)
	if err != nil {
		return store.Revision{}, err
	}

	for _, guard := range batch.Guards {
		rev, err := revisionOf(tx, guard.Path)
		if err != nil {
			return store.Revision{}, err
		}
		if err := guard.Check(rev); err != nil {
			return store.Revision{}, err
		}
	}

	st := &staged{values: make(map[string]string)}
	for _, path := range batch.Prune {
		// Anything written earlier in this batch goes too
		for _, p := range st.order {
			if store.Under(p, path) {
				st.values[p] = ""
			}
		}
		var params queryParams
		query := buildSelect(
			[]string{valuePath},
			[]string{valueTable},
			[]string{inSubtree(&params, valuePath, path)},
		)
		var existing []store.Value
		err := queryAndScan(tx, query, params, func(rows *sql.Rows) error {
			var v store.Value
			err := rows.Scan(&v.Path)
			existing = append(existing, v)
			return err
		})
		if err != nil {
			return store.Revision{}, err
		}
		sortValues(existing)
		for _, v := range existing {
			st.put(v.Path, "")
		}
	}
	for _, v := range batch.Values {
		st.put(v.Path, v.Value)
	}

	current := make(map[string]string)
	err = queryAndScan(tx, buildSelect(
		[]string{valuePath, valueValue},
		[]string{valueTable},
		[]string{valuePath + "=ANY($1)"},
	), queryParams{pq.Array(st.order)}, func(rows *sql.Rows) error {
		var path, value string
		err := rows.Scan(&path, &value)
		current[path] = value
		return err
	})
	if err != nil {
		return store.Revision{}, err
	}

	var changes []store.Value
	for _, path := range st.order {
		if value := st.values[path]; current[path] != value {
			changes = append(changes, store.Value{Path: path, Value: value})
		}
	}
	if len(changes) == 0 {
		return store.Revision{}, errUnchanged
	}

	rev := store.Revision{Version: uint64(version), Modified: s.clock.Now()}
	touched := make(map[string]bool)
	for seq, change := range changes {
		if change.Value == "" {
			_, err = tx.Exec("DELETE FROM "+valueTable+" WHERE path=$1", change.Path)
		} else {
			_, err = tx.Exec("INSERT INTO "+valueTable+"(path, value) VALUES ($1, $2) "+
				"ON CONFLICT (path) DO UPDATE SET value=EXCLUDED.value",
				change.Path, change.Value)
		}
		if err != nil {
			return store.Revision{}, err
		}
		_, err = tx.Exec("INSERT INTO "+changeTable+"(version, seq, path, value, modified) "+
			"VALUES ($1, $2, $3, $4, $5)",
			version, seq, change.Path, change.Value, rev.Modified)
		if err != nil {
			return store.Revision{}, err
		}
		for _, path := range ancestors(change.Path) {
			touched[path] = true
		}
	}

	if err := stampRevisions(tx, touched, rev); err != nil {
		return store.Revision{}, err
	}

	_, err = tx.Exec("DELETE FROM "+changeTable+" WHERE version<=$1", version-changeRetention)
	if err != nil {
		return store.Revision{}, err
	}
	_, err = tx.Exec("SELECT pg_notify($1, $2)", notifyChannel, strconv.FormatInt(version, 10))
	if err != nil {
		return store.Revision{}, err
	}
	return rev, nil
}

// stampRevisions records rev on every touched path that still exists,
// and forgets the revision of every touched path that no longer does.
func stampRevisions(tx *sql.Tx, touched map[string]bool, rev store.Revision) error {
	paths := make([]string, 0, len(touched))
	for path := range touched {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		var params queryParams
		var exists bool
		err := tx.QueryRow("SELECT EXISTS("+buildSelect(
			[]string{"1"},
			[]string{valueTable},
			[]string{inSubtree(&params, valuePath, path)},
		)+")", params...).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			_, err = tx.Exec("INSERT INTO "+revisionTable+"(path, parent, version, modified) "+
				"VALUES ($1, $2, $3, $4) "+
				"ON CONFLICT (path) DO UPDATE SET version=EXCLUDED.version, modified=EXCLUDED.modified",
				path, parentOf(path), int64(rev.Version), rev.Modified)
		} else {
			_, err = tx.Exec("DELETE FROM "+revisionTable+" WHERE path=$1", path)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// changesSince reads every recorded change after version, grouped by
// version in commit order.
func changesSince(tx *sql.Tx, version int64) ([]store.Change, error) {
	var result []store.Change
	query := buildSelect(
		[]string{changeVersion, changePath, changeValue, changeModified},
		[]string{changeTable},
		[]string{changeVersion + ">$1"},
	) + " ORDER BY " + changeVersion + ", " + changeSeq
	err := queryAndScan(tx, query, queryParams{version}, func(rows *sql.Rows) error {
		var (
			v        int64
			value    store.Value
			modified time.Time
		)
		if err := rows.Scan(&v, &value.Path, &value.Value, &modified); err != nil {
			return err
		}
		if n := len(result); n == 0 || result[n-1].Revision.Version != uint64(v) {
			result = append(result, store.Change{
				Revision: store.Revision{Version: uint64(v), Modified: modified.UTC()},
			})
		}
		last := &result[len(result)-1]
		last.Values = append(last.Values, value)
		return nil
	})
	return result, err
}
