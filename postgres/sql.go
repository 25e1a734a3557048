// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

// This file holds the database/sql plumbing the store runs on:
// transactions retried on serialization failure, row iteration, and
// string-built SELECT and UPDATE statements with numbered parameters.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/diffeo/go-restconf/store"
	"github.com/lib/pq"
)

// maxTxAttempts bounds how often withTx reruns a transaction that
// lost a serialization race.
const maxTxAttempts = 20

// serializationFailure is the SQLSTATE PostgreSQL reports when a
// REPEATABLE READ transaction conflicts with a concurrent one.
const serializationFailure = "40001"

func isSerializationFailure(err error) bool {
	pqerr, ok := err.(*pq.Error)
	return ok && pqerr.Code == serializationFailure
}

// withTx runs f in a REPEATABLE READ transaction on db and commits
// it.  If f fails the transaction is rolled back and its error
// returned.  A serialization failure, from f or from the commit,
// reruns the whole transaction.
func withTx(ctx context.Context, db *sql.DB, readOnly bool, f func(*sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = runTx(ctx, db, readOnly, f)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

// runTx makes one attempt at a transaction for withTx.
func runTx(ctx context.Context, db *sql.DB, readOnly bool, f func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); err == nil && rbErr != sql.ErrTxDone {
			err = rbErr
		}
	}()

	level := "REPEATABLE READ"
	if readOnly {
		level += " READ ONLY"
	}
	if _, err = tx.Exec("SET TRANSACTION ISOLATION LEVEL " + level); err != nil {
		return err
	}
	if err = f(tx); err != nil {
		return err
	}
	committed = true
	return tx.Commit()
}

// scanRows calls f once per row, then closes rows.  f should only
// Scan the current row.
func scanRows(rows *sql.Rows, f func() error) (err error) {
	defer func() {
		if closeErr := rows.Close(); err == nil {
			err = closeErr
		}
	}()
	for rows.Next() {
		if err = f(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// queryAndScan runs query on tx with params, and calls f for each row
// in it.
func queryAndScan(tx *sql.Tx, query string, params queryParams, f func(*sql.Rows) error) error {
	rows, err := tx.Query(query, params...)
	if err != nil {
		return err
	}
	return scanRows(rows, func() error {
		return f(rows)
	})
}

// buildSelect constructs a simple SQL SELECT statement by string
// concatenation.  All of the conditions are ANDed together.
func buildSelect(outputs, tables, conditions []string) string {
	query := "SELECT "
	query += strings.Join(outputs, ", ")
	query += " FROM "
	query += strings.Join(tables, ", ")
	if len(conditions) > 0 {
		query += " WHERE "
		query += strings.Join(conditions, " AND ")
	}
	return query
}

// buildUpdate constructs a simple SQL UPDATE statement by string
// concatenation.  All of the conditions are ANDed together.
func buildUpdate(table string, changes, conditions []string) string {
	query := "UPDATE " + table
	if len(changes) > 0 {
		query += " SET " + strings.Join(changes, ", ")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query
}

// queryParams wraps a list of query parameters.
type queryParams []interface{}

// Param adds a parameter to the query parameter list, returning its
// position as $1, $2, ...
func (qp *queryParams) Param(param interface{}) string {
	*qp = append(*qp, param)
	return fmt.Sprintf("$%v", len(*qp))
}

// inSubtree produces a WHERE fragment that matches column against
// path and every path beneath it.
func inSubtree(qp *queryParams, column, path string) string {
	if path == store.Root {
		return "TRUE"
	}
	prefix := path + "/"
	return "(" + column + "=" + qp.Param(path) +
		" OR left(" + column + ", " + qp.Param(len(prefix)) + ")=" + qp.Param(prefix) + ")"
}
