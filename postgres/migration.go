// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal store flow, either at initial
// startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-store",
			Up: []string{
				`CREATE TABLE ` + versionTable + `(
					version BIGINT NOT NULL
				)`,
				`INSERT INTO ` + versionTable + `(version) VALUES (0)`,
				`CREATE TABLE ` + valueTable + `(
					path TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)`,
				`CREATE TABLE ` + revisionTable + `(
					path TEXT PRIMARY KEY,
					parent TEXT NOT NULL,
					version BIGINT NOT NULL,
					modified TIMESTAMP WITH TIME ZONE NOT NULL
				)`,
				`CREATE INDEX ` + revisionTable + `_parent ON ` + revisionTable + `(parent)`,
				`CREATE TABLE ` + changeTable + `(
					version BIGINT NOT NULL,
					seq INTEGER NOT NULL,
					path TEXT NOT NULL,
					value TEXT NOT NULL,
					modified TIMESTAMP WITH TIME ZONE NOT NULL,
					PRIMARY KEY (version, seq)
				)`,
			},
			Down: []string{
				`DROP TABLE ` + changeTable,
				`DROP TABLE ` + revisionTable,
				`DROP TABLE ` + valueTable,
				`DROP TABLE ` + versionTable,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
