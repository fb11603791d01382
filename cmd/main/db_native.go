//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// driverName is the pure-Go SQLite driver, used unless built with cgo_sqlite.
const driverName = "sqlite"

func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open(driverName, dataSource)
}
