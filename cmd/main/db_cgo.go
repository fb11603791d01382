//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// driverName is the cgo SQLite driver, selected with the cgo_sqlite build tag.
const driverName = "sqlite3"

func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open(driverName, dataSource)
}
