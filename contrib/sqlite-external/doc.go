// Package sqliteexternal links the CGO SQLite driver (github.com/mattn/go-sqlite3)
// for builds that opt in with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/juniperscore
//
// core/sqlite imports it under that tag, so the run catalogue in
// internal/store switches driver without code changes. Without the tag the
// package is empty and the pure Go modernc.org/sqlite driver is used.
package sqliteexternal
