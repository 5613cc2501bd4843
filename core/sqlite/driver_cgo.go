//go:build cgo_sqlite

// The CGO driver lives in contrib/sqlite-external so the default build
// carries no cgo dependency.

package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/JuniperScore/contrib/sqlite-external"
)

const (
	driverName    = sqliteexternal.DriverName
	driverType    = sqliteexternal.DriverType
	driverPackage = sqliteexternal.DriverPackage + " (via contrib/sqlite-external)"
)
