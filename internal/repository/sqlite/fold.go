package sqlite

import (
	"database/sql/driver"
	"strings"

	moderncsqlite "modernc.org/sqlite"
)

// SQLite's own LOWER() and LIKE only fold ASCII letters, so "émile" would not
// match "Émile". Search compares through fold instead, which lowercases with
// the full Unicode tables, the same way postgres ILIKE does.
//
// Registered functions only reach connections opened afterwards, hence init.
func init() {
	moderncsqlite.MustRegisterDeterministicScalarFunction("fold", 1, fold)
}

func fold(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
