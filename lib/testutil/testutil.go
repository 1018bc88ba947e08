package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"nomadscout/lib/telemetry"

	_ "modernc.org/sqlite"
)

type DBParams struct {
	Name string
	// schema applied after opening, skipped when empty
	Schema string
	// defaults to `:memory:`
	Path string
}

// SetupDB opens a sqlite database for a test and applies the given
// schema. The returned cleanup tears down telemetry and the connection.
func SetupDB(t testing.TB, params DBParams) (*sql.DB, func()) {
	teardown := telemetry.SetupForTesting(fmt.Sprintf("test:%s", params.Name))

	path := params.Path
	if path == "" {
		path = ":memory:"
	}
	sqlite, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if params.Schema != "" {
		_, err = sqlite.Exec(params.Schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}

	return sqlite, func() {
		sqlite.Close()
		teardown()
	}
}
