package database_test

import (
	"testing"

	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/database/ffldb"
)

// openDatabaseForTest opens a fresh ffldb instance under the test's
// temporary directory and closes it when the test ends.
func openDatabaseForTest(t *testing.T, testName string) database.Database {
	db, err := ffldb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("%s: Open unexpectedly failed: %s", testName, err)
	}
	t.Cleanup(func() {
		err := db.Close()
		if err != nil {
			t.Errorf("%s: Close unexpectedly failed: %s", testName, err)
		}
	})
	return db
}

func testForAllDatabaseTypes(t *testing.T, testName string,
	function func(t *testing.T, db database.Database, testName string)) {

	t.Run("ffldb", func(t *testing.T) {
		function(t, openDatabaseForTest(t, testName), "ffldb: "+testName)
	})
}
