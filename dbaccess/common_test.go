package dbaccess

import (
	"io/ioutil"
	"os"
	"testing"
)

func prepareDatabaseForTest(t *testing.T, testName string) (databaseContext *DatabaseContext, teardownFunc func()) {
	// Create a temp db to run tests against
	path, err := ioutil.TempDir("", testName)
	if err != nil {
		t.Fatalf("%s: TempDir unexpectedly "+
			"failed: %s", testName, err)
	}
	databaseContext, err = New(path)
	if err != nil {
		t.Fatalf("%s: New unexpectedly "+
			"failed: %s", testName, err)
	}
	teardownFunc = func() {
		err := databaseContext.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly "+
				"failed: %s", testName, err)
		}
		os.RemoveAll(path)
	}
	return databaseContext, teardownFunc
}
