package app

import (
	"os"
	"testing"
)

func TestDatabaseVersion(t *testing.T) {
	dbPath := t.TempDir()

	err := checkDatabaseVersion(dbPath)
	if err != nil {
		t.Fatalf("new database: unexpected error %+v", err)
	}

	err = createDatabaseVersionFile(dbPath)
	if err != nil {
		t.Fatalf("createDatabaseVersionFile: %+v", err)
	}
	err = checkDatabaseVersion(dbPath)
	if err != nil {
		t.Fatalf("current version: unexpected error %+v", err)
	}

	err = os.WriteFile(versionFilePath(dbPath), []byte("2"), 0600)
	if err != nil {
		t.Fatalf("WriteFile: %+v", err)
	}
	err = checkDatabaseVersion(dbPath)
	if err == nil {
		t.Fatalf("newer version: expected an error")
	}

	err = os.WriteFile(versionFilePath(dbPath), []byte("two"), 0600)
	if err != nil {
		t.Fatalf("WriteFile: %+v", err)
	}
	err = checkDatabaseVersion(dbPath)
	if err == nil {
		t.Fatalf("malformed version: expected an error")
	}
}
