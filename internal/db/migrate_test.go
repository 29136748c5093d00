package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("expected migration 001 first, got %+v", migrations)
	}
	if !strings.Contains(migrations[0].SQL, "appointments_active_slot_idx") {
		t.Error("core migration should define the active slot unique index")
	}
}

func TestLoadMigrations_OrderAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_late.sql":  {Data: []byte("SELECT 10")},
		"m/002_mid.sql":   {Data: []byte("SELECT 2")},
		"m/001_first.sql": {Data: []byte("SELECT 1")},
		"m/README.md":     {Data: []byte("docs")},
		"m/draft.sql":     {Data: []byte("SELECT 0")},
		"m/abc_bad.sql":   {Data: []byte("SELECT 0")},
	}

	migrations, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var versions []int
	for _, m := range migrations {
		versions = append(versions, m.Version)
	}
	if len(versions) != 3 || versions[0] != 1 || versions[1] != 2 || versions[2] != 10 {
		t.Errorf("unexpected versions %v", versions)
	}
}
