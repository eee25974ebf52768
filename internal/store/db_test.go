package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPoolLimits(t *testing.T) {
	cases := []struct {
		name     string
		maxOpen  int
		maxIdle  int
		wantOpen int
		wantIdle int
	}{
		{"configured", 40, 8, 40, 8},
		{"zero falls back", 0, 0, defaultMaxOpenConns, defaultMaxIdleConns},
		{"negative falls back", -1, -1, defaultMaxOpenConns, defaultMaxIdleConns},
		{"idle capped at open", 5, 50, 5, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			open, idle := poolLimits(tc.maxOpen, tc.maxIdle)
			if open != tc.wantOpen || idle != tc.wantIdle {
				t.Fatalf("poolLimits(%d, %d) = (%d, %d), want (%d, %d)",
					tc.maxOpen, tc.maxIdle, open, idle, tc.wantOpen, tc.wantIdle)
			}
		})
	}
}

func TestMigrationFilesOrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_indexes.up.sql",
		"0001_init.up.sql",
		"0001_init.down.sql",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.up.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "0001_init.up.sql" || filepath.Base(files[1]) != "0002_indexes.up.sql" {
		t.Fatalf("unexpected order: %v", files)
	}
}

func TestMigrationFilesMissingDir(t *testing.T) {
	if _, err := migrationFiles(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
