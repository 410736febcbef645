package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveSettings(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "worlds.yml"), []byte("alpha: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dir, err := ArchiveSettings(dataDir, "startup", at, "config.yml", "worlds.yml")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if dir == "" {
		t.Fatalf("expected an archive dir")
	}
	b, err := os.ReadFile(filepath.Join(dir, "worlds.yml"))
	if err != nil || string(b) != "alpha: {}\n" {
		t.Fatalf("copy: %q %v", b, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yml")); !os.IsNotExist(err) {
		t.Fatalf("missing file should be skipped, stat err=%v", err)
	}

	m, err := ReadMeta(dir)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if m.Reason != "startup" || len(m.Files) != 1 || m.Files[0].Name != "worlds.yml" || m.Files[0].Size != 10 {
		t.Fatalf("meta: %+v", m)
	}
	if len(m.Files[0].SHA256) != 64 {
		t.Fatalf("digest: %q", m.Files[0].SHA256)
	}
}

func TestArchiveSettings_NothingToArchive(t *testing.T) {
	dataDir := t.TempDir()
	dir, err := ArchiveSettings(dataDir, "startup", time.Now(), "config.yml")
	if err != nil || dir != "" {
		t.Fatalf("dir=%q err=%v", dir, err)
	}
	dirs, _ := List(dataDir)
	if len(dirs) != 0 {
		t.Fatalf("unexpected archives: %v", dirs)
	}
}

func TestPrune(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "config.yml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := ArchiveSettings(dataDir, "startup", at.Add(time.Duration(i)*time.Minute), "config.yml"); err != nil {
			t.Fatalf("archive %d: %v", i, err)
		}
	}
	removed, err := Prune(dataDir, 2)
	if err != nil || removed != 3 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	dirs, _ := List(dataDir)
	if len(dirs) != 2 || filepath.Base(dirs[1]) != "20260301T100400.000000000Z" {
		t.Fatalf("left: %v", dirs)
	}
}
