package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLevel_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := LevelPath(dir, "alpha")
	in := LevelV1{
		Header:             Header{World: "alpha", Time: 6000},
		Seed:               42,
		Environment:        "NORMAL",
		WorldType:          "FLAT",
		Generator:          "void",
		GeneratorSettings:  "{}",
		GenerateStructures: false,
		KeepSpawnInMemory:  true,
		Time:               6000,
		GameRules:          map[string]string{"keepInventory": "true"},
		Spawn:              [3]float64{0.5, 4, 0.5},
		SpawnYaw:           90,
		SpawnPitch:         -10,
	}
	if err := WriteLevel(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	got, err := ReadLevel(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	in.Header.Version = levelVersion
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("mismatch:\n got %+v\nwant %+v", got, in)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.World != "alpha" || h.Time != 6000 || h.Version != levelVersion {
		t.Fatalf("header: %+v", h)
	}
}

func TestReadLevel_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), LevelFile)
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadLevel(path); err == nil {
		t.Fatalf("expected error")
	}
}
