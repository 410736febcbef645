package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// LevelFile is the per-world level data file inside a world directory.
const LevelFile = "level.dat.zst"

const levelVersion = 1

type Header struct {
	Version int    `json:"version"`
	World   string `json:"world"`
	Time    int64  `json:"time"`
}

// LevelV1 is everything a live world needs to come back after a restart.
type LevelV1 struct {
	Header Header `json:"header"`

	Seed               int64  `json:"seed"`
	Environment        string `json:"environment"`
	WorldType          string `json:"world_type"`
	Generator          string `json:"generator,omitempty"`
	GeneratorSettings  string `json:"generator_settings,omitempty"`
	GenerateStructures bool   `json:"generate_structures"`

	KeepSpawnInMemory bool              `json:"keep_spawn_in_memory"`
	Time              int64             `json:"time"`
	GameRules         map[string]string `json:"game_rules"`

	Spawn      [3]float64 `json:"spawn"`
	SpawnYaw   float32    `json:"spawn_yaw"`
	SpawnPitch float32    `json:"spawn_pitch"`
}

// LevelPath returns the level data path for world under container.
func LevelPath(container, world string) string {
	return filepath.Join(container, world, LevelFile)
}

// WriteLevel writes lvl as a JSON header line followed by a gob body, all
// inside one zstd stream. The file is replaced atomically.
func WriteLevel(path string, lvl LevelV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	lvl.Header.Version = levelVersion
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encodeLevel(f, lvl); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encodeLevel(f *os.File, lvl LevelV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(lvl.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&lvl); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadLevel(path string) (LevelV1, error) {
	var lvl LevelV1
	f, err := os.Open(path)
	if err != nil {
		return lvl, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return lvl, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return lvl, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return lvl, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != levelVersion {
		return lvl, fmt.Errorf("unsupported level version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&lvl); err != nil {
		return lvl, fmt.Errorf("gob decode: %w", err)
	}
	return lvl, nil
}

// ReadHeader reads only the header line; used by tooling that lists worlds.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	hb, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(hb, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
