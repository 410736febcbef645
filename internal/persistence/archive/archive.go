// Package archive keeps dated copies of the settings files so an operator
// can go back to the state the server last started with.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const metaFile = "meta.json"

type FileMeta struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type Meta struct {
	Reason    string     `json:"reason"`
	CreatedAt string     `json:"created_at"`
	Files     []FileMeta `json:"files"`
}

// ArchiveSettings copies the named files from dataDir into
// dataDir/archives/<UTC time>/ next to a meta.json. Missing files are
// skipped; when none exist nothing is written and dir is empty.
func ArchiveSettings(dataDir, reason string, now time.Time, names ...string) (dir string, err error) {
	now = now.UTC()
	dir = filepath.Join(dataDir, "archives", now.Format("20060102T150405.000000000Z"))
	meta := Meta{Reason: reason, CreatedAt: now.Format(time.RFC3339Nano)}
	for _, name := range names {
		fm, err := copyFile(filepath.Join(dataDir, name), filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		fm.Name = name
		meta.Files = append(meta.Files, fm)
	}
	if len(meta.Files) == 0 {
		return "", nil
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), b, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// List returns archive directories, oldest first.
func List(dataDir string) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(dataDir, "archives"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			out = append(out, filepath.Join(dataDir, "archives", e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

// ReadMeta reads the meta.json of one archive directory.
func ReadMeta(dir string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// Prune removes all but the newest keep archives and reports how many it
// removed.
func Prune(dataDir string, keep int) (int, error) {
	dirs, err := List(dataDir)
	if err != nil || len(dirs) <= keep {
		return 0, err
	}
	var removed int
	for _, d := range dirs[:len(dirs)-keep] {
		if err := os.RemoveAll(d); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func copyFile(src, dst string) (FileMeta, error) {
	var fm FileMeta
	in, err := os.Open(src)
	if err != nil {
		return fm, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fm, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return fm, err
	}
	defer func() { _ = out.Close() }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return fm, err
	}
	fm.Size = n
	fm.SHA256 = hex.EncodeToString(h.Sum(nil))
	return fm, out.Close()
}
