package worldcfg

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/yamlsec"
)

// Written describes a completed config file write.
type Written struct {
	Path    string
	Digest  string
	Content []byte
}

// WorldConfigList is the registry of managed worlds, backed by one YAML file
// whose top-level keys are world names.
//
// Records are owned by the list. Mutate them through Update so background
// saves never observe a half-written record; Get returns the live pointer
// for reads on the primary context.
type WorldConfigList struct {
	path string

	mu     sync.RWMutex
	worlds map[string]*WorldConfig

	file fileWriter
}

// NewWorldConfigList loads path. A missing file yields an empty list.
func NewWorldConfigList(path string) (*WorldConfigList, error) {
	l := &WorldConfigList{path: path, worlds: map[string]*WorldConfig{}}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *WorldConfigList) Path() string { return l.path }

// Reload replaces the whole map with the file's contents. A missing file
// keeps the current map; any invalid record leaves it untouched.
func (l *WorldConfigList) Reload() error {
	commit, err := l.Prepare()
	if err != nil {
		return err
	}
	commit()
	return nil
}

// Prepare reads and validates the file without touching the current map.
// It waits for saves issued before the call, so their records are read
// back. The returned commit swaps the result in.
func (l *WorldConfigList) Prepare() (commit func(), err error) {
	var (
		found bool
		root  *yamlsec.Section
	)
	err = l.file.read(func() error {
		var err error
		if found, err = checkRegularFile(l.path); err != nil || !found {
			return err
		}
		root, err = yamlsec.Load(l.path)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return func() {}, nil
	}
	next := make(map[string]*WorldConfig, len(root.Keys()))
	for _, name := range root.Keys() {
		sec, ok, err := root.Section(name)
		if err == nil && !ok {
			err = &InvalidValueError{Key: name, Value: ""}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: world %q: %w", filepath.Base(l.path), name, sectionErr(err))
		}
		wc, err := LoadWorldConfig(sec)
		if err != nil {
			return nil, fmt.Errorf("%s: world %q: %w", filepath.Base(l.path), name, err)
		}
		next[name] = wc
	}
	return func() {
		l.mu.Lock()
		l.worlds = next
		l.mu.Unlock()
	}, nil
}

// Save writes the current map to the file in the background.
func (l *WorldConfigList) Save() *async.Future[Written] {
	return l.file.start(func() (Written, error) {
		root := l.encode()
		b, err := root.Save(l.path)
		if err != nil {
			return Written{}, err
		}
		return written(l.path, b), nil
	})
}

// Encode renders the current map as the file would be written.
func (l *WorldConfigList) Encode() ([]byte, error) {
	return l.encode().Marshal()
}

func (l *WorldConfigList) encode() *yamlsec.Section {
	root := yamlsec.New()
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, name := range slices.Sorted(maps.Keys(l.worlds)) {
		l.worlds[name].Write(root.CreateSection(name))
	}
	return root
}

// Get returns the record for name.
func (l *WorldConfigList) Get(name string) (*WorldConfig, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	wc, ok := l.worlds[name]
	return wc, ok
}

// GetWorld looks a record up by the live world's name.
func (l *WorldConfigList) GetWorld(w World) (*WorldConfig, bool) {
	return l.Get(w.Name())
}

// Add registers or replaces the record for name. A nil rule set is
// replaced by an empty one before the record is published.
func (l *WorldConfigList) Add(name string, wc *WorldConfig) {
	if wc.Rules == nil {
		wc.Rules = NewRuleSet(nil)
	}
	l.mu.Lock()
	l.worlds[name] = wc
	l.mu.Unlock()
}

// Remove drops name and reports whether it was present.
func (l *WorldConfigList) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.worlds[name]
	delete(l.worlds, name)
	return ok
}

// Update runs fn on the record for name while holding the write lock.
func (l *WorldConfigList) Update(name string, fn func(*WorldConfig)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	wc, ok := l.worlds[name]
	if !ok {
		return false
	}
	fn(wc)
	if wc.Rules == nil {
		wc.Rules = NewRuleSet(nil)
	}
	return true
}

// Names returns the managed world names, sorted.
func (l *WorldConfigList) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.worlds))
}

func (l *WorldConfigList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.worlds)
}

// Snapshot returns deep copies of every record.
func (l *WorldConfigList) Snapshot() map[string]*WorldConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*WorldConfig, len(l.worlds))
	for name, wc := range l.worlds {
		out[name] = wc.Copy()
	}
	return out
}

// checkRegularFile reports whether path exists; an existing non-file is an
// error.
func checkRegularFile(path string) (bool, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.Mode().IsRegular() {
		return false, &NotRegularFileError{Path: path}
	}
	return true, nil
}

func written(path string, b []byte) Written {
	sum := sha256.Sum256(b)
	return Written{Path: path, Digest: hex.EncodeToString(sum[:]), Content: b}
}
