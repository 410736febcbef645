package worldcfg

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/yamlsec"
)

// Config is the global settings file: the admin override flag and the two
// templates used for new worlds.
type Config struct {
	path string

	mu                     sync.RWMutex
	updateGameModeForAdmin bool
	defaultWorld           *DefaultWorldConfig
	defaultCreation        WorldCreationConfig

	file fileWriter
}

// NewConfig loads path, which must exist.
func NewConfig(path string) (*Config, error) {
	c := &Config{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Path() string { return c.path }

func (c *Config) Reload() error {
	commit, err := c.Prepare()
	if err != nil {
		return err
	}
	commit()
	return nil
}

// Prepare reads and validates the file without changing the current
// settings. It waits for saves issued before the call. The returned commit
// swaps the result in.
func (c *Config) Prepare() (commit func(), err error) {
	var root *yamlsec.Section
	err = c.file.read(func() error {
		found, err := checkRegularFile(c.path)
		if err != nil {
			return err
		}
		if !found {
			return &fs.PathError{Op: "open", Path: c.path, Err: fs.ErrNotExist}
		}
		root, err = yamlsec.Load(c.path)
		return err
	})
	if err != nil {
		return nil, err
	}
	name := filepath.Base(c.path)

	if err := requireKey(root, "update-game-mode-for-admin"); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	forAdmin, err := root.Bool("update-game-mode-for-admin")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, sectionErr(err))
	}

	if err := requireKey(root, "default-world-config"); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	wsec, _, err := root.Section("default-world-config")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, sectionErr(err))
	}
	def, err := LoadDefaultWorldConfig(wsec)
	if err != nil {
		return nil, fmt.Errorf("%s: default-world-config: %w", name, err)
	}

	if err := requireKey(root, "default-creation-config"); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	csec, _, err := root.Section("default-creation-config")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, sectionErr(err))
	}
	creation, err := LoadWorldCreationConfig(csec)
	if err != nil {
		return nil, fmt.Errorf("%s: default-creation-config: %w", name, err)
	}

	return func() {
		c.mu.Lock()
		c.updateGameModeForAdmin = forAdmin
		c.defaultWorld = def
		c.defaultCreation = creation
		c.mu.Unlock()
	}, nil
}

// Save writes the current settings in the background.
func (c *Config) Save() *async.Future[Written] {
	return c.file.start(func() (Written, error) {
		root := c.encode()
		b, err := root.Save(c.path)
		if err != nil {
			return Written{}, err
		}
		return written(c.path, b), nil
	})
}

func (c *Config) encode() *yamlsec.Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	root := yamlsec.New()
	_ = root.Set("update-game-mode-for-admin", c.updateGameModeForAdmin)
	c.defaultWorld.Write(root.CreateSection("default-world-config"))
	c.defaultCreation.Write(root.CreateSection("default-creation-config"))
	return root
}

func (c *Config) UpdateGameModeForAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updateGameModeForAdmin
}

func (c *Config) SetUpdateGameModeForAdmin(v bool) {
	c.mu.Lock()
	c.updateGameModeForAdmin = v
	c.mu.Unlock()
}

// DefaultWorldConfig returns a copy of the world template.
func (c *Config) DefaultWorldConfig() *DefaultWorldConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultWorld.Copy()
}

func (c *Config) DefaultCreationConfig() WorldCreationConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultCreation
}
