package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelworlds.ai/internal/commands"
	"voxelworlds.ai/internal/persistence/indexdb"
)

type runtimeIndex interface {
	commands.Recorder
	Stats() indexdb.Stats
	Close() error
}

// openRuntimeIndex picks the revision index backend from VW_INDEX_BACKEND.
// A nil index disables recording.
func openRuntimeIndex(dataDir, path string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VW_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		if path == "" {
			path = filepath.Join(dataDir, "index", "worlds.sqlite")
		}
		return indexdb.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported VW_INDEX_BACKEND=%q (want sqlite|none)", backend)
	}
}
