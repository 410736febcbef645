// Package synctest wires a real registry, settings file, live server and
// scheduler into one test fixture.
package synctest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/sim/scheduler"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldcfg/worldcfgtest"
	"voxelworlds.ai/internal/worldsync"
)

// Harness drives the synchronizer through exported APIs only. Anything that
// touches live state goes through Do so it runs on the scheduler goroutine.
type Harness struct {
	T *testing.T

	DataDir   string
	Container string

	Cfg   *worldcfg.Config
	List  *worldcfg.WorldConfigList
	Srv   *live.Server
	Sched *scheduler.Scheduler
	Sync  *worldsync.Synchronizer
	Log   *slog.Logger
}

// New writes config.yml (and worlds.yml when worldsYAML is not empty),
// creates the main world "world" and starts the scheduler.
func New(t *testing.T, worldsYAML string) *Harness {
	t.Helper()
	h := &Harness{
		T:         t,
		DataDir:   t.TempDir(),
		Container: t.TempDir(),
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	cfgPath := worldcfgtest.WriteFile(t, h.DataDir, "config.yml", worldcfgtest.ConfigYAML)
	if worldsYAML != "" {
		worldcfgtest.WriteFile(t, h.DataDir, "worlds.yml", worldsYAML)
	}
	var err error
	if h.Cfg, err = worldcfg.NewConfig(cfgPath); err != nil {
		t.Fatalf("config: %v", err)
	}
	if h.List, err = worldcfg.NewWorldConfigList(filepath.Join(h.DataDir, "worlds.yml")); err != nil {
		t.Fatalf("worlds: %v", err)
	}
	h.Srv = live.NewServer(live.Options{Container: h.Container, MainWorld: "world", Log: h.Log})
	if _, err := h.Srv.CreateWorld(worldcfg.WorldCreator{Name: "world", Environment: worldcfg.EnvNormal, Type: worldcfg.TypeNormal}); err != nil {
		t.Fatalf("main world: %v", err)
	}
	h.Sched = scheduler.New()
	h.Sync = worldsync.New(h.Cfg, h.List, h.Srv, h.Sched, h.Log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Sched.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.Sched.Stopped()
	})
	return h
}

// Do runs fn on the scheduler goroutine and fails the test on error.
func (h *Harness) Do(fn func() error) {
	h.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Sched.Call(ctx, fn); err != nil {
		h.T.Fatalf("scheduled call: %v", err)
	}
}

// MakeWorldDir creates a bare world directory in the container.
func (h *Harness) MakeWorldDir(name string) {
	h.T.Helper()
	if err := os.MkdirAll(filepath.Join(h.Container, name), 0o755); err != nil {
		h.T.Fatalf("mkdir: %v", err)
	}
}

// WriteWorlds replaces worlds.yml on disk.
func (h *Harness) WriteWorlds(body string) {
	h.T.Helper()
	worldcfgtest.WriteFile(h.T, h.DataDir, "worlds.yml", body)
}

// WriteConfig replaces config.yml on disk.
func (h *Harness) WriteConfig(body string) {
	h.T.Helper()
	worldcfgtest.WriteFile(h.T, h.DataDir, "config.yml", body)
}

// Wait blocks on a save or reload future.
func Wait[T any](t *testing.T, f *async.Future[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	return v
}
