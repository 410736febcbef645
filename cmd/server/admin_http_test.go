package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldcfg/worldcfgtest"
	"voxelworlds.ai/internal/worldsync/synctest"
)

const worldsYAML = `alpha:
  game-mode: adventure
  keep-spawn-in-memory: false
  time: 1000
ghost:
  game-mode: survival
  keep-spawn-in-memory: true
  time: -1
`

func newAdminMux(t *testing.T) (*http.ServeMux, *synctest.Harness) {
	t.Helper()
	t.Setenv("VW_ENABLE_ADMIN_HTTP", "true")
	h := synctest.New(t, worldsYAML)
	h.MakeWorldDir("alpha")
	h.Do(h.Sync.Startup)
	mux := http.NewServeMux()
	registerAdminHTTP(mux, adminDeps{Sync: h.Sync, Sched: h.Sched}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return mux, h
}

func TestAdminState(t *testing.T) {
	mux, _ := newAdminMux(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var st serverState
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.MainWorld != "world" {
		t.Fatalf("main world: %q", st.MainWorld)
	}
	if len(st.Worlds) != 2 {
		t.Fatalf("worlds: %+v", st.Worlds)
	}
	byName := map[string]worldState{}
	for _, w := range st.Worlds {
		byName[w.Name] = w
	}
	if !byName["alpha"].Managed || byName["world"].Managed {
		t.Fatalf("managed flags: %+v", st.Worlds)
	}
	if byName["alpha"].Time != 1000 {
		t.Fatalf("alpha time: %d", byName["alpha"].Time)
	}
	if len(st.Unloaded) != 1 || st.Unloaded[0] != "ghost" {
		t.Fatalf("unloaded: %v", st.Unloaded)
	}
}

func TestAdminState_RejectsRemote(t *testing.T) {
	mux, _ := newAdminMux(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "192.0.2.7:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	mux, h := newAdminMux(t)
	h.Do(func() error {
		_, err := h.Srv.Join("steve", false, "alpha")
		return err
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"voxelworlds_worlds_loaded 2\n",
		"voxelworlds_worlds_managed 2\n",
		`voxelworlds_players_online{world="alpha"} 1`,
		`voxelworlds_players_online{world="world"} 0`,
		"voxelworlds_index_queue_depth 0\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestLoadMainWorld(t *testing.T) {
	dataDir := t.TempDir()
	container := t.TempDir()
	cfg, err := worldcfg.NewConfig(worldcfgtest.WriteFile(t, dataDir, "config.yml", worldcfgtest.ConfigYAML))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	srv := live.NewServer(live.Options{Container: container, MainWorld: "world"})
	if err := loadMainWorld(srv, cfg, "world"); err != nil {
		t.Fatalf("create: %v", err)
	}
	w, ok := srv.World("world")
	if !ok {
		t.Fatalf("main world not loaded")
	}
	if got := w.Creator().Type; got != worldcfg.TypeFlat {
		t.Fatalf("creation type: %s", got)
	}

	// A restart finds the level data and loads it instead.
	srv2 := live.NewServer(live.Options{Container: container, MainWorld: "world"})
	if err := loadMainWorld(srv2, cfg, "world"); err != nil {
		t.Fatalf("load: %v", err)
	}
	w2, _ := srv2.World("world")
	if w2.Seed() != w.Seed() {
		t.Fatalf("seed changed across restart: %d != %d", w2.Seed(), w.Seed())
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()

	if idx, err := openRuntimeIndex(dir, "", true); err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("VW_INDEX_BACKEND", "none")
	if idx, err := openRuntimeIndex(dir, "", false); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}

	t.Setenv("VW_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(dir, "", false); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	t.Setenv("VW_INDEX_BACKEND", "")
	idx, err := openRuntimeIndex(dir, "", false)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "worlds.sqlite")); err != nil {
		t.Fatalf("index file: %v", err)
	}
}
