package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"voxelworlds.ai/internal/persistence/indexdb"
	"voxelworlds.ai/internal/sim/scheduler"
	"voxelworlds.ai/internal/worldsync"
)

type adminDeps struct {
	Sync  *worldsync.Synchronizer
	Sched *scheduler.Scheduler
	Index runtimeIndex
}

type worldState struct {
	Name    string            `json:"name"`
	Managed bool              `json:"managed"`
	Time    int64             `json:"time"`
	Keep    bool              `json:"keep_spawn_in_memory"`
	Players []string          `json:"players"`
	Rules   map[string]string `json:"game_rules,omitempty"`
}

type serverState struct {
	MainWorld     string       `json:"main_world"`
	AdminOverride bool         `json:"update_game_mode_for_admin"`
	Worlds        []worldState `json:"worlds"`
	Unloaded      []string     `json:"unloaded"`
	Online        int          `json:"online"`
}

// collectState reads the live runtime on the scheduler.
func collectState(ctx context.Context, d adminDeps) (serverState, error) {
	var st serverState
	err := d.Sched.Call(ctx, func() error {
		srv := d.Sync.Server()
		list := d.Sync.Worlds()
		st.MainWorld = srv.MainWorld()
		st.AdminOverride = d.Sync.Config().UpdateGameModeForAdmin()
		st.Online = len(srv.OnlinePlayers())
		for _, w := range srv.Worlds() {
			_, managed := list.Get(w.Name())
			ws := worldState{
				Name:    w.Name(),
				Managed: managed,
				Time:    w.Time(),
				Keep:    w.KeepSpawnInMemory(),
				Players: []string{},
				Rules:   w.GameRules(),
			}
			for _, p := range srv.PlayersIn(w.Name()) {
				ws.Players = append(ws.Players, p.Name())
			}
			st.Worlds = append(st.Worlds, ws)
		}
		st.Unloaded = []string{}
		for _, name := range list.Names() {
			if _, ok := srv.World(name); !ok {
				st.Unloaded = append(st.Unloaded, name)
			}
		}
		return nil
	})
	return st, err
}

func writeMetrics(rw http.ResponseWriter, st serverState, idx indexdb.Stats) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	managed := len(st.Unloaded)
	for _, w := range st.Worlds {
		if w.Managed {
			managed++
		}
	}

	fmt.Fprintf(rw, "# HELP voxelworlds_worlds_loaded Loaded worlds.\n")
	fmt.Fprintf(rw, "# TYPE voxelworlds_worlds_loaded gauge\n")
	fmt.Fprintf(rw, "voxelworlds_worlds_loaded %d\n", len(st.Worlds))

	fmt.Fprintf(rw, "# HELP voxelworlds_worlds_managed Worlds registered in worlds.yml.\n")
	fmt.Fprintf(rw, "# TYPE voxelworlds_worlds_managed gauge\n")
	fmt.Fprintf(rw, "voxelworlds_worlds_managed %d\n", managed)

	fmt.Fprintf(rw, "# HELP voxelworlds_players_online Online players per world.\n")
	fmt.Fprintf(rw, "# TYPE voxelworlds_players_online gauge\n")
	for _, w := range st.Worlds {
		fmt.Fprintf(rw, "voxelworlds_players_online{world=%q} %d\n", w.Name, len(w.Players))
	}

	fmt.Fprintf(rw, "# HELP voxelworlds_index_queue_depth Revision index queue depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelworlds_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelworlds_index_queue_depth %d\n", idx.QueueDepth)

	fmt.Fprintf(rw, "# HELP voxelworlds_index_queue_capacity Revision index queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE voxelworlds_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "voxelworlds_index_queue_capacity %d\n", idx.QueueCapacity)

	fmt.Fprintf(rw, "# HELP voxelworlds_index_dropped_total Index writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE voxelworlds_index_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelworlds_index_dropped_total{kind=%q} %d\n", "revision", idx.DropRevisionTotal)
	fmt.Fprintf(rw, "voxelworlds_index_dropped_total{kind=%q} %d\n", "command", idx.DropCommandTotal)
}

func registerAdminHTTP(mux *http.ServeMux, d adminDeps, logger *slog.Logger) {
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := collectState(ctx, d)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		var idx indexdb.Stats
		if d.Index != nil {
			idx = d.Index.Stats()
		}
		writeMetrics(rw, st, idx)
	})

	if envBool("VW_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			st, err := collectState(ctx, d)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(st)
		})
	} else {
		logger.Info("admin endpoints disabled (VW_ENABLE_ADMIN_HTTP=false)")
	}

	if envBool("VW_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}
