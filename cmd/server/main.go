package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelworlds.ai/configs"
	"voxelworlds.ai/internal/commands"
	"voxelworlds.ai/internal/logging"
	"voxelworlds.ai/internal/persistence/archive"
	persistlog "voxelworlds.ai/internal/persistence/log"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/sim/scheduler"
	"voxelworlds.ai/internal/transport/ws"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldsync"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		dataDir   = flag.String("data", "./plugins/Worlds", "settings directory (config.yml, worlds.yml)")
		worldsDir = flag.String("worlds_dir", "./worlds", "world container directory")
		mainWorld = flag.String("main_world", "world", "world players join by default")
		indexPath = flag.String("index", "", "sqlite revision index path (default: <data>/index/worlds.sqlite)")
		disableDB = flag.Bool("disable_db", false, "disable the revision index")
		auditDir  = flag.String("audit", "", "command audit log directory (default: <data>/audit, \"-\" disables)")
		tickHz    = flag.Int("tick_hz", 20, "world ticks per second")
		autosave  = flag.Duration("autosave", 5*time.Minute, "level data autosave interval (0 disables)")
		archives  = flag.Int("archive_keep", 20, "settings archives kept at startup (0 disables archiving)")
		adminHash = flag.String("admin_password_hash", "", "bcrypt hash of the admin password (or set VW_ADMIN_PASSWORD_HASH)")
		logLevel  = flag.String("log_level", "info", "debug|info|warn|error")
		logColor  = flag.Bool("log_color", false, "colorize log output")
	)
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -log_level:", err)
		os.Exit(2)
	}
	if *tickHz <= 0 {
		fmt.Fprintln(os.Stderr, "bad -tick_hz: must be > 0")
		os.Exit(2)
	}
	logger := logging.New(os.Stdout, logging.Options{Level: level, Color: *logColor})
	slog.SetDefault(logger)

	if err := run(runConfig{
		Addr:      *addr,
		DataDir:   *dataDir,
		WorldsDir: *worldsDir,
		MainWorld: *mainWorld,
		IndexPath: *indexPath,
		DisableDB: *disableDB,
		AuditDir:  *auditDir,
		Tick:      time.Second / time.Duration(*tickHz),
		Autosave:  *autosave,
		Archives:  *archives,
		AdminHash: firstNonEmpty(*adminHash, os.Getenv("VW_ADMIN_PASSWORD_HASH")),
	}, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

type runConfig struct {
	Addr      string
	DataDir   string
	WorldsDir string
	MainWorld string
	IndexPath string
	DisableDB bool
	AuditDir  string
	Tick      time.Duration
	Autosave  time.Duration
	Archives  int
	AdminHash string
}

func run(rc runConfig, logger *slog.Logger) error {
	cfgPath := filepath.Join(rc.DataDir, "config.yml")
	wrote, err := configs.WriteDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if wrote {
		logger.Info("wrote default config", "path", cfgPath)
	}
	if rc.Archives > 0 {
		archiveStartup(rc.DataDir, rc.Archives, logger)
	}
	cfg, err := worldcfg.NewConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config.yml: %w", err)
	}
	list, err := worldcfg.NewWorldConfigList(filepath.Join(rc.DataDir, "worlds.yml"))
	if err != nil {
		return fmt.Errorf("load worlds.yml: %w", err)
	}

	if err := os.MkdirAll(rc.WorldsDir, 0o755); err != nil {
		return err
	}
	srv := live.NewServer(live.Options{
		Container: rc.WorldsDir,
		MainWorld: rc.MainWorld,
		Log:       logger.With("component", "live"),
	})
	if err := loadMainWorld(srv, cfg, rc.MainWorld); err != nil {
		return fmt.Errorf("main world: %w", err)
	}

	idx, err := openRuntimeIndex(rc.DataDir, rc.IndexPath, rc.DisableDB)
	if err != nil {
		return fmt.Errorf("open index backend: %w", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	var audit *persistlog.AuditLogger
	switch rc.AuditDir {
	case "-":
	case "":
		audit = persistlog.NewAuditLogger(filepath.Join(rc.DataDir, "audit"))
	default:
		audit = persistlog.NewAuditLogger(rc.AuditDir)
	}
	defer audit.Close()

	sched := scheduler.New()
	sync := worldsync.New(cfg, list, srv, sched, logger.With("component", "worldsync"))

	svc := commands.Services{Sync: sync, Audit: audit, Log: logger.With("component", "commands")}
	if idx != nil {
		svc.Index = idx
	}
	dispatcher := commands.New(svc)

	if rc.AdminHash == "" {
		logger.Warn("no admin password hash set; console and admin joins are disabled")
	}
	wsSrv := ws.NewServer(ws.Options{
		Sync:              sync,
		Sched:             sched,
		Commands:          dispatcher,
		AdminPasswordHash: []byte(rc.AdminHash),
		Log:               logger.With("component", "ws"),
	})

	mux := http.NewServeMux()
	mux.Handle("/", wsSrv.Handler())
	registerAdminHTTP(mux, adminDeps{Sync: sync, Sched: sched, Index: idx}, logger)

	httpSrv := &http.Server{
		Addr:              rc.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := sched.Call(ctx, sync.Startup); err != nil {
		if worldcfg.IsConfigError(err) {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("startup: %w", err)
		}
		logger.Error("some worlds could not be prepared", "err", err)
	}
	logger.Info("worlds ready", "managed", list.Len(), "loaded", len(srv.Worlds()))

	if err := sched.Every(rc.Tick, func() { srv.Tick(1) }); err != nil {
		return err
	}
	if rc.Autosave > 0 {
		if err := sched.Every(rc.Autosave, func() {
			if err := srv.SaveAll(); err != nil {
				logger.Error("autosave failed", "err", err)
			}
		}); err != nil {
			return err
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return httpSrv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Info("listening", "addr", rc.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ListenAndServe: %w", err)
		}
		return nil
	})

	err = g.Wait()

	// The scheduler is stopped, so live state is ours again.
	if serr := srv.SaveAll(); serr != nil {
		logger.Error("final save failed", "err", serr)
	}
	return err
}

// loadMainWorld makes sure the main world is loaded before anything else
// runs; a missing one is created from the default creation settings.
func loadMainWorld(srv *live.Server, cfg *worldcfg.Config, name string) error {
	if srv.WorldDataExists(name) {
		_, err := srv.LoadWorld(name)
		return err
	}
	_, err := srv.CreateWorld(cfg.DefaultCreationConfig().Creator(name))
	return err
}

// archiveStartup keeps a copy of the settings the server is starting with.
// Failures are logged only.
func archiveStartup(dataDir string, keep int, logger *slog.Logger) {
	dir, err := archive.ArchiveSettings(dataDir, "startup", time.Now(), "config.yml", "worlds.yml")
	if err != nil {
		logger.Warn("archive settings failed", "err", err)
		return
	}
	if dir != "" {
		logger.Debug("archived settings", "dir", dir)
	}
	if n, err := archive.Prune(dataDir, keep); err != nil {
		logger.Warn("prune settings archives failed", "err", err)
	} else if n > 0 {
		logger.Debug("pruned settings archives", "removed", n)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
