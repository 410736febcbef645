// Package worldsync keeps the world registry, the global settings and the
// live runtime in agreement: it applies records to loaded worlds, forces
// game modes onto players and runs the hot reload.
//
// Every method except Reload must be called on the primary context.
package worldsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/sim/scheduler"
	"voxelworlds.ai/internal/worldcfg"
)

var (
	ErrAlreadyManaged    = errors.New("world is already managed")
	ErrNotManaged        = errors.New("world is not managed")
	ErrWorldNotFound     = errors.New("world not found")
	ErrWorldExists       = errors.New("world already exists")
	ErrWorldExistsOnDisk = errors.New("world already exists on disk but is not loaded")
)

type Synchronizer struct {
	cfg   *worldcfg.Config
	list  *worldcfg.WorldConfigList
	srv   *live.Server
	sched *scheduler.Scheduler
	log   *slog.Logger

	started atomic.Bool
}

func New(cfg *worldcfg.Config, list *worldcfg.WorldConfigList, srv *live.Server, sched *scheduler.Scheduler, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{cfg: cfg, list: list, srv: srv, sched: sched, log: logger}
}

func (s *Synchronizer) Config() *worldcfg.Config          { return s.cfg }
func (s *Synchronizer) Worlds() *worldcfg.WorldConfigList { return s.list }
func (s *Synchronizer) Server() *live.Server              { return s.srv }

// Startup loads every registered world found on disk, applies its record and
// hooks the join and world change events. It runs once.
func (s *Synchronizer) Startup() error {
	if !s.started.CompareAndSwap(false, true) {
		return worldcfg.ErrAlreadyInitialized
	}
	s.srv.OnJoin(s.OnJoin)
	s.srv.OnWorldChange(s.OnWorldChange)

	var errs []error
	for _, name := range s.list.Names() {
		if !s.srv.WorldDataExists(name) {
			s.log.Warn("world is registered in worlds.yml but does not exist", "world", name)
			continue
		}
		w, err := s.srv.LoadWorld(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		wc, ok := s.list.Get(name)
		if !ok {
			continue
		}
		if err := wc.ApplyTo(w); err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Import brings an existing world under management using the default
// template. The world is loaded from disk if needed.
func (s *Synchronizer) Import(name string) (*async.Future[worldcfg.Written], error) {
	if _, ok := s.list.Get(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyManaged, name)
	}
	w, ok := s.srv.World(name)
	if !ok {
		if !s.srv.WorldDataExists(name) {
			return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
		}
		var err error
		if w, err = s.srv.LoadWorld(name); err != nil {
			return nil, err
		}
	}
	wc := worldcfg.FromDefault(s.cfg.DefaultWorldConfig())
	if err := wc.ApplyTo(w); err != nil {
		return nil, err
	}
	for _, p := range s.srv.PlayersIn(name) {
		wc.UpdateGameModeIfNeeded(s.cfg, p)
	}
	s.list.Add(name, wc)
	return s.list.Save(), nil
}

// Create makes a new world from the default creation template and manages
// it with the default world template. A non-nil future means the world was
// created and registered; an error alongside it is a failed live apply.
func (s *Synchronizer) Create(name string) (*async.Future[worldcfg.Written], error) {
	if _, ok := s.list.Get(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyManaged, name)
	}
	if _, ok := s.srv.World(name); ok {
		return nil, fmt.Errorf("%w: %s", ErrWorldExists, name)
	}
	if s.srv.WorldDataExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrWorldExistsOnDisk, name)
	}
	w, err := s.srv.CreateWorld(s.cfg.DefaultCreationConfig().Creator(name))
	if err != nil {
		return nil, err
	}
	wc := worldcfg.FromDefault(s.cfg.DefaultWorldConfig())
	s.list.Add(name, wc)
	saved := s.list.Save()
	if err := wc.ApplyTo(w); err != nil {
		return saved, err
	}
	return saved, nil
}

// RemoveResult tells the caller what happened to the live world.
type RemoveResult struct {
	Saved     *async.Future[worldcfg.Written]
	Unloaded  bool
	UnloadErr error
}

// Remove stops managing name and unloads the world when it is loaded. World
// data on disk is never deleted.
func (s *Synchronizer) Remove(name string) (RemoveResult, error) {
	if !s.list.Remove(name) {
		return RemoveResult{}, fmt.Errorf("%w: %s", ErrNotManaged, name)
	}
	res := RemoveResult{Saved: s.list.Save()}
	if _, ok := s.srv.World(name); ok {
		res.UnloadErr = s.srv.UnloadWorld(name, true)
		res.Unloaded = res.UnloadErr == nil
	}
	return res, nil
}

// ReloadStats counts what the live apply touched.
type ReloadStats struct {
	Worlds  int
	Players int
}

// Reload re-reads both settings files off the primary context. Neither is
// adopted unless both are valid. Adoption and the live apply then run on
// the primary context; apply failures are reported through the future as
// well.
func (s *Synchronizer) Reload(ctx context.Context) *async.Future[ReloadStats] {
	return async.Run(func() (ReloadStats, error) {
		var commitCfg, commitList func()
		var g errgroup.Group
		g.Go(func() error {
			var err error
			commitCfg, err = s.cfg.Prepare()
			return err
		})
		g.Go(func() error {
			var err error
			commitList, err = s.list.Prepare()
			return err
		})
		if err := g.Wait(); err != nil {
			return ReloadStats{}, err
		}

		// Both swaps and the apply run as one step on the primary context,
		// so no join or world change sees one file reloaded without the
		// other.
		var stats ReloadStats
		err := s.sched.Call(ctx, func() error {
			commitCfg()
			commitList()
			var err error
			stats, err = s.ApplyAll()
			return err
		})
		return stats, err
	})
}

// ApplyAll applies every record to its loaded world, then forces game modes
// on every online player in a managed world. A failing world does not stop
// the others.
func (s *Synchronizer) ApplyAll() (ReloadStats, error) {
	var stats ReloadStats
	var errs []error
	for _, w := range s.srv.Worlds() {
		wc, ok := s.list.Get(w.Name())
		if !ok {
			continue
		}
		if err := wc.ApplyTo(w); err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", w.Name(), err))
			continue
		}
		stats.Worlds++
	}
	for _, p := range s.srv.OnlinePlayers() {
		wc, ok := s.list.Get(p.WorldName())
		if !ok {
			continue
		}
		wc.UpdateGameModeIfNeeded(s.cfg, p)
		stats.Players++
	}
	return stats, errors.Join(errs...)
}

// ApplyWorld pushes the record for name onto the loaded world. Unloaded or
// unmanaged worlds are skipped.
func (s *Synchronizer) ApplyWorld(name string) error {
	w, ok := s.srv.World(name)
	if !ok {
		return nil
	}
	wc, ok := s.list.Get(name)
	if !ok {
		return nil
	}
	return wc.ApplyTo(w)
}

// SyncPlayers forces the record's game mode on the players in name.
func (s *Synchronizer) SyncPlayers(name string) int {
	wc, ok := s.list.Get(name)
	if !ok {
		return 0
	}
	n := 0
	for _, p := range s.srv.PlayersIn(name) {
		wc.UpdateGameModeIfNeeded(s.cfg, p)
		n++
	}
	return n
}

func (s *Synchronizer) OnJoin(p *live.Player) {
	if wc, ok := s.list.Get(p.WorldName()); ok {
		wc.UpdateGameModeIfNeeded(s.cfg, p)
	}
}

func (s *Synchronizer) OnWorldChange(p *live.Player, from, to string) {
	if from == to {
		return
	}
	if wc, ok := s.list.Get(to); ok {
		wc.UpdateGameModeIfNeeded(s.cfg, p)
	}
}

// SpawnLocation is where players are sent in w: the record's spawn when one
// is set, otherwise the world's own.
func (s *Synchronizer) SpawnLocation(w *live.World) worldcfg.Location {
	if wc, ok := s.list.Get(w.Name()); ok {
		return wc.SpawnIn(w)
	}
	return w.SpawnLocation()
}
