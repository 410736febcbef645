package worldsync

import (
	"fmt"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/worldcfg"
)

// Each setter validates, changes the record, starts the save and then pushes
// the change onto the live world. Validation failures leave the record, the
// file and the live world untouched. An apply error is returned together with
// the already started save.

func (s *Synchronizer) update(name string, fn func(*worldcfg.WorldConfig)) (*async.Future[worldcfg.Written], error) {
	if !s.list.Update(name, fn) {
		return nil, fmt.Errorf("%w: %s", ErrNotManaged, name)
	}
	return s.list.Save(), nil
}

func (s *Synchronizer) SetSpawn(name string, spawn worldcfg.Coord) (*async.Future[worldcfg.Written], error) {
	return s.update(name, func(wc *worldcfg.WorldConfig) { wc.Spawn = &spawn })
}

// ClearSpawn drops the configured spawn so the world's own spawn is used.
func (s *Synchronizer) ClearSpawn(name string) (*async.Future[worldcfg.Written], error) {
	return s.update(name, func(wc *worldcfg.WorldConfig) { wc.Spawn = nil })
}

func (s *Synchronizer) SetGameMode(name string, mode worldcfg.GameMode) (*async.Future[worldcfg.Written], error) {
	saved, err := s.update(name, func(wc *worldcfg.WorldConfig) { wc.GameMode = mode })
	if err != nil {
		return nil, err
	}
	s.SyncPlayers(name)
	return saved, nil
}

// SetGameRule rejects rule names the loaded world does not know. Rules for
// worlds that are not loaded are only checked on the next apply.
func (s *Synchronizer) SetGameRule(name, rule, value string) (*async.Future[worldcfg.Written], error) {
	if _, ok := s.list.Get(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotManaged, name)
	}
	if w, ok := s.srv.World(name); ok && !w.IsGameRule(rule) {
		return nil, &worldcfg.InvalidRuleError{Name: rule}
	}
	saved, err := s.update(name, func(wc *worldcfg.WorldConfig) { wc.Rules.Set(rule, value) })
	if err != nil {
		return nil, err
	}
	return saved, s.ApplyWorld(name)
}

func (s *Synchronizer) SetKeepSpawnInMemory(name string, keep bool) (*async.Future[worldcfg.Written], error) {
	saved, err := s.update(name, func(wc *worldcfg.WorldConfig) { wc.KeepSpawnInMemory = keep })
	if err != nil {
		return nil, err
	}
	return saved, s.ApplyWorld(name)
}

func (s *Synchronizer) SetTime(name string, t int32) (*async.Future[worldcfg.Written], error) {
	saved, err := s.update(name, func(wc *worldcfg.WorldConfig) { wc.Time = t })
	if err != nil {
		return nil, err
	}
	return saved, s.ApplyWorld(name)
}

// SetAdminOverride changes update-game-mode-for-admin, saves config.yml and
// re-evaluates every online player in a managed world.
func (s *Synchronizer) SetAdminOverride(v bool) *async.Future[worldcfg.Written] {
	s.cfg.SetUpdateGameModeForAdmin(v)
	saved := s.cfg.Save()
	for _, p := range s.srv.OnlinePlayers() {
		if wc, ok := s.list.Get(p.WorldName()); ok {
			wc.UpdateGameModeIfNeeded(s.cfg, p)
		}
	}
	return saved
}
