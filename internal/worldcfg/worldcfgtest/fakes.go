// Package worldcfgtest provides in-memory live world and player handles for
// tests.
package worldcfgtest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"voxelworlds.ai/internal/worldcfg"
)

// DefaultRules are the rule names a fake world recognizes unless told
// otherwise.
var DefaultRules = []string{"doDaylightCycle", "keepInventory", "mobGriefing", "doMobSpawning"}

// World records every call made on it.
type World struct {
	mu sync.Mutex

	WorldName    string
	Keep         bool
	Clock        int64
	Rules        map[string]string
	Known        map[string]bool
	SetTimeCalls []int64
	RuleCalls    []string
	Spawn        worldcfg.Location
}

func NewWorld(name string, known ...string) *World {
	if len(known) == 0 {
		known = DefaultRules
	}
	w := &World{
		WorldName: name,
		Rules:     map[string]string{},
		Known:     map[string]bool{},
		Spawn:     worldcfg.Location{World: name},
	}
	for _, k := range known {
		w.Known[k] = true
	}
	return w
}

func (w *World) Name() string { return w.WorldName }

func (w *World) KeepSpawnInMemory() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Keep
}

func (w *World) SetKeepSpawnInMemory(keep bool) {
	w.mu.Lock()
	w.Keep = keep
	w.mu.Unlock()
}

func (w *World) Time() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Clock
}

func (w *World) SetTime(t int64) {
	w.mu.Lock()
	w.Clock = t
	w.SetTimeCalls = append(w.SetTimeCalls, t)
	w.mu.Unlock()
}

func (w *World) IsGameRule(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Known[name]
}

func (w *World) GameRuleValue(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.Rules[name]
	return v, ok
}

func (w *World) SetGameRuleValue(name, value string) {
	w.mu.Lock()
	w.Rules[name] = value
	w.RuleCalls = append(w.RuleCalls, name)
	w.mu.Unlock()
}

func (w *World) SpawnLocation() worldcfg.Location { return w.Spawn }

// Player is a connected client stand-in.
type Player struct {
	mu sync.Mutex

	PlayerName string
	World      string
	Mode       worldcfg.GameMode
	Admin      bool
	ModeSets   int
}

func NewPlayer(name, world string, admin bool) *Player {
	return &Player{PlayerName: name, World: world, Mode: worldcfg.Survival, Admin: admin}
}

func (p *Player) Name() string { return p.PlayerName }

func (p *Player) WorldName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.World
}

func (p *Player) GameMode() worldcfg.GameMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Mode
}

func (p *Player) SetGameMode(m worldcfg.GameMode) {
	p.mu.Lock()
	p.Mode = m
	p.ModeSets++
	p.mu.Unlock()
}

func (p *Player) HasPermission(perm string) bool {
	return p.Admin && perm == worldcfg.PermAdmin
}

// Policy is a fixed GameModePolicy.
type Policy bool

func (p Policy) UpdateGameModeForAdmin() bool { return bool(p) }

// ConfigYAML is a valid config.yml body.
const ConfigYAML = `update-game-mode-for-admin: false
default-world-config:
  game-mode: creative
  keep-spawn-in-memory: false
  time: 6000
  game-rules:
    doDaylightCycle: "false"
default-creation-config:
  environment: normal
  world-type: flat
`

// WriteFile writes body to name under dir and returns the path.
func WriteFile(t testing.TB, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}
