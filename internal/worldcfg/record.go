package worldcfg

import (
	"voxelworlds.ai/internal/yamlsec"
)

// TimeUnmanaged leaves the live world's clock alone.
const TimeUnmanaged int32 = -1

// WorldConfig is the persisted settings of one managed world. Every
// constructor sets Rules; the registry fills in an empty set for literals
// that leave it nil.
type WorldConfig struct {
	KeepSpawnInMemory bool
	GameMode          GameMode
	Time              int32
	// Spawn is nil when the world keeps its own spawn.
	Spawn *Coord
	Rules *RuleSet
}

// Copy returns a deep copy; the rule set is not shared.
func (c *WorldConfig) Copy() *WorldConfig {
	out := *c
	if c.Spawn != nil {
		sp := *c.Spawn
		out.Spawn = &sp
	}
	out.Rules = c.Rules.Clone()
	return &out
}

// FromDefault derives a record from the template with no spawn set.
func FromDefault(def *DefaultWorldConfig) *WorldConfig {
	return &WorldConfig{
		KeepSpawnInMemory: def.KeepSpawnInMemory,
		GameMode:          def.GameMode,
		Time:              def.Time,
		Rules:             def.Rules.Clone(),
	}
}

// LoadWorldConfig validates and reads one world section. Keys are checked in
// the order time, game-mode, keep-spawn-in-memory, spawn, game-rules.
func LoadWorldConfig(sec *yamlsec.Section) (*WorldConfig, error) {
	keep, mode, t, err := loadCommon(sec)
	if err != nil {
		return nil, err
	}
	var spawn *Coord
	if sec.Contains("spawn") {
		ss, _, err := sec.Section("spawn")
		if err != nil {
			return nil, sectionErr(err)
		}
		c, err := LoadCoord(ss)
		if err != nil {
			return nil, err
		}
		spawn = &c
	}
	rules, err := loadRules(sec)
	if err != nil {
		return nil, err
	}
	return &WorldConfig{KeepSpawnInMemory: keep, GameMode: mode, Time: t, Spawn: spawn, Rules: rules}, nil
}

// Write stores the record into sec. game-rules is always written; spawn only
// when set.
func (c *WorldConfig) Write(sec *yamlsec.Section) {
	writeCommon(sec, c.KeepSpawnInMemory, c.GameMode, c.Time, c.Rules)
	if c.Spawn != nil {
		c.Spawn.Write(sec.CreateSection("spawn"))
	}
}

// ApplyTo pushes the record onto a live world. See applyTo for the rule
// failure policy.
func (c *WorldConfig) ApplyTo(w World) error {
	return applyTo(w, c.KeepSpawnInMemory, c.Time, c.Rules)
}

// UpdateGameModeIfNeeded forces the record's game mode onto p unless p is an
// admin and policy exempts admins.
func (c *WorldConfig) UpdateGameModeIfNeeded(policy GameModePolicy, p Player) {
	updateGameMode(c.GameMode, policy, p)
}

// SpawnIn returns the configured spawn in w, or w's own spawn.
func (c *WorldConfig) SpawnIn(w World) Location {
	if c != nil && c.Spawn != nil {
		return c.Spawn.WithWorld(w.Name())
	}
	return w.SpawnLocation()
}

func (c *WorldConfig) Equal(o *WorldConfig) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.KeepSpawnInMemory != o.KeepSpawnInMemory || c.GameMode != o.GameMode || c.Time != o.Time {
		return false
	}
	if (c.Spawn == nil) != (o.Spawn == nil) {
		return false
	}
	if c.Spawn != nil && *c.Spawn != *o.Spawn {
		return false
	}
	return c.Rules.Equal(o.Rules)
}

func loadCommon(sec *yamlsec.Section) (keep bool, mode GameMode, t int32, err error) {
	if err = requireKey(sec, "time"); err != nil {
		return
	}
	if t, err = sec.Int32("time"); err != nil {
		err = sectionErr(err)
		return
	}
	if err = requireKey(sec, "game-mode"); err != nil {
		return
	}
	raw, err := sec.String("game-mode")
	if err != nil {
		err = sectionErr(err)
		return
	}
	if mode, err = ParseGameMode(raw); err != nil {
		return
	}
	if err = requireKey(sec, "keep-spawn-in-memory"); err != nil {
		return
	}
	if keep, err = sec.Bool("keep-spawn-in-memory"); err != nil {
		err = sectionErr(err)
	}
	return
}

func loadRules(sec *yamlsec.Section) (*RuleSet, error) {
	rs, _, err := sec.Section("game-rules")
	if err != nil {
		return nil, sectionErr(err)
	}
	return LoadRuleSet(rs)
}

func writeCommon(sec *yamlsec.Section, keep bool, mode GameMode, t int32, rules *RuleSet) {
	_ = sec.Set("game-mode", string(mode))
	_ = sec.Set("keep-spawn-in-memory", keep)
	_ = sec.Set("time", t)
	rules.Write(sec.CreateSection("game-rules"))
}
