package live

import (
	"hash/fnv"
	"maps"
	"slices"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"voxelworlds.ai/internal/persistence/snapshot"
	"voxelworlds.ai/internal/worldcfg"
)

// DayTicks is the length of one day cycle.
const DayTicks = 24000

// gameRuleDefaults is the catalog of rules a live world understands.
var gameRuleDefaults = map[string]string{
	"announceAdvancements": "true",
	"doDaylightCycle":      "true",
	"doFireTick":           "true",
	"doMobSpawning":        "true",
	"doWeatherCycle":       "true",
	"keepInventory":        "false",
	"mobGriefing":          "true",
	"naturalRegeneration":  "true",
	"randomTickSpeed":      "3",
	"showDeathMessages":    "true",
	"spawnRadius":          "10",
}

// World is a loaded world. It is only touched from the primary context.
type World struct {
	name    string
	seed    int64
	creator worldcfg.WorldCreator

	keep  bool
	time  int64
	rules map[string]string
	spawn worldcfg.Location
}

func newWorld(c worldcfg.WorldCreator) *World {
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.Name))
	w := &World{
		name:    c.Name,
		seed:    int64(h.Sum64()),
		creator: c,
		keep:    true,
		rules:   maps.Clone(gameRuleDefaults),
	}
	w.spawn = worldcfg.Location{
		World: c.Name,
		Pos:   mgl64.Vec3{0.5, surfaceY(c), 0.5},
	}
	return w
}

func worldFromLevel(name string, lvl snapshot.LevelV1) *World {
	env, err := worldcfg.ParseEnvironment(lvl.Environment)
	if err != nil {
		env = worldcfg.EnvNormal
	}
	typ, err := worldcfg.ParseWorldType(lvl.WorldType)
	if err != nil {
		typ = worldcfg.TypeNormal
	}
	w := &World{
		name: name,
		seed: lvl.Seed,
		creator: worldcfg.WorldCreator{
			Name:               name,
			Generator:          lvl.Generator,
			GeneratorSettings:  lvl.GeneratorSettings,
			Environment:        env,
			Type:               typ,
			GenerateStructures: lvl.GenerateStructures,
		},
		keep:  lvl.KeepSpawnInMemory,
		time:  lvl.Time,
		rules: maps.Clone(gameRuleDefaults),
		spawn: worldcfg.Location{
			World: name,
			Pos:   mgl64.Vec3(lvl.Spawn),
			Yaw:   lvl.SpawnYaw,
			Pitch: lvl.SpawnPitch,
		},
	}
	for k, v := range lvl.GameRules {
		if _, ok := gameRuleDefaults[k]; ok {
			w.rules[k] = v
		}
	}
	return w
}

func (w *World) level() snapshot.LevelV1 {
	return snapshot.LevelV1{
		Header:             snapshot.Header{World: w.name, Time: w.time},
		Seed:               w.seed,
		Environment:        string(w.creator.Environment),
		WorldType:          string(w.creator.Type),
		Generator:          w.creator.Generator,
		GeneratorSettings:  w.creator.GeneratorSettings,
		GenerateStructures: w.creator.GenerateStructures,
		KeepSpawnInMemory:  w.keep,
		Time:               w.time,
		GameRules:          maps.Clone(w.rules),
		Spawn:              [3]float64(w.spawn.Pos),
		SpawnYaw:           w.spawn.Yaw,
		SpawnPitch:         w.spawn.Pitch,
	}
}

func surfaceY(c worldcfg.WorldCreator) float64 {
	switch c.Environment {
	case worldcfg.EnvNether:
		return 70
	case worldcfg.EnvTheEnd:
		return 50
	}
	switch c.Type {
	case worldcfg.TypeFlat:
		return 4
	case worldcfg.TypeAmplified:
		return 120
	}
	return 64
}

func (w *World) Name() string                   { return w.name }
func (w *World) Seed() int64                    { return w.seed }
func (w *World) Creator() worldcfg.WorldCreator { return w.creator }
func (w *World) KeepSpawnInMemory() bool        { return w.keep }
func (w *World) SetKeepSpawnInMemory(keep bool) { w.keep = keep }
func (w *World) Time() int64                    { return w.time }

// SetTime sets the time of day, wrapped into one day cycle.
func (w *World) SetTime(t int64) {
	t %= DayTicks
	if t < 0 {
		t += DayTicks
	}
	w.time = t
}

func (w *World) IsGameRule(name string) bool {
	_, ok := gameRuleDefaults[name]
	return ok
}

func (w *World) GameRuleValue(name string) (string, bool) {
	v, ok := w.rules[name]
	return v, ok
}

// SetGameRuleValue ignores names outside the catalog.
func (w *World) SetGameRuleValue(name, value string) {
	if !w.IsGameRule(name) {
		return
	}
	w.rules[name] = value
}

// GameRules returns a copy of the current rule values.
func (w *World) GameRules() map[string]string { return maps.Clone(w.rules) }

func (w *World) SpawnLocation() worldcfg.Location { return w.spawn }

// tick advances the clock by n ticks when the daylight cycle is on.
func (w *World) tick(n int64) {
	if on, _ := strconv.ParseBool(w.rules["doDaylightCycle"]); !on {
		return
	}
	w.SetTime(w.time + n)
}

// GameRuleNames lists the rule catalog in sorted order.
func GameRuleNames() []string {
	return slices.Sorted(maps.Keys(gameRuleDefaults))
}
