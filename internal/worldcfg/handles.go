package worldcfg

// PermAdmin is the capability that exempts a player from forced game modes.
const PermAdmin = "worlds.admin"

// World is a live, already created world. Implementations are only safe to
// use from the primary execution context.
type World interface {
	Name() string
	KeepSpawnInMemory() bool
	SetKeepSpawnInMemory(keep bool)
	Time() int64
	SetTime(t int64)
	IsGameRule(name string) bool
	GameRuleValue(name string) (string, bool)
	SetGameRuleValue(name, value string)
	SpawnLocation() Location
}

// Player is a connected client.
type Player interface {
	Name() string
	WorldName() string
	GameMode() GameMode
	SetGameMode(mode GameMode)
	HasPermission(perm string) bool
}

// GameModePolicy decides whether admins get forced game modes too.
type GameModePolicy interface {
	UpdateGameModeForAdmin() bool
}

// WorldCreator carries the parameters a world is created with.
type WorldCreator struct {
	Name               string
	Generator          string
	GeneratorSettings  string
	Environment        Environment
	Type               WorldType
	GenerateStructures bool
}

// updateGameMode sets the player's mode unless the player is an admin and the
// policy leaves admins alone.
func updateGameMode(mode GameMode, policy GameModePolicy, p Player) {
	if policy.UpdateGameModeForAdmin() || !p.HasPermission(PermAdmin) {
		p.SetGameMode(mode)
	}
}

// applyTo pushes shared settings onto w. Rules are applied in sorted name
// order and the first unknown rule aborts the rest; keep-alive and time are
// already applied by then and stay applied.
func applyTo(w World, keep bool, t int32, rules *RuleSet) error {
	w.SetKeepSpawnInMemory(keep)
	if t != -1 {
		w.SetTime(int64(t))
	}
	for _, name := range rules.Names() {
		v, ok := rules.Get(name)
		if !ok {
			continue
		}
		if !w.IsGameRule(name) {
			return &InvalidRuleError{Name: name}
		}
		w.SetGameRuleValue(name, v)
	}
	return nil
}
