package worldcfg

import "voxelworlds.ai/internal/yamlsec"

// DefaultWorldConfig seeds newly created and imported worlds. It has the
// shape of WorldConfig without a spawn.
type DefaultWorldConfig struct {
	KeepSpawnInMemory bool
	GameMode          GameMode
	Time              int32
	Rules             *RuleSet
}

func LoadDefaultWorldConfig(sec *yamlsec.Section) (*DefaultWorldConfig, error) {
	keep, mode, t, err := loadCommon(sec)
	if err != nil {
		return nil, err
	}
	rules, err := loadRules(sec)
	if err != nil {
		return nil, err
	}
	return &DefaultWorldConfig{KeepSpawnInMemory: keep, GameMode: mode, Time: t, Rules: rules}, nil
}

func (d *DefaultWorldConfig) Write(sec *yamlsec.Section) {
	writeCommon(sec, d.KeepSpawnInMemory, d.GameMode, d.Time, d.Rules)
}

func (d *DefaultWorldConfig) Copy() *DefaultWorldConfig {
	out := *d
	out.Rules = d.Rules.Clone()
	return &out
}

func (d *DefaultWorldConfig) ApplyTo(w World) error {
	return applyTo(w, d.KeepSpawnInMemory, d.Time, d.Rules)
}

func (d *DefaultWorldConfig) UpdateGameModeIfNeeded(policy GameModePolicy, p Player) {
	updateGameMode(d.GameMode, policy, p)
}
