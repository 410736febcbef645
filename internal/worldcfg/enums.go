package worldcfg

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type GameMode string

const (
	Survival  GameMode = "SURVIVAL"
	Creative  GameMode = "CREATIVE"
	Adventure GameMode = "ADVENTURE"
	Spectator GameMode = "SPECTATOR"
)

// GameModes lists every game mode in declaration order.
var GameModes = []GameMode{Survival, Creative, Adventure, Spectator}

type Environment string

const (
	EnvNormal Environment = "NORMAL"
	EnvNether Environment = "NETHER"
	EnvTheEnd Environment = "THE_END"
)

var Environments = []Environment{EnvNormal, EnvNether, EnvTheEnd}

type WorldType string

const (
	TypeNormal      WorldType = "NORMAL"
	TypeFlat        WorldType = "FLAT"
	TypeLargeBiomes WorldType = "LARGE_BIOMES"
	TypeAmplified   WorldType = "AMPLIFIED"
)

var WorldTypes = []WorldType{TypeNormal, TypeFlat, TypeLargeBiomes, TypeAmplified}

// ParseGameMode matches s case-insensitively.
func ParseGameMode(s string) (GameMode, error) {
	return parseEnum("GameMode", s, GameModes)
}

func ParseEnvironment(s string) (Environment, error) {
	return parseEnum("environment", s, Environments)
}

func ParseWorldType(s string) (WorldType, error) {
	return parseEnum("world type", s, WorldTypes)
}

func parseEnum[T ~string](field, raw string, values []T) (T, error) {
	// Casers are not safe for concurrent use; build one per call.
	up := cases.Upper(language.English).String(raw)
	for _, v := range values {
		if string(v) == up {
			return v, nil
		}
	}
	var zero T
	return zero, &InvalidEnumError{Field: field, Value: raw}
}
