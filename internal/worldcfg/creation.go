package worldcfg

import "voxelworlds.ai/internal/yamlsec"

// WorldCreationConfig holds parameters used only when a world is first
// created. Empty generator fields mean the engine default.
type WorldCreationConfig struct {
	GeneratorName     string
	GeneratorSettings string
	Environment       Environment
	WorldType         WorldType
}

func LoadWorldCreationConfig(sec *yamlsec.Section) (WorldCreationConfig, error) {
	var c WorldCreationConfig
	var err error
	if sec.Contains("generator-name") {
		if c.GeneratorName, err = sec.String("generator-name"); err != nil {
			return c, sectionErr(err)
		}
	}
	if sec.Contains("generator-settings") {
		if c.GeneratorSettings, err = sec.String("generator-settings"); err != nil {
			return c, sectionErr(err)
		}
	}
	if err := requireKey(sec, "environment"); err != nil {
		return c, err
	}
	raw, err := sec.String("environment")
	if err != nil {
		return c, sectionErr(err)
	}
	if c.Environment, err = ParseEnvironment(raw); err != nil {
		return c, err
	}
	if err := requireKey(sec, "world-type"); err != nil {
		return c, err
	}
	if raw, err = sec.String("world-type"); err != nil {
		return c, sectionErr(err)
	}
	if c.WorldType, err = ParseWorldType(raw); err != nil {
		return c, err
	}
	return c, nil
}

func (c WorldCreationConfig) Write(sec *yamlsec.Section) {
	if c.GeneratorName != "" {
		sec.SetString("generator-name", c.GeneratorName)
	}
	if c.GeneratorSettings != "" {
		sec.SetString("generator-settings", c.GeneratorSettings)
	}
	_ = sec.Set("environment", string(c.Environment))
	_ = sec.Set("world-type", string(c.WorldType))
}

// Creator returns the creation parameters for a new world. Structure
// generation is always off.
func (c WorldCreationConfig) Creator(name string) WorldCreator {
	return WorldCreator{
		Name:               name,
		Generator:          c.GeneratorName,
		GeneratorSettings:  c.GeneratorSettings,
		Environment:        c.Environment,
		Type:               c.WorldType,
		GenerateStructures: false,
	}
}
