package worldcfg_test

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldcfg/worldcfgtest"
)

func TestConfig_Load(t *testing.T) {
	path := worldcfgtest.WriteFile(t, t.TempDir(), "config.yml", worldcfgtest.ConfigYAML)
	cfg, err := worldcfg.NewConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UpdateGameModeForAdmin() {
		t.Fatalf("override should be off")
	}
	def := cfg.DefaultWorldConfig()
	if def.GameMode != worldcfg.Creative || def.Time != 6000 {
		t.Fatalf("bad template: %+v", def)
	}
	if v, _ := def.Rules.Get("doDaylightCycle"); v != "false" {
		t.Fatalf("template rules: %v", def.Rules.Snapshot())
	}
	creation := cfg.DefaultCreationConfig()
	if creation.Environment != worldcfg.EnvNormal || creation.WorldType != worldcfg.TypeFlat || creation.GeneratorName != "" {
		t.Fatalf("bad creation template: %+v", creation)
	}
	if cr := creation.Creator("new"); cr.GenerateStructures || cr.Name != "new" {
		t.Fatalf("creator: %+v", cr)
	}
}

func TestConfig_MissingTopLevelKeys(t *testing.T) {
	for _, key := range []string{"update-game-mode-for-admin", "default-world-config", "default-creation-config"} {
		var kept []string
		lines := strings.SplitAfter(worldcfgtest.ConfigYAML, "\n")
		skip := false
		for _, line := range lines {
			if strings.HasPrefix(line, key+":") {
				skip = true
				continue
			}
			if skip && strings.HasPrefix(line, "  ") {
				continue
			}
			skip = false
			kept = append(kept, line)
		}
		path := worldcfgtest.WriteFile(t, t.TempDir(), "config.yml", strings.Join(kept, ""))
		_, err := worldcfg.NewConfig(path)
		var mk *worldcfg.MissingKeyError
		if !errors.As(err, &mk) || mk.Key != key {
			t.Fatalf("missing %s: got %v", key, err)
		}
	}
}

func TestConfig_NestedErrorsPropagate(t *testing.T) {
	body := strings.Replace(worldcfgtest.ConfigYAML, "world-type: flat", "world-type: hexagonal", 1)
	path := worldcfgtest.WriteFile(t, t.TempDir(), "config.yml", body)
	_, err := worldcfg.NewConfig(path)
	var ie *worldcfg.InvalidEnumError
	if !errors.As(err, &ie) || ie.Value != "hexagonal" {
		t.Fatalf("expected invalid world type, got %v", err)
	}

	body = strings.Replace(worldcfgtest.ConfigYAML, "  time: 6000\n", "", 1)
	path = worldcfgtest.WriteFile(t, t.TempDir(), "config.yml", body)
	_, err = worldcfg.NewConfig(path)
	var mk *worldcfg.MissingKeyError
	if !errors.As(err, &mk) || mk.Key != "time" {
		t.Fatalf("expected missing time, got %v", err)
	}
}

func TestConfig_FileRequired(t *testing.T) {
	_, err := worldcfg.NewConfig(filepath.Join(t.TempDir(), "config.yml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestConfig_FailedReloadKeepsSettings(t *testing.T) {
	dir := t.TempDir()
	path := worldcfgtest.WriteFile(t, dir, "config.yml", worldcfgtest.ConfigYAML)
	cfg, err := worldcfg.NewConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	worldcfgtest.WriteFile(t, dir, "config.yml", strings.Replace(worldcfgtest.ConfigYAML, "update-game-mode-for-admin: false", "update-game-mode-for-admin: true\nbogus: [", 1))
	if err := cfg.Reload(); err == nil {
		t.Fatalf("expected parse failure")
	}
	if cfg.UpdateGameModeForAdmin() {
		t.Fatalf("settings changed after failed reload")
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := worldcfgtest.WriteFile(t, t.TempDir(), "config.yml", worldcfgtest.ConfigYAML)
	cfg, err := worldcfg.NewConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.SetUpdateGameModeForAdmin(true)
	if _, err := cfg.Save().Wait(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := worldcfg.NewConfig(path)
	if err != nil {
		t.Fatalf("reload saved file: %v", err)
	}
	if !again.UpdateGameModeForAdmin() {
		t.Fatalf("flag not persisted")
	}
	if again.DefaultCreationConfig() != cfg.DefaultCreationConfig() {
		t.Fatalf("creation template changed")
	}
	if v, _ := again.DefaultWorldConfig().Rules.Get("doDaylightCycle"); v != "false" {
		t.Fatalf("template rules lost")
	}
}

func TestConfig_ReloadWaitsForIssuedSave(t *testing.T) {
	for i := 0; i < 50; i++ {
		path := worldcfgtest.WriteFile(t, t.TempDir(), "config.yml", worldcfgtest.ConfigYAML)
		cfg, err := worldcfg.NewConfig(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		cfg.SetUpdateGameModeForAdmin(true)
		f := cfg.Save()
		if err := cfg.Reload(); err != nil {
			t.Fatalf("reload: %v", err)
		}
		if _, err := f.Wait(context.Background()); err != nil {
			t.Fatalf("save: %v", err)
		}
		if !cfg.UpdateGameModeForAdmin() {
			t.Fatalf("run %d: saved flag dropped by reload", i)
		}
	}
}
