package commands

import (
	"errors"
	"fmt"
	"strconv"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldsync"
)

func configCommands() []*Command {
	worldArg := map[string]Completer{"world": loadedWorlds}
	return []*Command{
		{
			Usage:       "world config show [world]",
			Description: "Show settings of a world",
			Handler:     executeConfigShow,
			Complete:    worldArg,
		},
		{
			Usage:       "world config spawn <world> <x> <y> <z> <yaw> <pitch>",
			Description: "Set the spawn point of a world",
			Handler:     executeConfigSpawn,
			Complete: map[string]Completer{
				"world": hereOr("world", loadedWorlds),
				"x":     hereOr("x", nil),
				"y":     hereOr("y", nil),
				"z":     hereOr("z", nil),
				"yaw":   hereOr("yaw", nil),
				"pitch": hereOr("pitch", nil),
			},
		},
		{
			Usage:       "world config gamemode <world> <gamemode>",
			Description: "Set the game mode forced on players in a world",
			Handler:     executeConfigGameMode,
			Complete:    map[string]Completer{"world": loadedWorlds, "gamemode": gameModes},
		},
		{
			Usage:       "world config gamerule <world> <gamerule> <value>",
			Description: "Set a game rule of a world",
			Handler:     executeConfigGameRule,
			Complete:    map[string]Completer{"world": loadedWorlds, "gamerule": gameRules},
		},
		{
			Usage:       "world config keepspawninmemory <world> <value>",
			Description: "Keep the spawn area of a world loaded",
			Handler:     executeConfigKeepSpawnInMemory,
			Complete:    map[string]Completer{"world": loadedWorlds, "value": booleans},
		},
		{
			Usage:       "world config time <world> <time>",
			Description: "Set the time of a world, -1 leaves it alone",
			Handler:     executeConfigTime,
			Complete:    worldArg,
		},
		{
			Usage:       "world config adminoverride <value>",
			Description: "Force game modes on admins too",
			Handler:     executeConfigAdminOverride,
			Complete:    map[string]Completer{"value": booleans},
		},
	}
}

func executeConfigShow(c *Context) {
	name := c.Arg("world")
	if !c.HasArg("world") {
		p := c.Sender.Player()
		if p == nil {
			c.Fail("Please specify world or perform from the game")
			return
		}
		name = p.WorldName()
	}
	wc, ok := c.Sync().Worlds().Get(name)
	if !ok {
		c.Fail("World: " + name + " not found")
		return
	}
	c.Send(c.style.bold("Settings of " + name))
	c.Send(fmt.Sprintf("  - keep-spawn-in-memory: %t", wc.KeepSpawnInMemory))
	c.Send("  - game-mode: " + string(wc.GameMode))
	c.Send(fmt.Sprintf("  - time: %d", wc.Time))
	c.Send("  - spawn:")
	if sp := wc.Spawn; sp == nil {
		c.Send("    Not Specified")
	} else {
		c.Send(fmt.Sprintf("    - x: %g", sp.X()))
		c.Send(fmt.Sprintf("    - y: %g", sp.Y()))
		c.Send(fmt.Sprintf("    - z: %g", sp.Z()))
		c.Send(fmt.Sprintf("    - yaw: %g", sp.Yaw()))
		c.Send(fmt.Sprintf("    - pitch: %g", sp.Pitch()))
	}
	c.Send("  - game-rules:")
	for _, rule := range wc.Rules.Names() {
		v, _ := wc.Rules.Get(rule)
		c.Send("    - " + rule + ": " + v)
	}
}

// updated finishes a setter: a missing record is reported as not found, a
// failed live apply is reported after the save has been started.
func (c *Context) updated(name string, saved *async.Future[worldcfg.Written], err error) {
	if errors.Is(err, worldsync.ErrNotManaged) {
		c.Fail("World: " + name + " not found")
		return
	}
	var ruleErr *worldcfg.InvalidRuleError
	if saved == nil && errors.As(err, &ruleErr) {
		c.Fail(ruleErr.Name + " is not a valid game rule")
		return
	}
	if saved != nil {
		c.watchSave(saved)
	}
	if err != nil {
		c.Log().Error("apply to live world failed", "world", name, "err", err)
		c.Fail("Failed to apply settings to " + name + "! Error: " + err.Error())
		return
	}
	c.OK("Updated!")
}

func executeConfigSpawn(c *Context) {
	name := c.Arg("world")
	if _, ok := c.Sync().Worlds().Get(name); !ok {
		c.Fail("World: " + name + " not found")
		return
	}
	var xyz [3]float64
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.ParseFloat(c.Arg(key), 64)
		if err != nil {
			c.Fail(c.Arg(key) + " is not a number")
			return
		}
		xyz[i] = v
	}
	var yp [2]float32
	for i, key := range []string{"yaw", "pitch"} {
		v, err := strconv.ParseFloat(c.Arg(key), 32)
		if err != nil {
			c.Fail(c.Arg(key) + " is not a number")
			return
		}
		yp[i] = float32(v)
	}
	saved, err := c.Sync().SetSpawn(name, worldcfg.NewCoord(xyz[0], xyz[1], xyz[2], yp[0], yp[1]))
	c.updated(name, saved, err)
}

func executeConfigGameMode(c *Context) {
	name := c.Arg("world")
	if _, ok := c.Sync().Worlds().Get(name); !ok {
		c.Fail("World: " + name + " not found")
		return
	}
	mode, err := worldcfg.ParseGameMode(c.Arg("gamemode"))
	if err != nil {
		c.Fail(c.Arg("gamemode") + " is invalid game mode")
		return
	}
	saved, err := c.Sync().SetGameMode(name, mode)
	c.updated(name, saved, err)
}

func executeConfigGameRule(c *Context) {
	name := c.Arg("world")
	saved, err := c.Sync().SetGameRule(name, c.Arg("gamerule"), c.Arg("value"))
	c.updated(name, saved, err)
}

func executeConfigKeepSpawnInMemory(c *Context) {
	name := c.Arg("world")
	if _, ok := c.Sync().Worlds().Get(name); !ok {
		c.Fail("World: " + name + " not found")
		return
	}
	keep, err := strconv.ParseBool(c.Arg("value"))
	if err != nil {
		c.Fail(c.Arg("value") + " is not true or false")
		return
	}
	saved, err := c.Sync().SetKeepSpawnInMemory(name, keep)
	c.updated(name, saved, err)
}

func executeConfigTime(c *Context) {
	name := c.Arg("world")
	if _, ok := c.Sync().Worlds().Get(name); !ok {
		c.Fail("World: " + name + " not found")
		return
	}
	t, err := strconv.ParseInt(c.Arg("time"), 10, 32)
	if err != nil {
		c.Fail(c.Arg("time") + " is not a valid time")
		return
	}
	saved, err := c.Sync().SetTime(name, int32(t))
	c.updated(name, saved, err)
}

func executeConfigAdminOverride(c *Context) {
	v, err := strconv.ParseBool(c.Arg("value"))
	if err != nil {
		c.Fail(c.Arg("value") + " is not true or false")
		return
	}
	c.watchSave(c.Sync().SetAdminOverride(v))
	c.OK("Updated!")
}

// hereOr completes from the player's own location, or falls back for
// console senders.
func hereOr(field string, fallback Completer) Completer {
	return func(c *Context) []string {
		p := c.Sender.Player()
		if p == nil {
			if fallback == nil {
				return nil
			}
			return fallback(c)
		}
		loc := p.Location()
		switch field {
		case "world":
			return []string{loc.World}
		case "x":
			return []string{strconv.FormatFloat(loc.Pos.X(), 'f', -1, 64)}
		case "y":
			return []string{strconv.FormatFloat(loc.Pos.Y(), 'f', -1, 64)}
		case "z":
			return []string{strconv.FormatFloat(loc.Pos.Z(), 'f', -1, 64)}
		case "yaw":
			return []string{strconv.FormatFloat(float64(loc.Yaw), 'f', -1, 32)}
		case "pitch":
			return []string{strconv.FormatFloat(float64(loc.Pitch), 'f', -1, 32)}
		}
		return nil
	}
}

func gameModes(*Context) []string {
	out := make([]string, len(worldcfg.GameModes))
	for i, m := range worldcfg.GameModes {
		out[i] = string(m)
	}
	return out
}

func gameRules(*Context) []string { return live.GameRuleNames() }

func booleans(*Context) []string { return []string{"true", "false"} }
