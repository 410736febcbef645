package commands

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"voxelworlds.ai/internal/async"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldsync"
)

const reloadTimeout = time.Minute

func worldCommands() []*Command {
	return []*Command{
		{
			Usage:       "world spawn",
			Description: "Teleport to current world's spawn",
			Public:      true,
			PlayerOnly:  true,
			Handler:     executeSpawn,
		},
		{
			Usage:       "world tp <world>",
			Description: "Teleport to world",
			Public:      true,
			PlayerOnly:  true,
			Handler:     executeTP,
			Complete:    map[string]Completer{"world": loadedWorlds},
		},
		{
			Usage:       "world list",
			Description: "List all worlds",
			Handler:     executeList,
		},
		{
			Usage:       "world import <world>",
			Description: "Import specified world",
			Handler:     executeImport,
			Complete:    map[string]Completer{"world": unmanagedWorlds},
		},
		{
			Usage:       "world create <world>",
			Description: "Create world by specified name",
			Handler:     executeCreate,
		},
		{
			Usage:       "world remove <world>",
			Description: "Remove specified world",
			Handler:     executeRemove,
			Complete:    map[string]Completer{"world": managedWorlds},
		},
		{
			Usage:       "world reload",
			Description: "Reload configuration",
			Handler:     executeReload,
		},
		{
			Usage:       "world help",
			Description: "Show this help",
			Public:      true,
			Handler:     executeHelp,
		},
	}
}

func executeSpawn(c *Context) {
	p := c.Sender.Player()
	w, ok := c.Sync().Server().World(p.WorldName())
	if !ok {
		c.Fail("World: " + p.WorldName() + " not found")
		return
	}
	if err := c.Sync().Server().Teleport(p, c.Sync().SpawnLocation(w)); err != nil {
		c.Fail(err.Error())
	}
}

func executeTP(c *Context) {
	name := c.Arg("world")
	w, ok := c.Sync().Server().World(name)
	if !ok {
		c.Fail("World: " + name + " not found")
		return
	}
	if err := c.Sync().Server().Teleport(c.Sender.Player(), c.Sync().SpawnLocation(w)); err != nil {
		c.Fail(err.Error())
	}
}

func executeList(c *Context) {
	list := c.Sync().Worlds()
	srv := c.Sync().Server()
	c.Send(c.style.bold("Worlds:"))
	for _, w := range srv.Worlds() {
		status := c.style.red("Not managed")
		if _, ok := list.Get(w.Name()); ok {
			status = c.style.green("Managed")
		}
		c.Send("  - " + w.Name() + c.style.gray(" (") + status + c.style.gray(")"))
	}
	c.Send(c.style.bold("Can't be loaded:"))
	for _, name := range list.Names() {
		if _, ok := srv.World(name); !ok {
			c.Send("  - " + name)
		}
	}
}

func executeImport(c *Context) {
	name := c.Arg("world")
	saved, err := c.Sync().Import(name)
	switch {
	case errors.Is(err, worldsync.ErrAlreadyManaged):
		c.Fail("World: " + c.style.gray(name) + c.style.red(" is already imported"))
		return
	case errors.Is(err, worldsync.ErrWorldNotFound):
		c.Fail("World: " + c.style.gray(name) + c.style.red(" not found"))
		return
	case err != nil:
		c.Fail("Failed to import world! Error: " + err.Error())
		return
	}
	c.OK("Imported!")
	c.watchSave(saved)
}

func executeCreate(c *Context) {
	name := c.Arg("world")
	s := c.Sync()
	if _, ok := s.Worlds().Get(name); ok {
		c.Fail("World: " + name + " is already exist in worlds.yml")
		return
	}
	if _, ok := s.Server().World(name); ok {
		c.Fail("World: " + name + " is already exist")
		return
	}
	if s.Server().WorldDataExists(name) {
		c.Fail("World: " + name + " is already exist! (but not loaded now!)")
		c.Fail("You can import by executing `/world import`")
		return
	}
	c.Note("Creating...")
	saved, err := s.Create(name)
	if saved == nil {
		c.Fail("Failed to create world! Error: " + err.Error())
		return
	}
	c.watchSave(saved)
	if err != nil {
		c.Log().Error("apply to created world failed", "world", name, "err", err)
		c.Fail("World: " + name + " was created, but its settings could not be applied! Error: " + err.Error())
		return
	}
	c.OK("Created!")
}

func executeRemove(c *Context) {
	name := c.Arg("world")
	res, err := c.Sync().Remove(name)
	if err != nil {
		c.Fail("World: " + name + " not found")
		return
	}
	c.OK("Removed!")
	c.Note("Note: Worlds will not delete world data. If you want to delete it, Please tell to server owner.")
	if res.UnloadErr != nil {
		c.Fail("World: " + name + " is still loaded: " + res.UnloadErr.Error())
	}
	c.watchSave(res.Saved)
}

// executeReload re-reads both settings files off the primary context; the
// outcome reaches the sender after the command returns.
func executeReload(c *Context) {
	c.Note("Reloading...")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), reloadTimeout)
	started := time.Now()
	c.Sync().Reload(ctx).Then(func(st worldsync.ReloadStats) {
		cancel()
		c.Log().Info("reloaded configuration", "worlds", st.Worlds, "players", st.Players,
			"took", time.Since(started))
		c.OK("Reloaded!")
	}, func(err error) {
		cancel()
		c.Log().Error("An exception occurred while reloading configuration", "err", err)
		c.Send(c.style.red("Failed to reload configuration! Error: " + err.Error()))
	})
}

func executeHelp(c *Context) {
	c.Send(c.style.bold("Worlds commands:"))
	for _, cmd := range c.d.cmds {
		if !allowed(cmd, c.Sender) {
			continue
		}
		c.Send("  /" + cmd.Usage + c.style.gray(" - "+cmd.Description))
	}
}

// watchSave reports the outcome of a background save. Successful writes are
// recorded in the revision index.
func (c *Context) watchSave(f *async.Future[worldcfg.Written]) {
	f.Then(func(w worldcfg.Written) {
		file := filepath.Base(w.Path)
		c.Log().Debug("saved configuration", "file", file, "size", humanize.Bytes(uint64(len(w.Content))))
		if c.svc.Index != nil {
			c.svc.Index.RecordRevision(file, w.Digest, w.Content)
		}
	}, func(err error) {
		c.Log().Error("An exception occurred while saving world configuration", "err", err)
		c.Send(c.style.red("Failed to save configuration! Error: " + err.Error()))
	})
}

func loadedWorlds(c *Context) []string {
	var out []string
	for _, w := range c.Sync().Server().Worlds() {
		out = append(out, w.Name())
	}
	return out
}

func unmanagedWorlds(c *Context) []string {
	list := c.Sync().Worlds()
	return slices.DeleteFunc(loadedWorlds(c), func(name string) bool {
		_, ok := list.Get(name)
		return ok
	})
}

func managedWorlds(c *Context) []string { return c.Sync().Worlds().Names() }
