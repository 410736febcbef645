package commands_test

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"voxelworlds.ai/internal/commands"
	"voxelworlds.ai/internal/persistence/log"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldcfg/worldcfgtest"
	"voxelworlds.ai/internal/worldsync/synctest"
)

const alphaGhost = `alpha:
  game-mode: adventure
  keep-spawn-in-memory: false
  time: 1000
  game-rules:
    keepInventory: "true"
ghost:
  game-mode: survival
  keep-spawn-in-memory: true
  time: -1
`

type sender struct {
	name   string
	admin  bool
	player *live.Player

	mu    sync.Mutex
	lines []string
}

func console() *sender { return &sender{name: "console", admin: true} }

func (s *sender) Name() string         { return s.name }
func (s *sender) SessionID() string    { return "sess-" + s.name }
func (s *sender) Player() *live.Player { return s.player }
func (s *sender) IsAdmin() bool        { return s.admin }
func (s *sender) Color() bool          { return false }

func (s *sender) Send(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

// take returns and clears the received lines.
func (s *sender) take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.lines
	s.lines = nil
	return out
}

func (s *sender) waitFor(t *testing.T, line string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		found := slices.Contains(s.lines, line)
		s.mu.Unlock()
		if found {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never received %q; got %q", line, s.take())
}

type recorder struct {
	mu        sync.Mutex
	revisions []string
	commands  []string
}

func (r *recorder) RecordRevision(file, digest string, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revisions = append(r.revisions, file)
}

func (r *recorder) RecordCommand(sessionID, actor, line string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, fmt.Sprintf("%s %s %q %v", sessionID, actor, line, ok))
}

func (r *recorder) revisionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.revisions)
}

type fixture struct {
	*synctest.Harness
	D   *commands.Dispatcher
	Rec *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := synctest.New(t, alphaGhost)
	h.MakeWorldDir("alpha")
	h.Do(h.Sync.Startup)
	rec := &recorder{}
	d := commands.New(commands.Services{Sync: h.Sync, Index: rec, Log: h.Log})
	return &fixture{Harness: h, D: d, Rec: rec}
}

func (f *fixture) exec(s *sender, line string) (bool, []string) {
	f.T.Helper()
	var ok bool
	f.Do(func() error {
		ok = f.D.Execute(context.Background(), s, line)
		return nil
	})
	return ok, s.take()
}

func (f *fixture) complete(s *sender, line string) []string {
	f.T.Helper()
	var out []string
	f.Do(func() error {
		out = f.D.Complete(context.Background(), s, line)
		return nil
	})
	return out
}

func (f *fixture) join(name string, admin bool, world string) *sender {
	f.T.Helper()
	s := &sender{name: name, admin: admin}
	f.Do(func() error {
		p, err := f.Srv.Join(name, admin, world)
		s.player = p
		return err
	})
	return s
}

func wantLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("lines:\n got  %q\n want %q", got, want)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ok, lines := f.exec(console(), "world list")
	if !ok {
		t.Fatalf("list failed: %q", lines)
	}
	wantLines(t, lines,
		"Worlds:",
		"  - alpha (Managed)",
		"  - world (Not managed)",
		"Can't be loaded:",
		"  - ghost",
	)
}

func TestDispatch_Errors(t *testing.T) {
	f := newFixture(t)
	c := console()

	ok, lines := f.exec(c, "world frobnicate")
	if ok {
		t.Fatalf("unknown command succeeded")
	}
	wantLines(t, lines, "Unknown command. Type `world help` for help.")

	_, lines = f.exec(c, "world config time alpha")
	wantLines(t, lines, "Usage: /world config time <world> <time>")

	_, lines = f.exec(c, "world tp alpha extra")
	wantLines(t, lines, "Usage: /world tp <world>")

	_, lines = f.exec(c, "world spawn")
	wantLines(t, lines, "Cannot perform this command from the console")

	alex := f.join("alex", false, "alpha")
	_, lines = f.exec(alex, "world list")
	wantLines(t, lines, "You don't have permission to perform this command")

	f.Rec.mu.Lock()
	defer f.Rec.mu.Unlock()
	if len(f.Rec.commands) != 5 || !strings.HasSuffix(f.Rec.commands[0], "false") {
		t.Fatalf("recorded commands: %q", f.Rec.commands)
	}
}

func TestHelp_FiltersByPermission(t *testing.T) {
	f := newFixture(t)
	alex := f.join("alex", false, "alpha")
	_, lines := f.exec(alex, "world help")
	wantLines(t, lines,
		"Worlds commands:",
		"  /world spawn - Teleport to current world's spawn",
		"  /world tp <world> - Teleport to world",
		"  /world help - Show this help",
	)
	_, lines = f.exec(console(), "world help")
	if len(lines) != 1+len(f.D.Commands()) {
		t.Fatalf("admin help has %d lines for %d commands", len(lines), len(f.D.Commands()))
	}
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	c := console()

	ok, lines := f.exec(c, "world import world")
	if !ok {
		t.Fatalf("import failed: %q", lines)
	}
	wantLines(t, lines, "Imported!")
	if _, found := f.List.Get("world"); !found {
		t.Fatalf("world not managed after import")
	}

	_, lines = f.exec(c, "world import world")
	wantLines(t, lines, "World: world is already imported")
	_, lines = f.exec(c, "world import nope")
	wantLines(t, lines, "World: nope not found")

	deadline := time.Now().Add(5 * time.Second)
	for f.Rec.revisionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("save was never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.Rec.mu.Lock()
	defer f.Rec.mu.Unlock()
	if f.Rec.revisions[0] != "worlds.yml" {
		t.Fatalf("revision file=%q", f.Rec.revisions[0])
	}
}

func TestCreateAndRemove(t *testing.T) {
	f := newFixture(t)
	c := console()

	_, lines := f.exec(c, "world create alpha")
	wantLines(t, lines, "World: alpha is already exist in worlds.yml")
	_, lines = f.exec(c, "world create world")
	wantLines(t, lines, "World: world is already exist")
	f.MakeWorldDir("dormant")
	_, lines = f.exec(c, "world create dormant")
	wantLines(t, lines,
		"World: dormant is already exist! (but not loaded now!)",
		"You can import by executing `/world import`",
	)

	ok, lines := f.exec(c, "world create beta")
	if !ok {
		t.Fatalf("create failed: %q", lines)
	}
	wantLines(t, lines, "Creating...", "Created!")

	ok, lines = f.exec(c, "world remove beta")
	if !ok {
		t.Fatalf("remove failed: %q", lines)
	}
	wantLines(t, lines,
		"Removed!",
		"Note: Worlds will not delete world data. If you want to delete it, Please tell to server owner.",
	)
	f.Do(func() error {
		if _, loaded := f.Srv.World("beta"); loaded {
			return fmt.Errorf("beta still loaded")
		}
		return nil
	})
	_, lines = f.exec(c, "world remove beta")
	wantLines(t, lines, "World: beta not found")
}

func TestRemove_OccupiedWorldStaysLoaded(t *testing.T) {
	f := newFixture(t)
	f.join("alex", false, "alpha")
	ok, lines := f.exec(console(), "world remove alpha")
	if ok {
		t.Fatalf("remove of occupied world should report failure")
	}
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "World: alpha is still loaded: ") {
		t.Fatalf("lines=%q", lines)
	}
	if _, managed := f.List.Get("alpha"); managed {
		t.Fatalf("alpha should no longer be managed")
	}
}

func TestSpawnAndTP(t *testing.T) {
	f := newFixture(t)
	c := console()
	if ok, lines := f.exec(c, "world config spawn alpha 10 70 -5 90 0"); !ok {
		t.Fatalf("spawn: %q", lines)
	}
	alex := f.join("alex", false, "world")

	_, lines := f.exec(alex, "world tp nowhere")
	wantLines(t, lines, "World: nowhere not found")

	if ok, lines := f.exec(alex, "world tp alpha"); !ok {
		t.Fatalf("tp: %q", lines)
	}
	f.Do(func() error {
		loc := alex.player.Location()
		if loc.World != "alpha" || loc.Pos.X() != 10 || loc.Pos.Y() != 70 || loc.Yaw != 90 {
			return fmt.Errorf("tp landed at %+v", loc)
		}
		if alex.player.GameMode() != worldcfg.Adventure {
			return fmt.Errorf("world change did not force mode: %s", alex.player.GameMode())
		}
		return nil
	})

	if ok, lines := f.exec(alex, "world spawn"); !ok {
		t.Fatalf("spawn: %q", lines)
	}
}

func TestConfigSetters(t *testing.T) {
	f := newFixture(t)
	c := console()

	cases := []struct {
		line string
		want string
	}{
		{"world config gamemode alpha flying", "flying is invalid game mode"},
		{"world config gamemode nope creative", "World: nope not found"},
		{"world config time alpha noon", "noon is not a valid time"},
		{"world config time alpha 99999999999", "99999999999 is not a valid time"},
		{"world config keepspawninmemory alpha maybe", "maybe is not true or false"},
		{"world config gamerule alpha flyingPigs true", "flyingPigs is not a valid game rule"},
		{"world config spawn alpha 1 two 3 0 0", "two is not a number"},
		{"world config adminoverride sometimes", "sometimes is not true or false"},
	}
	for _, tc := range cases {
		ok, lines := f.exec(c, tc.line)
		if ok {
			t.Fatalf("%q succeeded", tc.line)
		}
		wantLines(t, lines, tc.want)
	}
	if wc, _ := f.List.Get("alpha"); wc.Rules.Len() != 1 || wc.GameMode != worldcfg.Adventure {
		t.Fatalf("record changed by rejected commands: %+v", wc)
	}

	alex := f.join("alex", false, "alpha")
	for _, line := range []string{
		"world config gamemode alpha creative",
		"world config time alpha 18000",
		"world config keepspawninmemory alpha true",
		"world config gamerule alpha mobGriefing false",
	} {
		ok, lines := f.exec(c, line)
		if !ok {
			t.Fatalf("%q: %q", line, lines)
		}
		wantLines(t, lines, "Updated!")
	}
	f.Do(func() error {
		w, _ := f.Srv.World("alpha")
		if w.Time() != 18000 || !w.KeepSpawnInMemory() {
			return fmt.Errorf("live world: time=%d keep=%v", w.Time(), w.KeepSpawnInMemory())
		}
		if v, _ := w.GameRuleValue("mobGriefing"); v != "false" {
			return fmt.Errorf("mobGriefing=%q", v)
		}
		if alex.player.GameMode() != worldcfg.Creative {
			return fmt.Errorf("player mode=%s", alex.player.GameMode())
		}
		return nil
	})

	_, lines := f.exec(c, "world config show alpha")
	wantLines(t, lines,
		"Settings of alpha",
		"  - keep-spawn-in-memory: true",
		"  - game-mode: CREATIVE",
		"  - time: 18000",
		"  - spawn:",
		"    Not Specified",
		"  - game-rules:",
		"    - keepInventory: true",
		"    - mobGriefing: false",
	)
}

func TestConfigShow_DefaultsToPlayerWorld(t *testing.T) {
	f := newFixture(t)
	_, lines := f.exec(console(), "world config show")
	wantLines(t, lines, "Please specify world or perform from the game")

	root := f.join("root", true, "alpha")
	ok, lines := f.exec(root, "world config show")
	if !ok || len(lines) == 0 || lines[0] != "Settings of alpha" {
		t.Fatalf("show: %v %q", ok, lines)
	}
}

func TestAdminOverride(t *testing.T) {
	f := newFixture(t)
	root := f.join("root", true, "alpha")
	f.Do(func() error {
		if root.player.GameMode() != worldcfg.Survival {
			return fmt.Errorf("admin forced before override: %s", root.player.GameMode())
		}
		return nil
	})
	ok, lines := f.exec(root, "world config adminoverride true")
	if !ok {
		t.Fatalf("adminoverride: %q", lines)
	}
	f.Do(func() error {
		if root.player.GameMode() != worldcfg.Adventure {
			return fmt.Errorf("admin not forced after override: %s", root.player.GameMode())
		}
		if !f.Cfg.UpdateGameModeForAdmin() {
			return fmt.Errorf("setting not changed")
		}
		return nil
	})
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	c := console()
	f.WriteWorlds(`alpha:
  game-mode: spectator
  keep-spawn-in-memory: true
  time: 6000
`)
	f.Do(func() error {
		if !f.D.Execute(context.Background(), c, "world reload") {
			return fmt.Errorf("reload refused")
		}
		return nil
	})
	c.waitFor(t, "Reloading...")
	c.waitFor(t, "Reloaded!")
	f.Do(func() error {
		w, _ := f.Srv.World("alpha")
		if w.Time() != 6000 || !w.KeepSpawnInMemory() {
			return fmt.Errorf("reload not applied: time=%d", w.Time())
		}
		return nil
	})

	c.take()
	f.WriteWorlds("alpha:\n  game-mode: walking\n  keep-spawn-in-memory: true\n  time: 0\n")
	f.Do(func() error {
		f.D.Execute(context.Background(), c, "world reload")
		return nil
	})
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.mu.Lock()
		i := slices.IndexFunc(c.lines, func(l string) bool {
			return strings.HasPrefix(l, "Failed to reload configuration! Error: ")
		})
		c.mu.Unlock()
		if i >= 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reload failure never reported: %q", c.take())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if wc, _ := f.List.Get("alpha"); wc.GameMode != worldcfg.Spectator {
		t.Fatalf("failed reload replaced record: %s", wc.GameMode)
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	c := console()

	cases := []struct {
		line string
		want []string
	}{
		{"wor", []string{"world"}},
		{"world c", []string{"config", "create"}},
		{"world config g", []string{"gamemode", "gamerule"}},
		{"world config gamemode ", []string{"alpha", "world"}},
		{"world config gamemode alpha ", []string{"ADVENTURE", "CREATIVE", "SPECTATOR", "SURVIVAL"}},
		{"world config gamemode alpha CR", []string{"CREATIVE"}},
		{"world config gamerule alpha keep", []string{"keepInventory"}},
		{"world import ", []string{"world"}},
		{"world remove ", []string{"alpha", "ghost"}},
		{"world config adminoverride t", []string{"true"}},
		{"world config time alpha ", []string{}},
	}
	for _, tc := range cases {
		if got := f.complete(c, tc.line); !slices.Equal(got, tc.want) {
			t.Fatalf("complete %q = %q, want %q", tc.line, got, tc.want)
		}
	}

	alex := f.join("alex", false, "alpha")
	if got := f.complete(alex, "world "); !slices.Equal(got, []string{"help", "spawn", "tp"}) {
		t.Fatalf("player completion = %q", got)
	}
	f.Do(func() error {
		return f.Srv.Teleport(alex.player, worldcfg.Location{World: "alpha", Yaw: 45})
	})
	alex.admin = true
	if got := f.complete(alex, "world config spawn "); !slices.Equal(got, []string{"alpha"}) {
		t.Fatalf("spawn world completion = %q", got)
	}
	if got := f.complete(alex, "world config spawn alpha 0 0 0 "); !slices.Equal(got, []string{"45"}) {
		t.Fatalf("yaw completion = %q", got)
	}
}

func TestAuditLog(t *testing.T) {
	h := synctest.New(t, alphaGhost)
	dir := t.TempDir()
	audit := log.NewAuditLogger(dir)
	d := commands.New(commands.Services{Sync: h.Sync, Audit: audit, Log: h.Log})
	c := console()
	h.Do(func() error {
		d.Execute(context.Background(), c, "world list")
		d.Execute(context.Background(), c, "world config time nope 1")
		return nil
	})
	if err := audit.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "audit-*.jsonl.zst"))
	var entries []log.Entry
	for _, p := range files {
		got, err := log.ReadEntries(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		entries = append(entries, got...)
	}
	if len(entries) != 2 || !entries[0].OK || entries[1].OK {
		t.Fatalf("entries=%+v", entries)
	}
	if entries[1].Replies[0] != "World: nope not found" {
		t.Fatalf("replies=%q", entries[1].Replies)
	}
}

func TestCreate_ApplyFailureStillCreates(t *testing.T) {
	f := newFixture(t)
	f.WriteConfig(strings.Replace(worldcfgtest.ConfigYAML, `doDaylightCycle: "false"`, `flyingPigs: "true"`, 1))
	if err := f.Cfg.Reload(); err != nil {
		t.Fatalf("reload config: %v", err)
	}

	ok, lines := f.exec(console(), "world create beta")
	if ok {
		t.Fatalf("create should report the failed apply: %q", lines)
	}
	wantLines(t, lines,
		"Creating...",
		"World: beta was created, but its settings could not be applied! Error: gamerule flyingPigs is invalid gamerule",
	)
	f.Do(func() error {
		if _, loaded := f.Srv.World("beta"); !loaded {
			return fmt.Errorf("beta not loaded")
		}
		if _, managed := f.List.Get("beta"); !managed {
			return fmt.Errorf("beta not registered")
		}
		return nil
	})
}
