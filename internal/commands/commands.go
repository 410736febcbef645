// Package commands is the admin command table for managed worlds. Commands
// are plain table entries keyed by their usage string; Execute and Complete
// must run on the primary execution context.
package commands

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"voxelworlds.ai/internal/persistence/log"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/worldsync"
)

// Sender is whoever typed the line. Send may be called from any goroutine;
// save and reload outcomes arrive after Execute returns.
type Sender interface {
	Name() string
	SessionID() string
	// Player is nil for console senders.
	Player() *live.Player
	IsAdmin() bool
	Color() bool
	Send(line string)
}

// Recorder stores settings revisions and executed command lines.
type Recorder interface {
	RecordRevision(file, digest string, content []byte)
	RecordCommand(sessionID, actor, line string, ok bool)
}

type Services struct {
	Sync *worldsync.Synchronizer
	// Index and Audit are optional.
	Index Recorder
	Audit *log.AuditLogger
	Log   *slog.Logger
}

type Handler func(c *Context)

// Completer lists candidates for one parameter; the dispatcher filters them
// by the typed prefix.
type Completer func(c *Context) []string

type Param struct {
	Name     string
	Optional bool
	Complete Completer
}

type Command struct {
	Usage       string
	Description string
	// Public commands are open to every player; the rest need admin.
	Public bool
	// PlayerOnly commands are refused from the console.
	PlayerOnly bool
	Handler    Handler
	// Complete maps parameter names to their completers.
	Complete map[string]Completer

	path   []string
	params []Param
}

func (c *Command) Path() string { return strings.Join(c.path, " ") }

func (c *Command) Params() []Param { return c.params }

func (c *Command) required() int {
	n := 0
	for _, p := range c.params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// parseUsage splits "world config show [world]" into the literal path and
// the parameters.
func parseUsage(usage string) ([]string, []Param) {
	var path []string
	var params []Param
	for _, f := range strings.Fields(usage) {
		switch {
		case strings.HasPrefix(f, "<") && strings.HasSuffix(f, ">"):
			params = append(params, Param{Name: f[1 : len(f)-1]})
		case strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]"):
			params = append(params, Param{Name: f[1 : len(f)-1], Optional: true})
		default:
			path = append(path, f)
		}
	}
	return path, params
}

type Dispatcher struct {
	svc  Services
	cmds []*Command
}

// New builds the dispatcher with every world command registered.
func New(svc Services) *Dispatcher {
	if svc.Log == nil {
		svc.Log = slog.Default()
	}
	d := &Dispatcher{svc: svc}
	for _, c := range worldCommands() {
		d.Register(c)
	}
	for _, c := range configCommands() {
		d.Register(c)
	}
	return d
}

func (d *Dispatcher) Register(c *Command) {
	c.path, c.params = parseUsage(c.Usage)
	for i := range c.params {
		c.params[i].Complete = c.Complete[c.params[i].Name]
	}
	d.cmds = append(d.cmds, c)
}

// Commands returns the registered commands in registration order.
func (d *Dispatcher) Commands() []*Command { return slices.Clone(d.cmds) }

// lookup finds the command with the longest literal path matching args.
func (d *Dispatcher) lookup(args []string) (*Command, []string) {
	var best *Command
	for _, c := range d.cmds {
		if len(c.path) > len(args) || !slices.Equal(c.path, args[:len(c.path)]) {
			continue
		}
		if best == nil || len(c.path) > len(best.path) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, args[len(best.path):]
}

func allowed(c *Command, s Sender) bool {
	return c.Public || s.IsAdmin()
}

// Execute runs one command line and reports whether it succeeded. Failures
// of background saves are reported to the sender later and do not count.
func (d *Dispatcher) Execute(ctx context.Context, s Sender, line string) bool {
	c := d.newContext(ctx, s)
	d.run(c, line)
	ok, replies := c.outcome()
	d.record(s, line, ok, replies)
	return ok
}

func (d *Dispatcher) run(c *Context, line string) {
	args := strings.Fields(line)
	cmd, rest := d.lookup(args)
	if cmd == nil {
		c.Fail("Unknown command. Type `world help` for help.")
		return
	}
	c.cmd = cmd
	if !allowed(cmd, c.Sender) {
		c.Fail("You don't have permission to perform this command")
		return
	}
	if len(rest) < cmd.required() || len(rest) > len(cmd.params) {
		c.Fail("Usage: /" + cmd.Usage)
		return
	}
	if cmd.PlayerOnly && c.Sender.Player() == nil {
		c.Fail("Cannot perform this command from the console")
		return
	}
	c.args = make(map[string]string, len(rest))
	for i, v := range rest {
		c.args[cmd.params[i].Name] = v
	}
	defer func() {
		if r := recover(); r != nil {
			d.svc.Log.Error("command panicked", "line", line, "panic", r)
			c.Fail("An internal error occurred while performing this command")
		}
	}()
	cmd.Handler(c)
}

func (d *Dispatcher) record(s Sender, line string, ok bool, replies []string) {
	if d.svc.Index != nil {
		d.svc.Index.RecordCommand(s.SessionID(), s.Name(), line, ok)
	}
	if d.svc.Audit != nil {
		err := d.svc.Audit.Write(log.Entry{
			SessionID: s.SessionID(),
			Actor:     s.Name(),
			Line:      line,
			OK:        ok,
			Replies:   replies,
		})
		if err != nil {
			d.svc.Log.Warn("audit write failed", "err", err)
		}
	}
}

// Complete returns sorted candidates for the last word of line. A line that
// ends in a space completes a new, empty word.
func (d *Dispatcher) Complete(ctx context.Context, s Sender, line string) []string {
	words := strings.Fields(line)
	cur := ""
	if len(words) > 0 && !strings.HasSuffix(line, " ") {
		cur = words[len(words)-1]
		words = words[:len(words)-1]
	}

	seen := map[string]bool{}
	c := d.newContext(ctx, s)
	for _, cmd := range d.cmds {
		if !allowed(cmd, s) {
			continue
		}
		n := len(words)
		if n < len(cmd.path) {
			if !slices.Equal(cmd.path[:n], words) {
				continue
			}
			if next := cmd.path[n]; strings.HasPrefix(next, cur) {
				seen[next] = true
			}
			continue
		}
		if !slices.Equal(cmd.path, words[:len(cmd.path)]) {
			continue
		}
		i := n - len(cmd.path)
		if i >= len(cmd.params) || cmd.params[i].Complete == nil {
			continue
		}
		c.cmd, c.param = cmd, cmd.params[i].Name
		for _, v := range cmd.params[i].Complete(c) {
			if strings.HasPrefix(v, cur) {
				seen[v] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (d *Dispatcher) newContext(ctx context.Context, s Sender) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{Ctx: ctx, Sender: s, svc: &d.svc, d: d, style: stylesFor(s), ok: true}
}

// Context is one command invocation.
type Context struct {
	Ctx    context.Context
	Sender Sender

	svc   *Services
	d     *Dispatcher
	style *styles
	cmd   *Command
	param string
	args  map[string]string

	mu      sync.Mutex
	ok      bool
	replies []string
}

func (c *Context) outcome() (bool, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ok, slices.Clone(c.replies)
}

// Arg returns the named argument, or "" when an optional one was omitted.
func (c *Context) Arg(name string) string { return c.args[name] }

func (c *Context) HasArg(name string) bool {
	_, ok := c.args[name]
	return ok
}

// Param is the parameter being completed.
func (c *Context) Param() string { return c.param }

func (c *Context) Sync() *worldsync.Synchronizer { return c.svc.Sync }

func (c *Context) Log() *slog.Logger { return c.svc.Log }

// Send delivers one line to the sender.
func (c *Context) Send(line string) {
	c.mu.Lock()
	c.replies = append(c.replies, line)
	c.mu.Unlock()
	c.Sender.Send(line)
}

// OK sends a success line.
func (c *Context) OK(msg string) { c.Send(c.style.green(msg)) }

// Fail sends an error line and marks the invocation failed.
func (c *Context) Fail(msg string) {
	c.mu.Lock()
	c.ok = false
	c.mu.Unlock()
	c.Send(c.style.red(msg))
}

func (c *Context) Note(msg string) { c.Send(c.style.gray(msg)) }
