// Package ws serves the console and player sessions over websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"voxelworlds.ai/internal/commands"
	"voxelworlds.ai/internal/protocol"
	"voxelworlds.ai/internal/sim/live"
	"voxelworlds.ai/internal/sim/scheduler"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/internal/worldsync"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	idleTimeout      = 5 * time.Minute
	callTimeout      = 10 * time.Second
	consoleOutbox    = 256
)

var playerName = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

type Options struct {
	Sync     *worldsync.Synchronizer
	Sched    *scheduler.Scheduler
	Commands *commands.Dispatcher
	// AdminPasswordHash is a bcrypt hash. When empty the console is closed
	// and nobody can join as admin.
	AdminPasswordHash []byte
	Log               *slog.Logger
}

type Server struct {
	sync  *worldsync.Synchronizer
	sched *scheduler.Scheduler
	cmds  *commands.Dispatcher
	hash  []byte
	log   *slog.Logger

	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Server{
		sync:  opts.Sync,
		sched: opts.Sched,
		cmds:  opts.Commands,
		hash:  opts.AdminPasswordHash,
		log:   opts.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/console", s.serveConsole)
	mux.HandleFunc("/v1/play", s.servePlay)
	return mux
}

func (s *Server) checkPassword(pw string) bool {
	if len(s.hash) == 0 || pw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.hash, []byte(pw)) == nil
}

// call runs fn on the primary context.
func (s *Server) call(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return s.sched.Call(ctx, fn)
}

// pump writes out to conn until ctx ends or a write fails.
func pump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

// readHandshake reads the first message and checks its type and protocol
// version. It answers violations with an ERROR before returning false.
func readHandshake(conn *websocket.Conn, want string, v any) bool {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != want {
		reject(conn, protocol.ErrProtoBadRequest, "expected "+want)
		return false
	}
	if base.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return false
	}
	if err := json.Unmarshal(msg, v); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, "bad "+want)
		return false
	}
	return true
}

func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: msg})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func errorMsg(code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: msg}
}

// serveConsole runs one admin console session: AUTH, then LINE and COMPLETE
// requests answered with TEXT and COMPLETIONS.
func (s *Server) serveConsole(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var auth protocol.AuthMsg
	if !readHandshake(conn, protocol.TypeAuth, &auth) {
		return
	}
	if !s.checkPassword(auth.Password) {
		s.log.Warn("console authentication failed", "remote", r.RemoteAddr)
		reject(conn, protocol.ErrAuthFailed, "authentication failed")
		return
	}

	sess := &consoleSender{
		id:    uuid.NewString(),
		color: r.URL.Query().Get("color") == "1",
		out:   make(chan []byte, consoleOutbox),
	}
	if err := writeJSON(conn, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
	}); err != nil {
		return
	}
	log := s.log.With("session", sess.id, "remote", r.RemoteAddr)
	log.Info("console session opened")
	defer log.Info("console session closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go pump(ctx, cancel, conn, sess.out)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var line protocol.LineMsg
		if err := json.Unmarshal(msg, &line); err != nil {
			sess.push(errorMsg(protocol.ErrProtoBadRequest, "bad message"))
			continue
		}
		switch line.Type {
		case protocol.TypeLine:
			err = s.call(ctx, func() error {
				s.cmds.Execute(ctx, sess, line.Line)
				return nil
			})
		case protocol.TypeComplete:
			err = s.call(ctx, func() error {
				sess.push(protocol.CompletionsMsg{
					Type:       protocol.TypeCompletions,
					Line:       line.Line,
					Candidates: s.cmds.Complete(ctx, sess, line.Line),
				})
				return nil
			})
		default:
			sess.push(errorMsg(protocol.ErrProtoBadRequest, "unknown type "+line.Type))
		}
		if err != nil {
			log.Error("console request failed", "err", err)
			sess.push(errorMsg(protocol.ErrInternal, err.Error()))
			if errors.Is(err, scheduler.ErrStopped) {
				return
			}
		}
	}
}

type consoleSender struct {
	id    string
	color bool
	out   chan []byte
}

func (c *consoleSender) Name() string         { return "console" }
func (c *consoleSender) SessionID() string    { return c.id }
func (c *consoleSender) Player() *live.Player { return nil }
func (c *consoleSender) IsAdmin() bool        { return true }
func (c *consoleSender) Color() bool          { return c.color }

func (c *consoleSender) Send(line string) {
	c.push(protocol.TextMsg{Type: protocol.TypeText, Text: line})
}

func (c *consoleSender) push(v any) {
	select {
	case c.out <- encode(v):
	default:
	}
}

// servePlay runs one player session: HELLO joins, GOTO changes world, LINE
// and COMPLETE go to the command table.
func (s *Server) servePlay(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var hello protocol.HelloMsg
	if !readHandshake(conn, protocol.TypeHello, &hello) {
		return
	}
	if !playerName.MatchString(hello.Name) {
		reject(conn, protocol.ErrProtoBadRequest, "bad name")
		return
	}
	admin := false
	if hello.Password != "" {
		if !s.checkPassword(hello.Password) {
			s.log.Warn("admin join refused", "player", hello.Name, "remote", r.RemoteAddr)
			reject(conn, protocol.ErrAuthFailed, "authentication failed")
			return
		}
		admin = true
	}

	sess := &playerSender{id: uuid.NewString(), color: r.URL.Query().Get("color") == "1"}
	var welcome protocol.WelcomeMsg
	err = s.call(r.Context(), func() error {
		p, err := s.sync.Server().Join(hello.Name, admin, hello.World)
		if err != nil {
			return err
		}
		sess.p = p
		welcome = protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sess.id,
			World:           p.WorldName(),
			GameMode:        string(p.GameMode()),
		}
		return nil
	})
	switch {
	case errors.Is(err, live.ErrPlayerOnline):
		reject(conn, protocol.ErrNameTaken, "name already online")
		return
	case err != nil:
		s.log.Error("join failed", "player", hello.Name, "err", err)
		reject(conn, protocol.ErrInternal, err.Error())
		return
	}
	log := s.log.With("session", sess.id, "player", hello.Name)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := s.sched.Call(ctx, func() error {
			s.sync.Server().Leave(hello.Name)
			return nil
		}); err != nil {
			log.Warn("leave failed", "err", err)
		}
	}()
	if err := writeJSON(conn, welcome); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go pump(ctx, cancel, conn, sess.p.Outbox())

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			sess.p.Send(errorMsg(protocol.ErrProtoBadRequest, "bad message"))
			continue
		}
		switch base.Type {
		case protocol.TypeGoto:
			var g protocol.GotoMsg
			if json.Unmarshal(msg, &g) != nil {
				sess.p.Send(errorMsg(protocol.ErrProtoBadRequest, "bad GOTO"))
				continue
			}
			err = s.call(ctx, func() error { return s.gotoWorld(sess.p, g.World) })
		case protocol.TypeLine, protocol.TypeComplete:
			var line protocol.LineMsg
			if json.Unmarshal(msg, &line) != nil {
				sess.p.Send(errorMsg(protocol.ErrProtoBadRequest, "bad "+base.Type))
				continue
			}
			if base.Type == protocol.TypeLine {
				err = s.call(ctx, func() error {
					s.cmds.Execute(ctx, sess, line.Line)
					return nil
				})
				break
			}
			err = s.call(ctx, func() error {
				sess.p.Send(protocol.CompletionsMsg{
					Type:       protocol.TypeCompletions,
					Line:       line.Line,
					Candidates: s.cmds.Complete(ctx, sess, line.Line),
				})
				return nil
			})
		default:
			sess.p.Send(errorMsg(protocol.ErrProtoBadRequest, "unknown type "+base.Type))
		}
		if err != nil {
			log.Error("player request failed", "err", err)
			if errors.Is(err, scheduler.ErrStopped) {
				return
			}
		}
	}
}

// gotoWorld sends p to the spawn of a loaded world.
func (s *Server) gotoWorld(p *live.Player, name string) error {
	w, ok := s.sync.Server().World(name)
	if !ok {
		p.Send(errorMsg(protocol.ErrWorldNotFound, name))
		return nil
	}
	return s.sync.Server().Teleport(p, s.sync.SpawnLocation(w))
}

type playerSender struct {
	id    string
	color bool
	p     *live.Player
}

func (ps *playerSender) Name() string         { return ps.p.Name() }
func (ps *playerSender) SessionID() string    { return ps.id }
func (ps *playerSender) Player() *live.Player { return ps.p }
func (ps *playerSender) Color() bool          { return ps.color }
func (ps *playerSender) Send(line string)     { ps.p.SendText(line) }

// IsAdmin is the player's permission, fixed at join.
func (ps *playerSender) IsAdmin() bool {
	return ps.p.HasPermission(worldcfg.PermAdmin)
}
