// Command bot joins a server as a player, runs a script of lines and prints
// everything the server sends back.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelworlds.ai/internal/protocol"
)

type lines []string

func (l *lines) String() string     { return strings.Join(*l, "; ") }
func (l *lines) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/play", "ws url")
		name     = flag.String("name", "bot", "player name")
		world    = flag.String("world", "", "world to join (default: main world)")
		password = flag.String("password", "", "admin password (optional)")
		wait     = flag.Duration("wait", 500*time.Millisecond, "pause between script lines")
		stdin    = flag.Bool("stdin", false, "read further lines from stdin")
		script   lines
	)
	flag.Var(&script, "run", "line to run after joining; `goto <world>` moves, anything else is a command (repeatable)")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		World:           *world,
		Password:        *password,
	}
	if err := conn.WriteJSON(hello); err != nil {
		fmt.Fprintln(os.Stderr, "send HELLO:", err)
		os.Exit(1)
	}

	done := make(chan error, 1)
	go func() { done <- readLoop(conn, os.Stdout) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	send := func(line string) error {
		if err := conn.WriteJSON(messageFor(line)); err != nil {
			return err
		}
		select {
		case <-time.After(*wait):
		case err := <-done:
			return err
		case <-stop:
			return io.EOF
		}
		return nil
	}
	for _, line := range script {
		if err := send(line); err != nil {
			exit(err)
		}
	}
	if *stdin {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) == "" {
				continue
			}
			if err := send(sc.Text()); err != nil {
				exit(err)
			}
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func exit(err error) {
	if errors.Is(err, io.EOF) {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// messageFor turns one script line into a client message.
func messageFor(line string) any {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "goto "); ok {
		return protocol.GotoMsg{Type: protocol.TypeGoto, World: strings.TrimSpace(rest)}
	}
	if rest, ok := strings.CutPrefix(line, "complete "); ok {
		return protocol.CompleteMsg{Type: protocol.TypeComplete, Line: rest}
	}
	return protocol.LineMsg{Type: protocol.TypeLine, Line: strings.TrimPrefix(line, "/")}
}

func readLoop(conn *websocket.Conn, w io.Writer) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return io.EOF
			}
			return err
		}
		if line, ok := describe(msg); ok {
			fmt.Fprintln(w, line)
		}
	}
}

// describe renders one server message for the terminal.
func describe(msg []byte) (string, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return "", false
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var m protocol.WelcomeMsg
		if json.Unmarshal(msg, &m) != nil {
			return "", false
		}
		return fmt.Sprintf("WELCOME session=%s world=%s game_mode=%s", m.SessionID, m.World, m.GameMode), true
	case protocol.TypeText:
		var m protocol.TextMsg
		if json.Unmarshal(msg, &m) != nil {
			return "", false
		}
		return m.Text, true
	case protocol.TypeGameMode:
		var m protocol.GameModeMsg
		if json.Unmarshal(msg, &m) != nil {
			return "", false
		}
		return "GAME_MODE " + m.GameMode, true
	case protocol.TypeTeleport:
		var m protocol.TeleportMsg
		if json.Unmarshal(msg, &m) != nil {
			return "", false
		}
		return fmt.Sprintf("TELEPORT %s %g %g %g yaw=%g pitch=%g", m.World, m.Pos[0], m.Pos[1], m.Pos[2], m.Yaw, m.Pitch), true
	case protocol.TypeCompletions:
		var m protocol.CompletionsMsg
		if json.Unmarshal(msg, &m) != nil {
			return "", false
		}
		return "COMPLETIONS " + strings.Join(m.Candidates, " "), true
	case protocol.TypeError:
		var m protocol.ErrorMsg
		if json.Unmarshal(msg, &m) != nil {
			return "", false
		}
		return "ERROR " + m.Code + ": " + m.Message, true
	}
	return "", false
}
