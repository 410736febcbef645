// Command replay re-runs the setting changes recorded in command audit files
// against a console session, in recorded order.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	persistlog "voxelworlds.ai/internal/persistence/log"
	"voxelworlds.ai/internal/protocol"
)

func main() {
	var (
		auditDir = flag.String("audit", "", "audit dir containing audit-*.jsonl.zst")
		url      = flag.String("url", "ws://localhost:8080/v1/console", "console ws url")
		password = flag.String("password", "", "admin password (or set VW_ADMIN_PASSWORD)")
		since    = flag.String("since", "", "skip entries before this RFC3339 time (optional)")
		all      = flag.Bool("all", false, "replay failed and read-only commands too")
		dryRun   = flag.Bool("dry_run", false, "print the lines instead of running them")
	)
	flag.Parse()

	if *auditDir == "" {
		fmt.Fprintln(os.Stderr, "missing -audit")
		os.Exit(2)
	}
	var from time.Time
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		from = t
	}

	entries, err := readAudit(*auditDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	todo := selectLines(entries, from, *all)
	fmt.Printf("audit entries=%d replay=%d\n", len(entries), len(todo))
	if *dryRun {
		for _, l := range todo {
			fmt.Println("/" + l)
		}
		return
	}

	pw := *password
	if pw == "" {
		pw = os.Getenv("VW_ADMIN_PASSWORD")
	}
	if err := replay(*url, pw, todo); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func readAudit(dir string) ([]persistlog.Entry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var out []persistlog.Entry
	for _, f := range files {
		es, err := persistlog.ReadEntries(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(f), err)
		}
		out = append(out, es...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// selectLines keeps the successful commands that change settings unless all
// is set.
func selectLines(entries []persistlog.Entry, from time.Time, all bool) []string {
	var out []string
	for _, e := range entries {
		if !from.IsZero() && e.Time.Before(from) {
			continue
		}
		if !all && (!e.OK || !changesSettings(e.Line)) {
			continue
		}
		out = append(out, strings.TrimSpace(e.Line))
	}
	return out
}

func changesSettings(line string) bool {
	f := strings.Fields(line)
	if len(f) < 2 || f[0] != "world" {
		return false
	}
	switch f[1] {
	case "import", "create", "remove":
		return true
	case "config":
		return len(f) >= 3 && f[2] != "show"
	}
	return false
}

func replay(url, password string, todo []string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.AuthMsg{Type: protocol.TypeAuth, ProtocolVersion: protocol.Version, Password: password}); err != nil {
		return err
	}
	if err := expectWelcome(conn); err != nil {
		return err
	}

	for i, line := range todo {
		fmt.Println("> /" + line)
		if err := conn.WriteJSON(protocol.LineMsg{Type: protocol.TypeLine, Line: line}); err != nil {
			return err
		}
		// Replies to a line come before the answer to the following
		// COMPLETE, so the marker tells us the line has finished.
		marker := "\x00replay-" + strconv.Itoa(i)
		if err := conn.WriteJSON(protocol.CompleteMsg{Type: protocol.TypeComplete, Line: marker}); err != nil {
			return err
		}
		if err := drainUntil(conn, marker); err != nil {
			return err
		}
	}
	return nil
}

func expectWelcome(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return err
	}
	switch base.Type {
	case protocol.TypeWelcome:
		return nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	return errors.New("unexpected " + base.Type)
}

func drainUntil(conn *websocket.Conn, marker string) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(time.Minute))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeText:
			var t protocol.TextMsg
			if json.Unmarshal(msg, &t) == nil {
				fmt.Println("  " + t.Text)
			}
		case protocol.TypeCompletions:
			var c protocol.CompletionsMsg
			if json.Unmarshal(msg, &c) == nil && c.Line == marker {
				return nil
			}
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			return fmt.Errorf("%s: %s", e.Code, e.Message)
		}
	}
}
