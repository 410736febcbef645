package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"voxelworlds.ai/configs"
	"voxelworlds.ai/internal/persistence/indexdb"
	persistlog "voxelworlds.ai/internal/persistence/log"
	"voxelworlds.ai/internal/worldcfg/worldcfgtest"
)

func TestLint_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	if _, err := configs.WriteDefault(filepath.Join(dir, "config.yml")); err != nil {
		t.Fatalf("write default: %v", err)
	}
	var out bytes.Buffer
	if err := lintCmd(&out, []string{"-data", dir}); err != nil {
		t.Fatalf("lint: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "config.yml: ok") || !strings.Contains(out.String(), "worlds.yml: missing") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestLint_Worlds(t *testing.T) {
	dir := t.TempDir()
	worldcfgtest.WriteFile(t, dir, "config.yml", worldcfgtest.ConfigYAML)
	worldcfgtest.WriteFile(t, dir, "worlds.yml", "alpha:\n  game-mode: creative\n  keep-spawn-in-memory: true\n  time: 0\n")
	var out bytes.Buffer
	if err := lintCmd(&out, []string{"-data", dir}); err != nil {
		t.Fatalf("lint: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "worlds.yml: 1 worlds") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestLint_Bad(t *testing.T) {
	dir := t.TempDir()
	worldcfgtest.WriteFile(t, dir, "config.yml", worldcfgtest.ConfigYAML)
	worldcfgtest.WriteFile(t, dir, "worlds.yml", "alpha:\n  game-mode: hardcore\n  keep-spawn-in-memory: true\n  time: 0\n")
	var out bytes.Buffer
	if err := lintCmd(&out, []string{"-data", dir}); err == nil {
		t.Fatalf("expected failure:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "worlds.yml: schema:") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestHash(t *testing.T) {
	var out bytes.Buffer
	if err := hashCmd(&out, strings.NewReader("hunter2\n"), []string{"-cost", "4"}); err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(h), []byte("hunter2")); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := hashCmd(&out, strings.NewReader(""), nil); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestHistoryAndCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index", "worlds.sqlite")
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.RecordRevision("worlds.yml", "aaaaaaaaaaaaaaaa", []byte("alpha: {}\n"))
	idx.RecordRevision("worlds.yml", "bbbbbbbbbbbbbbbb", []byte("beta: {}\n"))
	idx.RecordCommand("s1", "console", "world list", true)
	idx.RecordCommand("s1", "steve", "world reload", false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out bytes.Buffer
	if err := historyCmd(&out, []string{"-data", dir}); err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "bbbbbbbbbbbb") || !strings.Contains(lines[1], "aaaaaaaaaaaa") {
		t.Fatalf("history:\n%s", out.String())
	}

	out.Reset()
	if err := historyCmd(&out, []string{"-db", dbPath, "-content"}); err != nil {
		t.Fatalf("history -content: %v", err)
	}
	if out.String() != "beta: {}\n" {
		t.Fatalf("content: %q", out.String())
	}

	out.Reset()
	if err := commandsCmd(&out, []string{"-data", dir, "-actor", "steve"}); err != nil {
		t.Fatalf("commands: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "FAIL steve /world reload") || strings.Contains(got, "console") {
		t.Fatalf("commands:\n%s", got)
	}
}

func TestAudit(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewAuditLogger(dir)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = l.Write(persistlog.Entry{Time: at, Actor: "console", Line: "world list", OK: true, Replies: []string{"Worlds:"}})
	_ = l.Write(persistlog.Entry{Time: at.Add(time.Second), Actor: "steve", Line: "world create x", OK: false})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var out bytes.Buffer
	if err := auditCmd(&out, []string{"-dir", dir, "-replies"}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	want := "2026-03-01T10:00:00Z ok   console /world list\n" +
		"    Worlds:\n" +
		"2026-03-01T10:00:01Z FAIL steve /world create x\n"
	if out.String() != want {
		t.Fatalf("audit output:\n%s\nwant:\n%s", out.String(), want)
	}

	out.Reset()
	if err := auditCmd(&out, []string{"-dir", dir, "-failed"}); err != nil {
		t.Fatalf("audit -failed: %v", err)
	}
	if strings.Contains(out.String(), "console") {
		t.Fatalf("failed filter leaked:\n%s", out.String())
	}

	if err := auditCmd(&out, []string{"-dir", t.TempDir()}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
