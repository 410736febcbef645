package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"voxelworlds.ai/internal/persistence/indexdb"
)

func openIndex(dataDir, dbPath string) (*indexdb.SQLiteIndex, error) {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "index", "worlds.sqlite")
	}
	return indexdb.OpenSQLite(path)
}

// historyCmd lists recorded revisions of the settings files, newest first.
// With -content it prints the body of the newest matching revision instead.
func historyCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dataDir := fs.String("data", "./plugins/Worlds", "settings directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	file := fs.String("file", "", "file filter (config.yml or worlds.yml)")
	limit := fs.Int("limit", 20, "result limit")
	content := fs.Bool("content", false, "print the newest revision body")
	asJSON := fs.Bool("json", false, "print JSON lines")
	if err := fs.Parse(args); err != nil {
		return err
	}

	idx, err := openIndex(*dataDir, *dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n := *limit
	if *content {
		n = 1
	}
	revs, err := idx.Revisions(ctx, *file, n)
	if err != nil {
		return err
	}
	if *content {
		if len(revs) == 0 {
			return errors.New("no revisions recorded")
		}
		_, err := w.Write(revs[0].Content)
		return err
	}
	for _, r := range revs {
		if *asJSON {
			if err := printJSON(w, struct {
				ID         int64     `json:"id"`
				File       string    `json:"file"`
				Digest     string    `json:"digest"`
				Size       int       `json:"size"`
				RecordedAt time.Time `json:"recorded_at"`
			}{r.ID, r.File, r.Digest, r.Size, r.RecordedAt}); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "#%d %-10s %s %8s %s\n", r.ID, r.File, shortDigest(r.Digest),
			humanize.Bytes(uint64(r.Size)), humanize.Time(r.RecordedAt))
	}
	return nil
}

func commandsCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("commands", flag.ContinueOnError)
	dataDir := fs.String("data", "./plugins/Worlds", "settings directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	actor := fs.String("actor", "", "actor filter")
	limit := fs.Int("limit", 20, "result limit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	idx, err := openIndex(*dataDir, *dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmds, err := idx.Commands(ctx, *actor, *limit)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		status := "ok"
		if !c.OK {
			status = "FAIL"
		}
		fmt.Fprintf(w, "#%d %-4s %s /%s (%s)\n", c.ID, status, c.Actor, c.Line, humanize.Time(c.RecordedAt))
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
