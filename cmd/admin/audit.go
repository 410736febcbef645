package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"voxelworlds.ai/internal/persistence/archive"
	persistlog "voxelworlds.ai/internal/persistence/log"
)

// auditCmd prints the command audit trail in file order. Each audit file
// covers one UTC hour, so sorting the names sorts the entries.
func auditCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	dataDir := fs.String("data", "./plugins/Worlds", "settings directory")
	dir := fs.String("dir", "", "audit directory (default: <data>/audit)")
	actor := fs.String("actor", "", "actor filter")
	failedOnly := fs.Bool("failed", false, "only failed commands")
	replies := fs.Bool("replies", false, "print command replies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		*dir = filepath.Join(*dataDir, "audit")
	}

	files, err := filepath.Glob(filepath.Join(*dir, "audit-*.jsonl.zst"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no audit files in " + *dir)
	}
	sort.Strings(files)
	for _, f := range files {
		entries, err := persistlog.ReadEntries(f)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(f), err)
		}
		for _, e := range entries {
			if *actor != "" && e.Actor != *actor {
				continue
			}
			if *failedOnly && e.OK {
				continue
			}
			status := "ok"
			if !e.OK {
				status = "FAIL"
			}
			fmt.Fprintf(w, "%s %-4s %s /%s\n", e.Time.UTC().Format("2006-01-02T15:04:05Z"), status, e.Actor, e.Line)
			if *replies {
				for _, r := range e.Replies {
					fmt.Fprintln(w, "    "+r)
				}
			}
		}
	}
	return nil
}

func archivesCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("archives", flag.ContinueOnError)
	dataDir := fs.String("data", "./plugins/Worlds", "settings directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dirs, err := archive.List(*dataDir)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		m, err := archive.ReadMeta(d)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", filepath.Base(d), err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", filepath.Base(d), m.Reason)
		for _, f := range m.Files {
			fmt.Fprintf(w, "    %-10s %8s %s\n", f.Name, humanize.Bytes(uint64(f.Size)), shortDigest(f.SHA256))
		}
	}
	return nil
}
