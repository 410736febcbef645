package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"voxelworlds.ai/internal/persistence/snapshot"
	"voxelworlds.ai/internal/worldcfg"
	"voxelworlds.ai/schemas"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "lint":
		err = lintCmd(os.Stdout, args)
	case "history":
		err = historyCmd(os.Stdout, args)
	case "commands":
		err = commandsCmd(os.Stdout, args)
	case "audit":
		err = auditCmd(os.Stdout, args)
	case "level":
		err = levelCmd(os.Stdout, args)
	case "hash":
		err = hashCmd(os.Stdout, os.Stdin, args)
	case "state":
		err = stateCmd(os.Stdout, args)
	case "archives":
		err = archivesCmd(os.Stdout, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, os.Args[1]+":", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <lint|history|commands|audit|archives|level|hash|state> [flags]")
}

// lintCmd checks config.yml and worlds.yml against their schemas and then
// loads them the way the server does.
func lintCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	dataDir := fs.String("data", "./plugins/Worlds", "settings directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var failed int
	check := func(file, schema string, load func(string) error) {
		path := filepath.Join(*dataDir, file)
		err := lintFile(path, schema, load)
		switch {
		case errors.Is(err, errMissing):
			fmt.Fprintf(w, "%s: missing (defaults apply)\n", file)
		case err != nil:
			failed++
			fmt.Fprintf(w, "%s: %v\n", file, err)
		default:
			fmt.Fprintf(w, "%s: ok\n", file)
		}
	}
	check("config.yml", schemas.Config, func(p string) error {
		_, err := worldcfg.NewConfig(p)
		return err
	})
	check("worlds.yml", schemas.Worlds, func(p string) error {
		l, err := worldcfg.NewWorldConfigList(p)
		if err == nil {
			fmt.Fprintf(w, "worlds.yml: %d worlds\n", l.Len())
		}
		return err
	})
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

var errMissing = errors.New("missing")

func lintFile(path, schema string, load func(string) error) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errMissing
	}
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := schemas.Validate(schema, doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return load(path)
}

func levelCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("level", flag.ContinueOnError)
	worldsDir := fs.String("worlds_dir", "./worlds", "world container directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: admin level [-worlds_dir dir] <world>")
	}
	path := snapshot.LevelPath(*worldsDir, fs.Arg(0))
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	lvl, err := snapshot.ReadLevel(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%s, modified %s)\n", path, humanize.Bytes(uint64(fi.Size())), humanize.Time(fi.ModTime()))
	return printJSON(w, lvl)
}

// hashCmd prints a bcrypt hash for -admin_password_hash. The password is
// read from the first line of stdin when not given as an argument.
func hashCmd(w io.Writer, in io.Reader, args []string) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw := fs.Arg(0)
	if pw == "" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		return errors.New("empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), *cost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(h))
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
