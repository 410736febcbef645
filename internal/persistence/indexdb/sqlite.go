// Package indexdb is a secondary SQLite index of settings file revisions and
// console commands. Writes are queued to one writer goroutine; the files on
// disk stay the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRevision atomic.Uint64
	dropCommand  atomic.Uint64
}

type reqKind int

const (
	reqRevision reqKind = iota + 1
	reqCommand
	reqFlush
)

type req struct {
	kind reqKind

	revision revisionRow
	command  commandRow
	flushed  chan struct{}
}

type revisionRow struct {
	File       string
	Digest     string
	Content    []byte
	RecordedAt string
}

type commandRow struct {
	SessionID  string
	Actor      string
	Line       string
	OK         bool
	RecordedAt string
}

// Revision is one recorded write of a settings file.
type Revision struct {
	ID         int64
	File       string
	Digest     string
	Size       int
	Content    []byte
	RecordedAt time.Time
}

// Command is one recorded console or player command line.
type Command struct {
	ID         int64
	SessionID  string
	Actor      string
	Line       string
	OK         bool
	RecordedAt time.Time
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropRevisionTotal uint64
	DropCommandTotal  uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file TEXT NOT NULL,
			digest TEXT NOT NULL,
			size INTEGER NOT NULL,
			content BLOB NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_file_id ON revisions(file, id);`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			line TEXT NOT NULL,
			ok INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_actor_id ON commands(actor, id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRevision queues one settings file write. Revisions whose digest
// matches the newest stored one for the file are skipped by the writer.
func (s *SQLiteIndex) RecordRevision(file, digest string, content []byte) {
	if s == nil || s.closed.Load() {
		return
	}
	r := revisionRow{
		File:       file,
		Digest:     digest,
		Content:    content,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqRevision, revision: r}:
	default:
		s.dropRevision.Add(1)
	}
}

func (s *SQLiteIndex) RecordCommand(sessionID, actor, line string, ok bool) {
	if s == nil || s.closed.Load() {
		return
	}
	r := commandRow{
		SessionID:  sessionID,
		Actor:      actor,
		Line:       line,
		OK:         ok,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqCommand, command: r}:
	default:
		s.dropCommand.Add(1)
	}
}

// Flush waits until everything queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, flushed: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropRevisionTotal: s.dropRevision.Load(),
		DropCommandTotal:  s.dropCommand.Load(),
	}
}

// Revisions returns the newest revisions first. An empty file matches all.
func (s *SQLiteIndex) Revisions(ctx context.Context, file string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,file,digest,size,content,recorded_at FROM revisions
		 WHERE (?1 = '' OR file = ?1) ORDER BY id DESC LIMIT ?2`, file, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var r Revision
		var at string
		if err := rows.Scan(&r.ID, &r.File, &r.Digest, &r.Size, &r.Content, &at); err != nil {
			return nil, err
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commands returns the newest commands first. An empty actor matches all.
func (s *SQLiteIndex) Commands(ctx context.Context, actor string, limit int) ([]Command, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,session_id,actor,line,ok,recorded_at FROM commands
		 WHERE (?1 = '' OR actor = ?1) ORDER BY id DESC LIMIT ?2`, actor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Command
	for rows.Next() {
		var c Command
		var at string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Actor, &c.Line, &c.OK, &at); err != nil {
			return nil, err
		}
		c.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRevision, _ := s.db.Prepare(`INSERT INTO revisions(file,digest,size,content,recorded_at) VALUES(?,?,?,?,?)`)
	latestDigest, _ := s.db.Prepare(`SELECT digest FROM revisions WHERE file = ? ORDER BY id DESC LIMIT 1`)
	insertCommand, _ := s.db.Prepare(`INSERT INTO commands(session_id,actor,line,ok,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertRevision != nil {
			_ = insertRevision.Close()
		}
		if latestDigest != nil {
			_ = latestDigest.Close()
		}
		if insertCommand != nil {
			_ = insertCommand.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.flushed)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRevision:
			rv := r.revision
			if latestDigest != nil {
				var prev string
				err := tx.Stmt(latestDigest).QueryRow(rv.File).Scan(&prev)
				if err == nil && prev == rv.Digest {
					continue
				}
			}
			if insertRevision != nil {
				if _, err := tx.Stmt(insertRevision).Exec(rv.File, rv.Digest, len(rv.Content), rv.Content, rv.RecordedAt); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqCommand:
			c := r.command
			if insertCommand != nil {
				if _, err := tx.Stmt(insertCommand).Exec(c.SessionID, c.Actor, c.Line, c.OK, c.RecordedAt); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
