// Package snapshots persists encoded surfaces keyed by commit in SQLite.
// Identical snapshots share one zstd-compressed object addressed by its
// sha256 digest.
package snapshots

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"apisurface/internal/core/errors"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Ref records which snapshot object a commit points at.
type Ref struct {
	Commit  string
	Module  string
	Digest  string
	RunID   string
	SavedAt time.Time
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates the store at path. A zero busyTimeout waits two
// seconds for locks held by other processes.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("snapshot store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("snapshot store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite snapshot store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storeError(err, cleanPath, "ping sqlite snapshot store")
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, storeError(err, cleanPath, "initialize sqlite schema")
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Store{path: cleanPath, db: db, enc: enc, dec: dec}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_ = s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save stores data under commit, replacing whatever the commit pointed at.
func (s *Store) Save(commit, module string, data []byte) (Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit = strings.TrimSpace(commit)
	if commit == "" {
		return Ref{}, errors.New(errors.CodeValidationError, "commit must not be empty")
	}

	sum := sha256.Sum256(data)
	ref := Ref{
		Commit:  commit,
		Module:  module,
		Digest:  hex.EncodeToString(sum[:]),
		RunID:   uuid.NewString(),
		SavedAt: time.Now().UTC(),
	}
	blob := s.enc.EncodeAll(data, nil)

	err := s.withRetry("save snapshot", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO objects (digest, size, data) VALUES (?, ?, ?)`,
			ref.Digest, len(data), blob,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO refs (commit_id, digest, run_id, saved_at_utc, module) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(commit_id) DO UPDATE SET
  digest=excluded.digest,
  run_id=excluded.run_id,
  saved_at_utc=excluded.saved_at_utc,
  module=excluded.module
`,
			ref.Commit, ref.Digest, ref.RunID, ref.SavedAt.Format(time.RFC3339Nano), ref.Module,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Load returns the snapshot saved for commit.
func (s *Store) Load(commit string) ([]byte, Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ref      Ref
		savedRaw string
		size     int
		blob     []byte
	)
	err := s.withRetry("load snapshot", func() error {
		return s.db.QueryRow(`
SELECT r.commit_id, r.module, r.digest, r.run_id, r.saved_at_utc, o.size, o.data
FROM refs r JOIN objects o ON o.digest = r.digest
WHERE r.commit_id = ?
`, strings.TrimSpace(commit)).Scan(&ref.Commit, &ref.Module, &ref.Digest, &ref.RunID, &savedRaw, &size, &blob)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		notFound := errors.Newf(errors.CodeNotFound, "no snapshot saved for commit %q", commit)
		return nil, Ref{}, errors.AddContext(notFound, errors.CtxCommit, commit)
	}
	if err != nil {
		return nil, Ref{}, err
	}
	if ref.SavedAt, err = time.Parse(time.RFC3339Nano, savedRaw); err != nil {
		return nil, Ref{}, fmt.Errorf("parse saved timestamp %q: %w", savedRaw, err)
	}

	data, err := s.dec.DecodeAll(blob, make([]byte, 0, size))
	if err != nil {
		corrupt := errors.Wrap(err, errors.CodeMalformedSnapshot, "snapshot object cannot be decompressed")
		return nil, Ref{}, errors.AddContext(corrupt, errors.CtxCommit, commit)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != ref.Digest {
		corrupt := errors.New(errors.CodeMalformedSnapshot, "snapshot object does not match its digest")
		return nil, Ref{}, errors.AddContext(corrupt, errors.CtxCommit, commit)
	}
	return data, ref, nil
}

// Refs lists saved commits, newest first.
func (s *Store) Refs() ([]Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("list refs", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT commit_id, module, digest, run_id, saved_at_utc FROM refs
ORDER BY saved_at_utc DESC, commit_id ASC
`)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]Ref, 0)
	for rows.Next() {
		var (
			ref      Ref
			savedRaw string
		)
		if err := rows.Scan(&ref.Commit, &ref.Module, &ref.Digest, &ref.RunID, &savedRaw); err != nil {
			return nil, fmt.Errorf("scan ref row: %w", err)
		}
		saved, err := time.Parse(time.RFC3339Nano, savedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse saved timestamp %q: %w", savedRaw, err)
		}
		ref.SavedAt = saved.UTC()
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ref rows: %w", err)
	}
	return refs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return storeError(lastErr, s.path, op)
}

// storeError reports a damaged database file as a malformed snapshot so
// callers can tell it apart from transient failures.
func storeError(err error, path, op string) error {
	if isCorruptError(err) {
		corrupt := errors.Wrap(err, errors.CodeMalformedSnapshot, op+": snapshot store is damaged; remove it and save again")
		return errors.AddContext(corrupt, errors.CtxPath, path)
	}
	return fmt.Errorf("%s %q: %w", op, path, err)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// isCorruptError reports whether err indicates a damaged database file.
func isCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || stderrors.Is(err, os.ErrInvalid)
}
