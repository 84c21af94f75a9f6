// Package hkcache is the content-addressed cache for expensive derived
// data: parsed configuration documents and binary/text file classification
// (spec §6.1, "Cache"). Keys are (path, mtime, size) plus, for
// documents, the mtime/size of every transitively imported overlay file -
// invalidation is automatic on any of those changing.
package hkcache

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const defaultLockTimeout = 30 * time.Second

// Manager owns the SQLite-backed cache database and the cache directory.
type Manager struct {
	db       *sql.DB
	cacheDir string
	dbPath   string
}

// NewManager opens (creating if needed) the cache database under cacheDir.
func NewManager(cacheDir string) (*Manager, error) {
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	lockPath := filepath.Join(cacheDir, ".lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		if err := os.WriteFile(lockPath, []byte{}, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}
	}

	dbPath := filepath.Join(cacheDir, "db.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Manager{db: db, cacheDir: cacheDir, dbPath: dbPath}, nil
}

func initDatabase(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS configs (
			path       TEXT NOT NULL,
			mtime      INTEGER NOT NULL,
			size       INTEGER NOT NULL,
			imports    TEXT NOT NULL,
			document   BLOB NOT NULL,
			PRIMARY KEY (path)
		);`,
		`CREATE TABLE IF NOT EXISTS binary_detect (
			path       TEXT NOT NULL,
			mtime      INTEGER NOT NULL,
			size       INTEGER NOT NULL,
			is_binary  INTEGER NOT NULL,
			PRIMARY KEY (path)
		);`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// CacheDir returns the cache root.
func (m *Manager) CacheDir() string { return m.cacheDir }

// DBPath returns the SQLite file path.
func (m *Manager) DBPath() string { return m.dbPath }

// ImportsFingerprint combines the mtime/size of a document's transitively
// imported files into a single opaque string, suitable as part of a
// document cache key (spec §6.1).
func ImportsFingerprint(imports map[string]FileStamp) string {
	if len(imports) == 0 {
		return ""
	}
	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		stamp := imports[p]
		fmt.Fprintf(h, "%s:%d:%d\n", p, stamp.Mtime, stamp.Size)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// FileStamp is the (mtime, size) pair used as half of a cache key.
type FileStamp struct {
	Mtime int64
	Size  int64
}

// GetDocument returns the cached document bytes for path if the cache entry
// matches the given stamp and imports fingerprint exactly; ok is false on
// any mismatch or miss (automatic invalidation, spec §6.1).
func (m *Manager) GetDocument(path string, stamp FileStamp, imports string) (doc []byte, ok bool, err error) {
	var gotMtime, gotSize int64
	var gotImports string
	row := m.db.QueryRowContext(context.Background(),
		"SELECT mtime, size, imports, document FROM configs WHERE path = ?", path)
	if scanErr := row.Scan(&gotMtime, &gotSize, &gotImports, &doc); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, scanErr
	}
	if gotMtime != stamp.Mtime || gotSize != stamp.Size || gotImports != imports {
		return nil, false, nil
	}
	return doc, true, nil
}

// PutDocument stores (or replaces) the cached document for path.
func (m *Manager) PutDocument(path string, stamp FileStamp, imports string, doc []byte) error {
	_, err := m.db.ExecContext(context.Background(),
		"INSERT OR REPLACE INTO configs (path, mtime, size, imports, document) VALUES (?, ?, ?, ?, ?)",
		path, stamp.Mtime, stamp.Size, imports, doc)
	return err
}

// GetBinaryDetection returns a cached binary/text classification for path.
func (m *Manager) GetBinaryDetection(path string, stamp FileStamp) (isBinary, ok bool, err error) {
	var gotMtime, gotSize int64
	var gotBinary int
	row := m.db.QueryRowContext(context.Background(),
		"SELECT mtime, size, is_binary FROM binary_detect WHERE path = ?", path)
	if scanErr := row.Scan(&gotMtime, &gotSize, &gotBinary); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, scanErr
	}
	if gotMtime != stamp.Mtime || gotSize != stamp.Size {
		return false, false, nil
	}
	return gotBinary != 0, true, nil
}

// PutBinaryDetection stores a binary/text classification for path.
func (m *Manager) PutBinaryDetection(path string, stamp FileStamp, isBinary bool) error {
	binVal := 0
	if isBinary {
		binVal = 1
	}
	_, err := m.db.ExecContext(context.Background(),
		"INSERT OR REPLACE INTO binary_detect (path, mtime, size, is_binary) VALUES (?, ?, ?, ?)",
		path, stamp.Mtime, stamp.Size, binVal)
	return err
}

// Clean removes every cached entry; the database file is not compacted.
func (m *Manager) Clean() error {
	lock := NewFileLock(m.cacheDir)
	return lock.WithLockTimeout(defaultLockTimeout, func() error {
		if _, err := m.db.ExecContext(context.Background(), "DELETE FROM configs"); err != nil {
			return fmt.Errorf("failed to clear config cache: %w", err)
		}
		if _, err := m.db.ExecContext(context.Background(), "DELETE FROM binary_detect"); err != nil {
			return fmt.Errorf("failed to clear binary-detection cache: %w", err)
		}
		return nil
	})
}

// StampFile reads a file's mtime/size from disk for use as a cache key
// component.
func StampFile(path string) (FileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStamp{}, err
	}
	return FileStamp{Mtime: info.ModTime().UnixNano(), Size: info.Size()}, nil
}

// RandomSuffix returns a short random hex string, suitable for scratch file
// names under the cache directory.
func RandomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}
	return fmt.Sprintf("%x", buf), nil
}

