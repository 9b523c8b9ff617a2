// Package cache persists files materialized from disc images so repeat runs
// against an unchanged image skip the extraction work. Cached content lives
// under <cache_dir>/content and a SQLite manifest records what is present.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/logging"
)

// Store manages cached image content backed by a SQLite manifest.
type Store struct {
	db     *sql.DB
	root   string
	dbPath string
	lock   *flock.Flock
	logger *slog.Logger
}

// Entry describes one cached file.
type Entry struct {
	ID            int64
	ImageKey      string
	RelPath       string
	Size          int64
	ModTime       time.Time
	Fingerprint   string
	ContentSHA256 string
	CachedPath    string
	CreatedAt     time.Time
}

// Open initializes or connects to the cache under cfg.Paths.CacheDir. The
// directory is guarded with a file lock so two processes cannot mutate the
// manifest concurrently.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	root := cfg.Paths.CacheDir

	lock := flock.New(filepath.Join(root, "cache.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache at %s is in use by another psprip process", root)
	}

	dbPath := filepath.Join(root, "manifest.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		root:   root,
		dbPath: dbPath,
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "cache"),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close closes the manifest connection and releases the cache lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var first error
	if s.db != nil {
		first = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// ContentRoot returns the directory holding materialized files for one image.
func (s *Store) ContentRoot(imageKey string) string {
	return filepath.Join(s.root, "content", imageKey)
}

// Fingerprint derives the cache-hit key for a file inside an image: the
// directory-record metadata, not the content, so hit checks never read data
// sectors. Content integrity is tracked separately via ContentSHA256.
func Fingerprint(relPath string, size int64, modTime time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s::%d::%d", relPath, size, modTime.UTC().Unix())
	return hex.EncodeToString(h.Sum(nil))
}

// ImageKey derives the cache namespace for a disc image from its path and
// stat metadata, so a replaced image with the same path gets a fresh slot.
func ImageKey(path string, size int64, modTime time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s::%d::%d", path, size, modTime.UTC().Unix())
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Lookup returns the cached entry for a file when its fingerprint matches and
// the materialized file still exists on disk. A nil entry means miss.
func (s *Store) Lookup(ctx context.Context, imageKey, relPath, fingerprint string) (*Entry, error) {
	relPath = normalizeRelPath(relPath)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM cache_entries WHERE image_key = ? AND rel_path = ?`,
		imageKey, relPath,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup cache entry: %w", err)
	}
	if entry.Fingerprint != fingerprint {
		return nil, nil
	}
	info, err := os.Stat(entry.CachedPath)
	if err != nil || info.IsDir() {
		return nil, nil
	}
	return entry, nil
}

// Materialize streams r into the cache under imageKey/relPath and records the
// manifest row. The file is written through a temp name and renamed so a
// crash never leaves a partial file behind a valid manifest entry.
func (s *Store) Materialize(ctx context.Context, imageKey, relPath string, size int64, modTime time.Time, r io.Reader) (*Entry, error) {
	relPath = normalizeRelPath(relPath)
	dest := filepath.Join(s.ContentRoot(imageKey), filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, extract.Wrap(extract.ErrExtraction, "cache", "materialize", "create content directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return nil, extract.Wrap(extract.ErrExtraction, "cache", "materialize", "create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		_ = tmp.Close()
		return nil, extract.Wrap(extract.ErrExtraction, "cache", "materialize", "copy content", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, extract.Wrap(extract.ErrExtraction, "cache", "materialize", "close temp file", err)
	}
	if size >= 0 && written != size {
		return nil, extract.Wrap(extract.ErrExtraction, "cache", "materialize",
			fmt.Sprintf("size mismatch for %s: expected %d bytes, read %d", relPath, size, written), nil)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, extract.Wrap(extract.ErrExtraction, "cache", "materialize", "rename into place", err)
	}

	entry := &Entry{
		ImageKey:      imageKey,
		RelPath:       relPath,
		Size:          written,
		ModTime:       modTime.UTC(),
		Fingerprint:   Fingerprint(relPath, written, modTime),
		ContentSHA256: hex.EncodeToString(hasher.Sum(nil)),
		CachedPath:    dest,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) upsert(ctx context.Context, entry *Entry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (
            image_key, rel_path, size, mtime, fingerprint,
            content_sha256, cached_path, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (image_key, rel_path) DO UPDATE SET
            size = excluded.size, mtime = excluded.mtime,
            fingerprint = excluded.fingerprint,
            content_sha256 = excluded.content_sha256,
            cached_path = excluded.cached_path,
            created_at = excluded.created_at`,
		entry.ImageKey,
		entry.RelPath,
		entry.Size,
		entry.ModTime.Format(time.RFC3339Nano),
		entry.Fingerprint,
		entry.ContentSHA256,
		entry.CachedPath,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// Entries returns the manifest rows for one image ordered by path.
func (s *Store) Entries(ctx context.Context, imageKey string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM cache_entries WHERE image_key = ? ORDER BY rel_path`,
		imageKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Clear removes all cached content and manifest rows. Returns the number of
// manifest rows removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear manifest: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	contentDir := filepath.Join(s.root, "content")
	if err := os.RemoveAll(contentDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return removed, fmt.Errorf("remove content directory: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "cache cleared", logging.Int64("entries_removed", removed))
	}
	return removed, nil
}

const entryColumns = "id, image_key, rel_path, size, mtime, fingerprint, content_sha256, cached_path, created_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry      Entry
		mtimeRaw   string
		createdRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.ImageKey,
		&entry.RelPath,
		&entry.Size,
		&mtimeRaw,
		&entry.Fingerprint,
		&entry.ContentSHA256,
		&entry.CachedPath,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, mtimeRaw); err == nil {
		entry.ModTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = t
	}
	return &entry, nil
}

// normalizeRelPath unifies separators and strips a leading slash so the same
// file always maps to one manifest row.
func normalizeRelPath(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	return strings.TrimPrefix(relPath, "/")
}
