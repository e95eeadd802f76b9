// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/metrics"
)

const (
	snapshotPrefix  = "mototwist-"
	snapshotSuffix  = ".duckdb.gz"
	checksumSuffix  = ".sha256"
	timestampLayout = "20060102T150405Z"
)

// Database is the slice of the data layer a snapshot needs.
type Database interface {
	GetDatabasePath() string
	Checkpoint(ctx context.Context) error
}

// Snapshot describes one snapshot file on disk. Checksum is only
// populated for snapshots returned by Create.
type Snapshot struct {
	Name      string
	Path      string
	Size      int64
	Checksum  string
	CreatedAt time.Time
}

// Manager creates, lists and prunes database snapshots.
type Manager struct {
	cfg *config.BackupConfig
	db  Database

	// Serializes Create and Prune so the scheduler and a manual
	// trigger cannot race on the same files.
	mu sync.Mutex
}

// NewManager creates a snapshot manager. A nil cfg disables backups.
func NewManager(db Database, cfg *config.BackupConfig) *Manager {
	if cfg == nil {
		cfg = &config.BackupConfig{
			Enabled:   false,
			Dir:       "/data/backups",
			Interval:  24 * time.Hour,
			Retention: 7,
		}
	}
	return &Manager{cfg: cfg, db: db}
}

// Create checkpoints the database and writes a compressed snapshot of
// its file, plus a .sha256 sidecar.
func (m *Manager) Create(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	snap, err := m.create(ctx)
	metrics.RecordBackup(time.Since(start), err)
	if err != nil {
		logging.Error().Err(err).Msg("Database snapshot failed")
		return nil, err
	}

	logging.Info().
		Str("snapshot", snap.Name).
		Int64("bytes", snap.Size).
		Str("sha256", snap.Checksum).
		Dur("took", time.Since(start)).
		Msg("Database snapshot written")
	return snap, nil
}

func (m *Manager) create(ctx context.Context) (*Snapshot, error) {
	if m.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	if err := os.MkdirAll(m.cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	// Flush the WAL so the file copy is consistent. A failed
	// checkpoint still yields a usable snapshot, just a stale one.
	if err := m.db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint before snapshot failed")
	}

	src, err := os.Open(m.db.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	defer src.Close() //nolint:errcheck // read-only handle

	createdAt := time.Now().UTC()
	name := snapshotPrefix + createdAt.Format(timestampLayout) + "-" + uuid.New().String() + snapshotSuffix
	finalPath := filepath.Join(m.cfg.Dir, name)
	tmpPath := finalPath + ".tmp"

	size, checksum, err := writeCompressed(ctx, tmpPath, src)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize snapshot: %w", err)
	}

	sidecar := checksum + "  " + name + "\n"
	if err := os.WriteFile(finalPath+checksumSuffix, []byte(sidecar), 0o640); err != nil {
		logging.Warn().Err(err).Str("snapshot", name).Msg("Failed to write checksum sidecar")
	}

	return &Snapshot{
		Name:      name,
		Path:      finalPath,
		Size:      size,
		Checksum:  checksum,
		CreatedAt: createdAt,
	}, nil
}

// writeCompressed gzips src into path, returning the compressed size
// and the SHA-256 of the compressed bytes.
func writeCompressed(ctx context.Context, path string, src io.Reader) (int64, string, error) {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, "", fmt.Errorf("create snapshot file: %w", err)
	}

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(out, hash)}
	gz := gzip.NewWriter(counter)

	if _, err := io.Copy(gz, &ctxReader{ctx: ctx, r: src}); err != nil {
		_ = gz.Close()
		_ = out.Close()
		return 0, "", fmt.Errorf("compress database file: %w", err)
	}
	if err := gz.Close(); err != nil {
		_ = out.Close()
		return 0, "", fmt.Errorf("flush snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, "", fmt.Errorf("close snapshot file: %w", err)
	}

	return counter.n, hex.EncodeToString(hash.Sum(nil)), nil
}

// List returns the snapshots in the backup directory, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
		if i := strings.Index(stamp, "-"); i >= 0 {
			stamp = stamp[:i]
		}
		createdAt, err := time.Parse(timestampLayout, stamp)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{
			Name:      name,
			Path:      filepath.Join(m.cfg.Dir, name),
			Size:      info.Size(),
			CreatedAt: createdAt,
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].Name > snaps[j].Name
	})
	return snaps, nil
}

// Latest returns the newest snapshot, or nil when none exist.
func (m *Manager) Latest() (*Snapshot, error) {
	snaps, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// Prune removes snapshots beyond the configured retention count,
// newest kept first. Sidecars go with their snapshots.
func (m *Manager) Prune() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps, err := m.List()
	if err != nil {
		return 0, err
	}
	retention := m.cfg.Retention
	if retention < 1 {
		retention = 1
	}
	if len(snaps) <= retention {
		return 0, nil
	}

	removed := 0
	for _, snap := range snaps[retention:] {
		if err := os.Remove(snap.Path); err != nil {
			logging.Warn().Err(err).Str("snapshot", snap.Name).Msg("Failed to remove expired snapshot")
			continue
		}
		_ = os.Remove(snap.Path + checksumSuffix)
		removed++
	}

	metrics.RecordBackupPruned(removed)
	if removed > 0 {
		logging.Info().
			Int("removed", removed).
			Int("kept", len(snaps)-removed).
			Msg("Pruned expired snapshots")
	}
	return removed, nil
}

// Verify recomputes a snapshot's SHA-256 and compares it against the
// .sha256 sidecar written at creation.
func Verify(path string) error {
	sidecar, err := os.ReadFile(path + checksumSuffix)
	if err != nil {
		return fmt.Errorf("read checksum sidecar: %w", err)
	}
	fields := strings.Fields(string(sidecar))
	if len(fields) == 0 {
		return fmt.Errorf("checksum sidecar for %s is empty", filepath.Base(path))
	}
	want := fields[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("hash snapshot: %w", err)
	}
	got := hex.EncodeToString(hash.Sum(nil))
	if got != want {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", filepath.Base(path), got, want)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ctxReader stops a long copy when the context ends.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
