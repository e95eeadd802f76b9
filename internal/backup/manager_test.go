// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package backup

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/config"
)

type fakeDB struct {
	mu            sync.Mutex
	path          string
	checkpoints   int
	checkpointErr error
}

func (f *fakeDB) GetDatabasePath() string { return f.path }

func (f *fakeDB) Checkpoint(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoints++
	return f.checkpointErr
}

func (f *fakeDB) checkpointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkpoints
}

func writeDatabaseFile(t *testing.T, content string) *fakeDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mototwist.duckdb")
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write database file: %v", err)
	}
	return &fakeDB{path: path}
}

func testBackupConfig(dir string) *config.BackupConfig {
	return &config.BackupConfig{
		Enabled:   true,
		Dir:       dir,
		Interval:  time.Hour,
		Retention: 3,
	}
}

// fabricateSnapshot drops a file named like a real snapshot so List
// and Prune tests can control timestamps.
func fabricateSnapshot(t *testing.T, dir, stamp string) string {
	t.Helper()
	name := snapshotPrefix + stamp + "-test" + snapshotSuffix
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o640); err != nil {
		t.Fatalf("fabricate snapshot: %v", err)
	}
	if err := os.WriteFile(path+checksumSuffix, []byte("deadbeef  "+name+"\n"), 0o640); err != nil {
		t.Fatalf("fabricate sidecar: %v", err)
	}
	return name
}

func TestManagerCreate(t *testing.T) {
	db := writeDatabaseFile(t, "pretend this is a duckdb file with twists in it")
	backupDir := filepath.Join(t.TempDir(), "backups")
	manager := NewManager(db, testBackupConfig(backupDir))

	snap, err := manager.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(snap.Name, snapshotPrefix) || !strings.HasSuffix(snap.Name, snapshotSuffix) {
		t.Errorf("snapshot name = %q, want %s...%s", snap.Name, snapshotPrefix, snapshotSuffix)
	}
	if snap.Checksum == "" {
		t.Error("snapshot checksum is empty")
	}
	info, err := os.Stat(snap.Path)
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	if info.Size() != snap.Size {
		t.Errorf("snapshot size = %d, file size = %d", snap.Size, info.Size())
	}
	if db.checkpointCount() != 1 {
		t.Errorf("checkpoints = %d, want 1", db.checkpointCount())
	}

	// The snapshot must decompress back to the original file.
	f, err := os.Open(snap.Path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	restored, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("decompress snapshot: %v", err)
	}
	original, err := os.ReadFile(db.path)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	if string(restored) != string(original) {
		t.Error("decompressed snapshot differs from the database file")
	}

	if err := Verify(snap.Path); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestManagerCreateErrors(t *testing.T) {
	backupDir := t.TempDir()

	missing := &fakeDB{path: filepath.Join(t.TempDir(), "missing.duckdb")}
	if _, err := NewManager(missing, testBackupConfig(backupDir)).Create(context.Background()); err == nil {
		t.Error("Create() with missing database file did not fail")
	}

	if _, err := NewManager(nil, testBackupConfig(backupDir)).Create(context.Background()); err == nil {
		t.Error("Create() with nil database did not fail")
	}
}

func TestManagerCreateSurvivesCheckpointFailure(t *testing.T) {
	db := writeDatabaseFile(t, "wal not flushed")
	db.checkpointErr = os.ErrPermission
	manager := NewManager(db, testBackupConfig(t.TempDir()))

	snap, err := manager.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v, want snapshot despite checkpoint failure", err)
	}
	if _, err := os.Stat(snap.Path); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	db := writeDatabaseFile(t, "original content")
	manager := NewManager(db, testBackupConfig(t.TempDir()))

	snap, err := manager.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	f, err := os.OpenFile(snap.Path, os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		t.Fatalf("open snapshot for tampering: %v", err)
	}
	if _, err := f.Write([]byte{0x00}); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	f.Close()

	err = Verify(snap.Path)
	if err == nil {
		t.Fatal("Verify() passed on a tampered snapshot")
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Verify() error = %v, want checksum mismatch", err)
	}

	if err := Verify(filepath.Join(t.TempDir(), "nosidecar.duckdb.gz")); err == nil {
		t.Error("Verify() without a sidecar did not fail")
	}
}

func TestManagerList(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(nil, testBackupConfig(dir))

	stamps := []string{
		"20260101T000000Z",
		"20260103T000000Z",
		"20260102T000000Z",
	}
	for _, stamp := range stamps {
		fabricateSnapshot(t, dir, stamp)
	}

	// Foreign files and malformed names stay out of the listing.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshotPrefix+"garbage"+snapshotSuffix), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, snapshotPrefix+"20260104T000000Z"+snapshotSuffix), 0o750); err != nil {
		t.Fatal(err)
	}

	snaps, err := manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("List() returned %d snapshots, want 3", len(snaps))
	}
	for i, want := range []string{"20260103T000000Z", "20260102T000000Z", "20260101T000000Z"} {
		if !strings.Contains(snaps[i].Name, want) {
			t.Errorf("snaps[%d] = %s, want stamp %s", i, snaps[i].Name, want)
		}
	}

	latest, err := manager.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest == nil || !strings.Contains(latest.Name, "20260103T000000Z") {
		t.Errorf("Latest() = %v, want the 20260103 snapshot", latest)
	}
}

func TestManagerListEmptyDir(t *testing.T) {
	manager := NewManager(nil, testBackupConfig(filepath.Join(t.TempDir(), "never-created")))

	snaps, err := manager.List()
	if err != nil || len(snaps) != 0 {
		t.Errorf("List() = %v, %v; want empty, nil", snaps, err)
	}
	latest, err := manager.Latest()
	if err != nil || latest != nil {
		t.Errorf("Latest() = %v, %v; want nil, nil", latest, err)
	}
}

func TestManagerPrune(t *testing.T) {
	dir := t.TempDir()
	cfg := testBackupConfig(dir)
	cfg.Retention = 2
	manager := NewManager(nil, cfg)

	stamps := []string{
		"20260101T000000Z",
		"20260102T000000Z",
		"20260103T000000Z",
		"20260104T000000Z",
		"20260105T000000Z",
	}
	names := make([]string, 0, len(stamps))
	for _, stamp := range stamps {
		names = append(names, fabricateSnapshot(t, dir, stamp))
	}

	removed, err := manager.Prune()
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Prune() removed %d, want 3", removed)
	}

	snaps, err := manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("after prune %d snapshots remain, want 2", len(snaps))
	}
	if !strings.Contains(snaps[0].Name, "20260105T000000Z") || !strings.Contains(snaps[1].Name, "20260104T000000Z") {
		t.Errorf("survivors = %s, %s; want the two newest", snaps[0].Name, snaps[1].Name)
	}

	// Pruned snapshots take their sidecars with them.
	for _, name := range names[:3] {
		if _, err := os.Stat(filepath.Join(dir, name) + checksumSuffix); !os.IsNotExist(err) {
			t.Errorf("sidecar for pruned %s still present", name)
		}
	}

	// A second prune finds nothing to do.
	removed, err = manager.Prune()
	if err != nil || removed != 0 {
		t.Errorf("second Prune() = %d, %v; want 0, nil", removed, err)
	}
}
