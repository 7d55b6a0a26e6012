package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/roach88/sheetwatch/internal/entity"
)

// legacyTimeLayout is the timestamp layout of state files written by the
// first deployment.
const legacyTimeLayout = "02/01/2006 15:04:05"

// backupTimeLayout names backup copies; sortable by name.
const backupTimeLayout = "20060102_150405"

// Options configures a Store.
type Options struct {
	// Path is the snapshot JSON file.
	Path string

	// BackupDir receives one immutable copy per accepted commit.
	// Defaults to "backups" next to Path.
	BackupDir string

	// WarmFlag is the marker file whose presence means warm-up is complete.
	// Defaults to Path + ".warm".
	WarmFlag string

	// Clock stamps last_checked_at and backup names. Defaults to the wall clock.
	Clock clock.Clock
}

// Store owns the snapshot. All methods are safe for concurrent use; Commit
// is expected to have a single caller.
type Store struct {
	opts Options

	mu      sync.RWMutex
	current entity.Snapshot
	warm    bool
}

// fileFormat is the on-disk shape, including the legacy keys.
type fileFormat struct {
	LastCheckedAt *time.Time               `json:"last_checked_at,omitempty"`
	Records       map[string]entity.Record `json:"records"`

	LegacyLastChecked string                   `json:"ultima_verificacao,omitempty"`
	LegacyRecords     map[string]entity.Record `json:"registros,omitempty"`
}

// Open creates a store and loads any persisted state.
//
// A missing state file is not an error: the store starts empty. A state file
// that cannot be decoded yields a usable empty store together with a
// *CorruptStateError; the caller decides whether to continue.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("snapshot: path is required")
	}
	if opts.BackupDir == "" {
		opts.BackupDir = filepath.Join(filepath.Dir(opts.Path), "backups")
	}
	if opts.WarmFlag == "" {
		opts.WarmFlag = opts.Path + ".warm"
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}

	s := &Store{opts: opts, current: entity.NewSnapshot()}

	if _, err := os.Stat(opts.WarmFlag); err == nil {
		s.warm = true
	}

	snap, err := load(opts.Path)
	if err != nil {
		return s, err
	}
	s.current = snap
	return s, nil
}

func load(path string) (entity.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no prior snapshot, starting empty", "path", path)
		return entity.NewSnapshot(), nil
	}
	if err != nil {
		slog.Error("snapshot unreadable", "path", path, "error", err)
		return entity.NewSnapshot(), &CorruptStateError{Path: path, Err: err}
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Error("snapshot corrupt, starting empty", "path", path, "error", err)
		return entity.NewSnapshot(), &CorruptStateError{Path: path, Err: err}
	}

	snap := entity.NewSnapshot()
	records := f.Records
	if records == nil {
		records = f.LegacyRecords
	}
	for id, rec := range records {
		snap.Records[id] = rec
	}
	switch {
	case f.LastCheckedAt != nil:
		snap.LastCheckedAt = *f.LastCheckedAt
	case f.LegacyLastChecked != "":
		if t, err := time.ParseInLocation(legacyTimeLayout, f.LegacyLastChecked, time.Local); err == nil {
			snap.LastCheckedAt = t
		}
	}

	slog.Info("snapshot loaded", "path", path, "records", snap.Len(), "last_checked_at", snap.LastCheckedAt)
	return snap, nil
}

// Current returns a copy of the snapshot.
func (s *Store) Current() entity.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Len returns the number of records in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Len()
}

// Warm reports whether the warm-up cycle has completed.
func (s *Store) Warm() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warm
}

// Commit replaces the snapshot with candidate.
//
// Returns *GuardError, with no state change, when the prior snapshot is
// non-empty and the candidate holds fewer than half as many records.
// Returns *PersistError when the durable write or the backup failed; the
// in-memory snapshot has been replaced in that case.
func (s *Store) Commit(candidate entity.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(candidate); err != nil {
		slog.Warn("snapshot commit refused", "prior", err.Prior, "candidate", err.Candidate, "error", err)
		return err
	}

	next := candidate.Clone()
	next.LastCheckedAt = s.opts.Clock.Now()
	s.current = next

	return s.persistLocked()
}

// Verify applies the commit guard to candidate without committing it.
func (s *Store) Verify(candidate entity.Snapshot) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guardLocked(candidate); err != nil {
		return err
	}
	return nil
}

// guardLocked refuses a candidate with fewer than half the records of a
// non-empty prior snapshot. Caller must hold s.mu.
func (s *Store) guardLocked(candidate entity.Snapshot) *GuardError {
	prior := s.current.Len()
	if prior > 0 && candidate.Len()*2 < prior {
		return &GuardError{Prior: prior, Candidate: candidate.Len()}
	}
	return nil
}

// MarkWarm records that warm-up is complete. Idempotent.
func (s *Store) MarkWarm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warm {
		return nil
	}
	s.warm = true

	if err := os.MkdirAll(filepath.Dir(s.opts.WarmFlag), 0o755); err != nil {
		return &PersistError{Op: "warm-flag", Path: s.opts.WarmFlag, Err: err}
	}
	stamp := s.opts.Clock.Now().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(s.opts.WarmFlag, []byte(stamp), 0o644); err != nil {
		return &PersistError{Op: "warm-flag", Path: s.opts.WarmFlag, Err: err}
	}
	slog.Info("warm-up complete", "flag", s.opts.WarmFlag)
	return nil
}

// Reset moves the snapshot file aside and clears the warm-up marker, so the
// next cycle performs a silent warm-up load. Returns the path the snapshot
// was moved to, or "" when there was no snapshot file.
func (s *Store) Reset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := ""
	if _, err := os.Stat(s.opts.Path); err == nil {
		if err := os.MkdirAll(s.opts.BackupDir, 0o755); err != nil {
			return "", fmt.Errorf("reset snapshot: %w", err)
		}
		dest := s.backupName("backup_reset")
		if err := os.Rename(s.opts.Path, dest); err != nil {
			return "", fmt.Errorf("reset snapshot: %w", err)
		}
		moved = dest
	}
	if err := os.Remove(s.opts.WarmFlag); err != nil && !errors.Is(err, os.ErrNotExist) {
		return moved, fmt.Errorf("reset warm flag: %w", err)
	}

	s.current = entity.NewSnapshot()
	s.warm = false
	slog.Info("snapshot reset", "moved_to", moved)
	return moved, nil
}

// persistLocked writes the current snapshot and then its backup copy.
// Caller must hold s.mu.
func (s *Store) persistLocked() error {
	last := s.current.LastCheckedAt
	data, err := json.MarshalIndent(fileFormat{
		LastCheckedAt: &last,
		Records:       s.current.Records,
	}, "", "    ")
	if err != nil {
		return &PersistError{Op: "write", Path: s.opts.Path, Err: err}
	}

	if err := writeAtomic(s.opts.Path, data); err != nil {
		slog.Error("snapshot write failed", "path", s.opts.Path, "error", err)
		return &PersistError{Op: "write", Path: s.opts.Path, Err: err}
	}

	backup, err := s.writeBackup(data)
	if err != nil {
		slog.Error("snapshot backup failed", "dir", s.opts.BackupDir, "error", err)
		return &PersistError{Op: "backup", Path: s.opts.BackupDir, Err: err}
	}

	slog.Info("snapshot saved", "path", s.opts.Path, "records", s.current.Len(), "backup", backup)
	return nil
}

// writeAtomic writes data to a temporary file in the target directory and
// renames it over path, so readers see either the old or the new content.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// writeBackup creates a new backup file. Existing backups are never
// overwritten: a name collision within the same second gets a numeric suffix.
func (s *Store) writeBackup(data []byte) (string, error) {
	if err := os.MkdirAll(s.opts.BackupDir, 0o755); err != nil {
		return "", err
	}
	base := s.backupName("backup")
	name := base
	for i := 1; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s_%d.json", strings.TrimSuffix(base, ".json"), i)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return name, f.Close()
	}
}

func (s *Store) backupName(tag string) string {
	stem := strings.TrimSuffix(filepath.Base(s.opts.Path), filepath.Ext(s.opts.Path))
	stamp := s.opts.Clock.Now().Format(backupTimeLayout)
	return filepath.Join(s.opts.BackupDir, fmt.Sprintf("%s_%s_%s.json", stem, tag, stamp))
}
