package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"restocrm/internal/config"

	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "documents_"
	snapshotLayout = "20060102_150405.000"
	defaultEvery   = 24 * time.Hour
)

// BackupService writes periodic VACUUM INTO snapshots of the SQLite
// document store and prunes the ones older than the retention window.
type BackupService struct {
	store  *SQLiteStore
	cfg    config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(store *SQLiteStore, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "backup").Logger()
	return &BackupService{store: store, cfg: cfg, logger: &l, now: time.Now}
}

func (s *BackupService) interval() time.Duration {
	if s.cfg.Schedule == "" {
		return defaultEvery
	}
	d, err := time.ParseDuration(s.cfg.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Str("schedule", s.cfg.Schedule).Msg("bad backup schedule, using 24h")
		return defaultEvery
	}
	return d
}

// Start blocks until ctx is done, taking a snapshot right away and then on
// every tick.
func (s *BackupService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("backups disabled")
		return
	}
	every := s.interval()
	s.logger.Info().Dur("interval", every).Str("dir", s.cfg.StoragePath).Msg("backups enabled")

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := s.PerformBackup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("backup failed")
		}
		s.CleanupOldBackups()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PerformBackup writes a snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	var docs, collections int
	row := s.store.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT collection) FROM documents`)
	if err := row.Scan(&docs, &collections); err != nil {
		return "", fmt.Errorf("count documents: %w", err)
	}

	path := filepath.Join(s.cfg.StoragePath, snapshotPrefix+s.now().Format(snapshotLayout)+".db")
	// VACUUM INTO не принимает параметры
	stmt := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(path, "'", "''"))
	if _, err := s.store.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", s.store.Path(), err)
	}

	s.logger.Info().
		Str("path", path).
		Int("documents", docs).
		Int("collections", collections).
		Msg("snapshot written")
	return path, nil
}

// snapshotTime reads the timestamp from a snapshot file name; files that
// don't follow the naming scheme fall back to their modification time.
func snapshotTime(entry os.DirEntry) (time.Time, bool) {
	name := entry.Name()
	if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), ".db")
	if t, err := time.ParseInLocation(snapshotLayout, stamp, time.Local); err == nil {
		return t, true
	}
	info, err := entry.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (s *BackupService) CleanupOldBackups() {
	if s.cfg.RetentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory")
		return
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	for _, entry := range entries {
		taken, ok := snapshotTime(entry)
		if !ok || !taken.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StoragePath, entry.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("remove old snapshot")
			continue
		}
		s.logger.Info().Str("file", entry.Name()).Msg("old snapshot removed")
	}
}
