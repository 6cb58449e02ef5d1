package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sliink/tuner/internal/model"
)

const (
	backupSource  = "backup_manager"
	backupPattern = "backup_*.json"
)

// BackupManager writes plugin snapshots to bundle files and manages retention
type BackupManager struct {
	dir      string
	registry *PluginRegistry
	bus      *EventBus
	logger   zerolog.Logger
	now      func() time.Time
	BaseComponent
}

// NewBackupManager creates a backup manager writing into dir
func NewBackupManager(dir string, registry *PluginRegistry, bus *EventBus, logger zerolog.Logger) *BackupManager {
	return &BackupManager{
		dir:           dir,
		registry:      registry,
		bus:           bus,
		logger:        ComponentLogger(logger, backupSource),
		now:           time.Now,
		BaseComponent: NewBaseComponent(backupSource, "Backup Manager"),
	}
}

// Initialize creates the backup directory
func (m *BackupManager) Initialize() bool {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		m.logger.Error().Err(err).Str("dir", m.dir).Msg("cannot create backup directory")
		m.SetStatus(model.StatusError)
		return false
	}
	m.SetStatus(model.StatusInitialized)
	return true
}

// Start begins backup manager operation
func (m *BackupManager) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop halts backup manager operation
func (m *BackupManager) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

// Directory returns the backup directory
func (m *BackupManager) Directory() string {
	return m.dir
}

// CreateBackup snapshots every registered plugin, enabled or not, and writes
// the bundle to a new file. A plugin whose Backup fails is left out.
func (m *BackupManager) CreateBackup(cfg *model.Config) (string, error) {
	m.publish(model.EventBackupStarted, map[string]interface{}{
		"backup_dir": m.dir,
	})
	m.logger.Info().Msg("creating backup")

	now := m.now()
	bundle := model.Bundle{
		Timestamp: now.Format(time.RFC3339Nano),
		Config:    cfg.Clone(),
		Plugins:   make(map[string]model.Snapshot),
	}

	for _, p := range m.registry.GetAll() {
		var snapshot model.Snapshot
		err := safeCall(func() error {
			var backupErr error
			snapshot, backupErr = p.Backup()
			return backupErr
		})
		if err != nil {
			m.logger.Warn().Err(err).Str("plugin", p.Name()).Msg("plugin backup failed")
			continue
		}
		if snapshot.IsEmpty() {
			continue
		}
		bundle.Plugins[p.Name()] = snapshot
	}

	path, err := m.writeBundle(now, &bundle)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to write backup")
		return "", err
	}

	m.logger.Info().
		Str("backup_file", filepath.Base(path)).
		Int("plugins", len(bundle.Plugins)).
		Msg("backup created")
	m.publish(model.EventBackupCompleted, map[string]interface{}{
		"backup_file":       path,
		"plugins_backed_up": len(bundle.Plugins),
	})
	return path, nil
}

// writeBundle writes to a temp file and renames it to a name no other
// bundle uses
func (m *BackupManager) writeBundle(now time.Time, bundle *model.Bundle) (string, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", &BackupIOError{Path: m.dir, Err: err}
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", &BackupIOError{Path: m.dir, Err: fmt.Errorf("encode bundle: %w", err)}
	}

	tmp, err := os.CreateTemp(m.dir, ".backup-*.tmp")
	if err != nil {
		return "", &BackupIOError{Path: m.dir, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", &BackupIOError{Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &BackupIOError{Path: tmpName, Err: err}
	}

	path := filepath.Join(m.dir, backupFileName(now))
	for {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		now = now.Add(time.Nanosecond)
		path = filepath.Join(m.dir, backupFileName(now))
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", &BackupIOError{Path: path, Err: err}
	}
	return path, nil
}

// GetLatestBackup returns the newest bundle path
func (m *BackupManager) GetLatestBackup() (string, bool) {
	backups := m.ListBackups(1)
	if len(backups) == 0 {
		return "", false
	}
	return backups[0].Path, true
}

// ListBackups returns up to limit bundles, newest first. A limit of zero or
// less lists every bundle.
func (m *BackupManager) ListBackups(limit int) []model.BackupInfo {
	matches, err := filepath.Glob(filepath.Join(m.dir, backupPattern))
	if err != nil {
		m.logger.Warn().Err(err).Msg("cannot list backups")
		return []model.BackupInfo{}
	}

	backups := make([]model.BackupInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		backups = append(backups, model.BackupInfo{
			Path:     path,
			Name:     info.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Modified.Equal(backups[j].Modified) {
			return backups[i].Modified.After(backups[j].Modified)
		}
		return backups[i].Name > backups[j].Name
	})

	if limit > 0 && len(backups) > limit {
		backups = backups[:limit]
	}
	return backups
}

// CleanupOldBackups deletes the oldest bundles until maxBackups remain and
// returns how many were deleted
func (m *BackupManager) CleanupOldBackups(maxBackups int) int {
	if maxBackups < 0 {
		return 0
	}

	backups := m.ListBackups(0)
	if len(backups) <= maxBackups {
		return 0
	}

	deleted := 0
	for _, b := range backups[maxBackups:] {
		if err := os.Remove(b.Path); err != nil {
			m.logger.Warn().Err(err).Str("backup_file", b.Name).Msg("failed to delete backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
	return deleted
}

// LoadBundle reads and parses a bundle file
func LoadBundle(path string) (*model.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bundle model.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	if bundle.Plugins == nil {
		bundle.Plugins = make(map[string]model.Snapshot)
	}
	return &bundle, nil
}

func (m *BackupManager) publish(eventType model.EventType, data map[string]interface{}) {
	m.bus.Publish(NewEvent(eventType, backupSource, data))
}

func backupFileName(t time.Time) string {
	return fmt.Sprintf("backup_%s_%09d.json", t.Format("20060102_150405"), t.Nanosecond())
}
