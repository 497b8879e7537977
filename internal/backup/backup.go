// Package backup keeps copies of plugin files taken before an update
// replaces them, so that an update can be rolled back.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/state"
)

// ErrNotFound is returned when no backup matches the requested ID.
var ErrNotFound = errors.New("backup not found")

// Backup describes one saved plugin file.
type Backup struct {
	ID            string    `json:"id"`
	Plugin        string    `json:"plugin"`
	Version       string    `json:"version"`
	InstallPath   string    `json:"install_path"`
	CreatedAt     time.Time `json:"created_at"`
	ParleyVersion string    `json:"parley_version"`
}

// BackupInfo provides summary information about a backup for listing.
type BackupInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Plugin    string    `json:"plugin" yaml:"plugin"`
	Version   string    `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager handles backup operations. Each backup is a metadata file
// <id>.json next to the saved payload <id>.data.
type Manager struct {
	backupDir     string
	parleyVersion string
	// keep is how many backups per plugin Backup retains.
	keep int

	// now is overridden in tests.
	now func() time.Time
}

// NewManager creates a backup manager storing backups in backupDir.
func NewManager(backupDir, version string) *Manager {
	return &Manager{
		backupDir:     backupDir,
		parleyVersion: version,
		keep:          DefaultKeepCount,
		now:           time.Now,
	}
}

// WithKeep sets how many backups per plugin are retained after each Backup.
func (m *Manager) WithKeep(keep int) *Manager {
	m.keep = keep
	return m
}

// BackupDir returns the backup directory path.
func (m *Manager) BackupDir() string {
	return m.backupDir
}

// Backup saves p's current file and prunes older backups of p. A plugin
// whose file does not exist yet has nothing to save.
func (m *Manager) Backup(p state.PluginState) error {
	if _, err := m.Create(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if _, err := m.Prune(p.Name, m.keep); err != nil {
		logger := log.WithComponent("backup")
		logger.Warn().Err(err).Str("plugin", p.Name).Msg("Unable to prune old backups")
	}
	return nil
}

// Create copies the file at p.InstallPath into the backup directory.
func (m *Manager) Create(p state.PluginState) (*Backup, error) {
	if p.InstallPath == "" {
		return nil, fmt.Errorf("plugin %s has no install path: %w", p.Name, os.ErrNotExist)
	}

	src, err := os.Open(p.InstallPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p.InstallPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := m.now()
	backup := &Backup{
		ID:            fmt.Sprintf("%s-%s", p.Name, now.UTC().Format("20060102-150405.000000")),
		Plugin:        p.Name,
		Version:       p.Version,
		InstallPath:   p.InstallPath,
		CreatedAt:     now,
		ParleyVersion: m.parleyVersion,
	}

	dst, err := os.Create(m.dataPath(backup.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(m.dataPath(backup.ID))
		return nil, fmt.Errorf("failed to copy plugin file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}
	if err := os.WriteFile(m.metaPath(backup.ID), data, 0644); err != nil {
		_ = os.Remove(m.dataPath(backup.ID))
		return nil, fmt.Errorf("failed to write backup metadata: %w", err)
	}

	return backup, nil
}

// List returns the backups of plugin, or of every plugin when plugin is
// empty, sorted by creation time (newest first).
func (m *Manager) List(plugin string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		backup, err := m.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if plugin != "" && backup.Plugin != plugin {
			continue
		}

		info, err := os.Stat(m.dataPath(backup.ID))
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			ID:        backup.ID,
			Plugin:    backup.Plugin,
			Version:   backup.Version,
			CreatedAt: backup.CreatedAt,
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Get retrieves a backup by ID.
func (m *Manager) Get(id string) (*Backup, error) {
	data, err := os.ReadFile(m.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read backup metadata: %w", err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("failed to parse backup metadata: %w", err)
	}

	return &backup, nil
}

// Latest returns the newest backup of plugin.
func (m *Manager) Latest(plugin string) (*Backup, error) {
	backups, err := m.List(plugin)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, fmt.Errorf("no backups of %s: %w", plugin, ErrNotFound)
	}
	return m.Get(backups[0].ID)
}

// Restore copies a backup over the plugin's install path and records the
// restored version through recorder, which may be nil.
func (m *Manager) Restore(id string, recorder state.Recorder) (*Backup, error) {
	backup, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(backup.InstallPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create plugin directory: %w", err)
	}

	staged := backup.InstallPath + ".restore"
	if err := copyFile(m.dataPath(id), staged); err != nil {
		return nil, fmt.Errorf("failed to stage backup: %w", err)
	}
	if err := os.Rename(staged, backup.InstallPath); err != nil {
		_ = os.Remove(staged)
		return nil, fmt.Errorf("failed to restore %s: %w", backup.Plugin, err)
	}

	if recorder != nil {
		if err := recorder.RecordInstall(backup.Plugin, backup.Version); err != nil {
			return backup, fmt.Errorf("restored %s but failed to record version: %w", backup.Plugin, err)
		}
	}

	return backup, nil
}

// Delete removes a backup by ID.
func (m *Manager) Delete(id string) error {
	if _, err := os.Stat(m.metaPath(id)); os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	if err := os.Remove(m.metaPath(id)); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	if err := os.Remove(m.dataPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	return nil
}

func (m *Manager) metaPath(id string) string {
	return filepath.Join(m.backupDir, id+".json")
}

func (m *Manager) dataPath(id string) string {
	return filepath.Join(m.backupDir, id+".data")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
