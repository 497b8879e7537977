package backup

import (
	"fmt"
)

// DefaultKeepCount is the default number of backups retained per plugin.
const DefaultKeepCount = 3

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []BackupInfo
	Kept    int
}

// Prune removes old backups of plugin, keeping only the most recent keep.
// An empty plugin prunes each plugin's backups separately.
func (m *Manager) Prune(plugin string, keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	backups, err := m.List(plugin)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}
	seen := make(map[string]int)

	// Backups are already sorted newest first
	for _, backup := range backups {
		seen[backup.Plugin]++
		if seen[backup.Plugin] <= keep {
			result.Kept++
			continue
		}
		if err := m.Delete(backup.ID); err != nil {
			return nil, fmt.Errorf("failed to delete backup %s: %w", backup.ID, err)
		}
		result.Deleted = append(result.Deleted, backup)
	}

	return result, nil
}
