package update

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
)

// BinaryReplacer safely replaces the client executable with rollback support
type BinaryReplacer struct {
	currentPath string
	backupPath  string
	stagingPath string
	verifyArgs  []string
	log         zerolog.Logger
}

// NewBinaryReplacer creates a new binary replacer
func NewBinaryReplacer(currentPath string) *BinaryReplacer {
	return &BinaryReplacer{
		currentPath: currentPath,
		backupPath:  currentPath + ".backup",
		stagingPath: currentPath + ".new",
		verifyArgs:  []string{"version"},
		log:         log.WithComponent("replacer"),
	}
}

// WithVerifyArgs sets the arguments a replacement binary must exit zero with.
func (r *BinaryReplacer) WithVerifyArgs(args ...string) *BinaryReplacer {
	r.verifyArgs = args
	return r
}

// Replace replaces the current binary with newBinary. The payload is copied
// next to the target first so the final rename never crosses filesystems.
func (r *BinaryReplacer) Replace(newBinary string) error {
	// 1. Stage the payload beside the current binary
	if err := copyFile(newBinary, r.stagingPath, 0755); err != nil {
		return fmt.Errorf("failed to stage new binary: %w", err)
	}

	// 2. Create backup of current binary
	if err := r.createBackup(); err != nil {
		_ = os.Remove(r.stagingPath)
		return fmt.Errorf("failed to create backup: %w", err)
	}

	// 3. Swap in the staged binary (atomic rename)
	if err := os.Rename(r.stagingPath, r.currentPath); err != nil {
		_ = os.Remove(r.stagingPath)
		_ = r.Rollback()
		return fmt.Errorf("failed to replace binary: %w", err)
	}

	// 4. Verify new binary works
	if err := r.verifyBinary(r.currentPath); err != nil {
		r.log.Warn().Err(err).Str("path", r.currentPath).Msg("New binary failed verification, rolling back")
		if rbErr := r.Rollback(); rbErr != nil {
			return fmt.Errorf("new binary verification failed: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("new binary verification failed: %w", err)
	}

	// 5. Remove backup on success
	_ = os.Remove(r.backupPath)
	r.log.Info().Str("path", r.currentPath).Msg("Binary replaced")

	return nil
}

// Rollback restores the backup if update fails
func (r *BinaryReplacer) Rollback() error {
	if _, err := os.Stat(r.backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", r.backupPath)
	}

	if err := os.Rename(r.backupPath, r.currentPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}

	if err := os.Chmod(r.currentPath, 0755); err != nil {
		return fmt.Errorf("failed to set permissions on restored binary: %w", err)
	}

	return nil
}

// createBackup creates a backup of the current binary
func (r *BinaryReplacer) createBackup() error {
	info, err := os.Stat(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to stat current binary: %w", err)
	}
	return copyFile(r.currentPath, r.backupPath, info.Mode().Perm())
}

// verifyBinary runs the binary with the verify arguments
func (r *BinaryReplacer) verifyBinary(path string) error {
	cmd := exec.Command(path, r.verifyArgs...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("binary verification failed: %w", err)
	}
	return nil
}

// copyFile copies src to dst with the given permissions, removing dst on failure.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	// OpenFile honours the umask; apply perm explicitly.
	return os.Chmod(dst, perm)
}
