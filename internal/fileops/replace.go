package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	statFile   = os.Stat
	renameFile = os.Rename
	removeFile = os.Remove
	writeFile  = os.WriteFile
)

// ReplaceFileSafely swaps tempPath in for targetPath, keeping the previous
// target content as a rollback backup until the swap succeeds.
func ReplaceFileSafely(tempPath string, targetPath string) error {
	temp := strings.TrimSpace(tempPath)
	target := strings.TrimSpace(targetPath)
	if err := checkReplaceArgs(temp, target); err != nil {
		return err
	}

	backup := target + ".vasort.bak"
	if err := clearStaleBackup(backup); err != nil {
		return err
	}

	hadTarget, err := moveAside(target, backup)
	if err != nil {
		return err
	}

	if err := renameFile(temp, target); err != nil {
		if hadTarget {
			if rollbackErr := renameFile(backup, target); rollbackErr != nil {
				return fmt.Errorf("swap in %q failed (%v) and rollback failed: %w", temp, err, rollbackErr)
			}
		}
		return fmt.Errorf("swap in %q for %q: %w", temp, target, err)
	}

	if hadTarget {
		if err := removeFile(backup); err != nil {
			return fmt.Errorf("drop backup %q: %w", backup, err)
		}
	}
	return nil
}

func checkReplaceArgs(temp, target string) error {
	if temp == "" || target == "" {
		return fmt.Errorf("replace needs both temp and target paths")
	}
	if temp == target {
		return fmt.Errorf("replace temp and target paths must differ")
	}
	info, err := statFile(temp)
	if err != nil {
		return fmt.Errorf("stat temp %q: %w", temp, err)
	}
	if info.IsDir() {
		return fmt.Errorf("temp path %q is a directory", temp)
	}
	return nil
}

func clearStaleBackup(backup string) error {
	_, err := statFile(backup)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat backup %q: %w", backup, err)
	}
	if err := removeFile(backup); err != nil {
		return fmt.Errorf("remove stale backup %q: %w", backup, err)
	}
	return nil
}

// moveAside parks the current target at backup and reports whether a target
// existed at all.
func moveAside(target, backup string) (bool, error) {
	_, err := statFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat target %q: %w", target, err)
	}
	if err := renameFile(target, backup); err != nil {
		return false, fmt.Errorf("move target to backup: %w", err)
	}
	return true, nil
}

// WriteFileAtomic writes data to path so that readers never observe a
// partially written file: the bytes land in a sibling temp file first and are
// swapped in with ReplaceFileSafely.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	target := strings.TrimSpace(path)
	if target == "" {
		return fmt.Errorf("atomic write target path is empty")
	}
	temp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".tmp")
	if err := writeFile(temp, data, perm); err != nil {
		return fmt.Errorf("write temp for %q: %w", target, err)
	}
	if err := ReplaceFileSafely(temp, target); err != nil {
		_ = removeFile(temp)
		return err
	}
	return nil
}
