package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func UserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "vasort", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vasort", "config.yaml"), nil
}

func ProjectConfigPath(cwd string) string {
	return filepath.Join(cwd, "vasort.yaml")
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); strings.TrimSpace(xdg) != "" {
		return filepath.Join(xdg, "vasort")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./.vasort-state"
	}
	return filepath.Join(home, ".local", "state", "vasort")
}

func ExpandPath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(strings.TrimSpace(raw))
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~/"))
	}

	return filepath.Clean(expanded), nil
}

// ResolveStateFile joins a state-dir-relative file name with the expanded
// state dir. Absolute names win as-is.
func ResolveStateFile(stateDir string, name string) (string, error) {
	expandedName, err := ExpandPath(name)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expandedName) {
		return expandedName, nil
	}

	expandedDir, err := ExpandPath(stateDir)
	if err != nil {
		return "", err
	}

	return filepath.Clean(filepath.Join(expandedDir, expandedName)), nil
}

// Paths carries every filesystem location a run touches, resolved once from
// the storage section so callers never re-derive them.
type Paths struct {
	LibraryDir     string
	StateDir       string
	StateFile      string
	DoneFile       string
	TempDir        string
	DiagnosticsDir string
	LogFile        string
}

func ResolvePaths(storage Storage) (Paths, error) {
	libraryDir, err := ExpandPath(storage.LibraryDir)
	if err != nil {
		return Paths{}, err
	}
	stateDir, err := ExpandPath(storage.StateDir)
	if err != nil {
		return Paths{}, err
	}
	stateFile, err := ResolveStateFile(storage.StateDir, storage.StateFile)
	if err != nil {
		return Paths{}, err
	}
	doneFile, err := ResolveStateFile(storage.StateDir, storage.DoneFile)
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		LibraryDir:     libraryDir,
		StateDir:       stateDir,
		StateFile:      stateFile,
		DoneFile:       doneFile,
		TempDir:        filepath.Join(stateDir, "tmp"),
		DiagnosticsDir: filepath.Join(stateDir, "diagnostics"),
		LogFile:        filepath.Join(stateDir, "vasort.log"),
	}, nil
}
