// Package dotdir manages the .murmur/ and ~/.murmur directories.
//
// The directory holds config.toml, the stored sign-in identity (auth.json)
// and the default SQLite history database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the murmur directory.
	dirName = ".murmur"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .murmur/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if missing
//  2. Local ./.murmur/ dir
//  3. Home ~/.murmur/ dir
//
// If none is found it returns "" so read-only callers fall back to defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating murmur directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if m.localDirExists() {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		return dir, nil
	}

	return "", nil
}

// Ensure resolves the directory like Target but creates ~/.murmur/ when
// nothing exists yet. Commands that write state use it.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir = filepath.Join(home, dirName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating murmur directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDirExists checks whether a .murmur/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
