package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	authFile = "auth.json"
)

// AuthState is the identity produced by the phone sign-in flow. murmur only
// stores and forwards it.
type AuthState struct {
	PhoneNumber string    `json:"phone"`
	AccessToken string    `json:"token,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Phone returns the stored phone identity. A nil state is an anonymous
// caller.
func (a *AuthState) Phone() string {
	if a == nil {
		return ""
	}
	return a.PhoneNumber
}

// Token returns the stored bearer token.
func (a *AuthState) Token() string {
	if a == nil {
		return ""
	}
	return a.AccessToken
}

// LoadAuthState loads auth.json from the target directory.
// Returns nil, nil when nobody signed in.
func (m *Manager) LoadAuthState(overrideDir string) (*AuthState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, authFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading auth state: %w", err)
	}

	state := &AuthState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing auth state: %w", err)
	}

	return state, nil
}

// SaveAuthState writes auth.json, creating the directory if needed. The
// file holds a credential and is only readable by the owner.
func (m *Manager) SaveAuthState(state *AuthState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil auth state")
	}
	if state.PhoneNumber == "" {
		return errors.New("auth state requires a phone identity")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling auth state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, authFile), data, 0o600); err != nil {
		return fmt.Errorf("writing auth state: %w", err)
	}

	return nil
}

// ClearAuthState removes auth.json. Returns nil if it doesn't exist.
func (m *Manager) ClearAuthState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return nil
	}

	if err := os.Remove(filepath.Join(dir, authFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing auth state: %w", err)
	}

	return nil
}
