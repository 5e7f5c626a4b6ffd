// Package clientstate persists the alert client's local state (the user's
// location, the alert ledger, and the last poll's id set) in a TOML file.
package clientstate

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/couchcryptid/quake-alert-service/internal/alert"
	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// fileState is the on-disk layout.
type fileState struct {
	Notified   []string             `toml:"notified"`
	LastSeen   []string             `toml:"last_seen"`
	LastPollAt *time.Time           `toml:"last_poll_at,omitempty"`
	Location   *domain.UserLocation `toml:"location,omitempty"`
}

// File is a TOML-backed alert.StateStore. Writes go to a temporary file that
// is renamed over the target, so readers never observe a partial file.
type File struct {
	path string
	mu   sync.Mutex
}

var _ alert.StateStore = (*File)(nil)

// Open returns a File at path. The file need not exist yet.
func Open(path string) *File {
	return &File{path: path}
}

// DefaultPath returns $XDG_CONFIG_HOME/quake-alert/state.toml, or the
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quake-alert", "state.toml"), nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load reads the state. A missing file is an empty state.
func (f *File) Load() (alert.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// SetLocation validates and stores loc. Changing the location discards the
// last poll's id set so the next poll records a fresh baseline; the ledger
// is kept.
func (f *File) SetLocation(loc domain.UserLocation) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	return f.Update(func(s *alert.State) error {
		s.Location = &loc
		s.LastSeen = nil
		s.LastPollAt = time.Time{}
		return nil
	})
}

// ClearLocation removes the stored location. Alerts stop until a new one is set.
func (f *File) ClearLocation() error {
	return f.Update(func(s *alert.State) error {
		s.Location = nil
		s.LastSeen = nil
		s.LastPollAt = time.Time{}
		return nil
	})
}

// ResetLedger forgets every alerted id.
func (f *File) ResetLedger() error {
	return f.Update(func(s *alert.State) error {
		s.Ledger = nil
		return nil
	})
}

// Update loads the state, applies fn, and saves the result while holding the
// file lock. When fn fails the file is left as it was.
func (f *File) Update(fn func(*alert.State) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(&s); err != nil {
		return err
	}
	return f.save(s)
}

func (f *File) load() (alert.State, error) {
	var fsState fileState
	if _, err := toml.DecodeFile(f.path, &fsState); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return alert.State{}, nil
		}
		return alert.State{}, fmt.Errorf("read state %s: %w", f.path, err)
	}

	s := alert.State{
		Location: fsState.Location,
		Ledger:   fsState.Notified,
		LastSeen: fsState.LastSeen,
	}
	if fsState.LastPollAt != nil {
		s.LastPollAt = fsState.LastPollAt.UTC()
	}
	return s, nil
}

func (f *File) save(s alert.State) error {
	out := fileState{
		Notified: nonNil(s.Ledger),
		LastSeen: nonNil(s.LastSeen),
		Location: s.Location,
	}
	if !s.LastPollAt.IsZero() {
		t := s.LastPollAt.UTC()
		out.LastPollAt = &t
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
