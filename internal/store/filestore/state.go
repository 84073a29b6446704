package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/registry"
)

const (
	CurrentStateVersion = "1"
)

// State is the on-disk registry snapshot.
type State struct {
	Version    string                        `json:"version"`
	UpdatedAt  time.Time                     `json:"updated_at"`
	Signatures map[string]registry.Signature `json:"signatures"`
}

// NewState creates a new empty state
func NewState() *State {
	return &State{
		Version:    CurrentStateVersion,
		Signatures: make(map[string]registry.Signature),
	}
}

// LoadState reads the snapshot at path. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Version != CurrentStateVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q (want %q)", state.Version, CurrentStateVersion)
	}
	if state.Signatures == nil {
		state.Signatures = make(map[string]registry.Signature)
	}
	return &state, nil
}

// Save rewrites the whole snapshot atomically.
func (s *State) Save(path string) error {
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
	if s.Signatures == nil {
		s.Signatures = make(map[string]registry.Signature)
	}
	s.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, fileutil.EnsureTrailingNewlineBytes(data))
}
