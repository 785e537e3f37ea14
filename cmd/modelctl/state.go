package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"model_settings/internal/engine"
)

// selectionState is a category/id pair as stored on disk
type selectionState struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

// State carries what the server does not store between invocations
type State struct {
	// Mode is the category of the last default; "cloud" keeps the managed backend selected
	Mode       string          `json:"mode,omitempty"`
	CloudModel string          `json:"cloud_model,omitempty"`
	Pending    *selectionState `json:"pending,omitempty"`
	// Suppressed lists provider rows switched off locally while the server still prefers them
	Suppressed []int64 `json:"suppressed,omitempty"`
}

// LoadState reads path; a missing file is an empty state
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	return &st, nil
}

// Save writes the state atomically
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".modelctl-*")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *State) pending() *engine.PendingDefault {
	if s.Pending == nil {
		return nil
	}
	return &engine.PendingDefault{Category: engine.Category(s.Pending.Category), ID: s.Pending.ID}
}

// capture copies the engine state worth keeping
func (s *State) capture(eng *engine.Engine) {
	if p := eng.Pending(); p != nil {
		s.Pending = &selectionState{Category: string(p.Category), ID: p.ID}
	} else {
		s.Pending = nil
	}

	s.Mode = string(eng.Mode())
	s.Suppressed = eng.Suppressed()
	if eng.CloudPrefer() {
		s.CloudModel = eng.CloudModel()
	}
}
