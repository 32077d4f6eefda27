package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the polling progress persisted between runs.
type State struct {
	// Cursors maps a channel id to the id of the newest message seen there.
	Cursors      map[string]string `json:"cursors"`
	LastPollUnix int64             `json:"last_poll_unix"`
	Processed    map[string]int64  `json:"processed"`
}

func newState() State {
	return State{Cursors: map[string]string{}, Processed: map[string]int64{}}
}

// JSONStore keeps State in a single JSON file next to the compile work dirs.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load returns the saved polling progress. A missing file is a fresh
// start: no cursors, so every channel begins with its first-poll window.
func (s *JSONStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newState()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse state: %w", err)
	}
	if state.Cursors == nil {
		state.Cursors = map[string]string{}
	}
	if state.Processed == nil {
		state.Processed = map[string]int64{}
	}
	return state, nil
}

// Save writes state atomically, dropping processed ids older than a week.
func (s *JSONStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Processed == nil {
		state.Processed = map[string]int64{}
	}
	prune(state.Processed, time.Now().Add(-7*24*time.Hour).Unix())
	data, _ := json.MarshalIndent(state, "", "  ")
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func prune(m map[string]int64, threshold int64) {
	for k, ts := range m {
		if ts < threshold {
			delete(m, k)
		}
	}
}
