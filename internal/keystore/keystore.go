// Package keystore persists resolved decryption keys keyed by the exact
// protection-header value they were resolved for. The backing file is a
// single human-editable JSON object, loaded fully at startup and rewritten
// on every addition so a crash loses at most the in-flight resolution.
package keystore

import (
	"encoding/json"
	"os"
	"sync"
)

// Logger receives non-fatal warnings.
type Logger interface {
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}

// Store maps protection-header text to "keyID:key" strings.
type Store struct {
	path   string
	logger Logger

	mu      sync.Mutex
	entries map[string]string
}

// Open loads the store at path. A missing, unreadable, or corrupt file
// degrades to an empty store with a warning; startup never fails on it.
func Open(path string, logger Logger) *Store {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &Store{
		path:    path,
		logger:  logger,
		entries: make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("keystore: unreadable %s: %v (starting empty)", path, err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.Warnf("keystore: corrupt %s: %v (starting empty)", path, err)
		s.entries = make(map[string]string)
	}
	return s
}

// Get returns the key recorded for header.
func (s *Store) Get(header string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.entries[header]
	return key, ok
}

// Put records header → key and writes the whole store through to disk in
// the same call. A fresh resolution for a known header overwrites.
func (s *Store) Put(header, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[header] = key
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Len reports the number of recorded entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
