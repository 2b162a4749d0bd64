// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package storage persists show state as one JSON file per key under a
// single data directory. Writes go through a temp file and an atomic
// rename, so readers observe either the previous version or the new one,
// never a torn record. Read-modify-write cycles on the same key are
// serialized by a per-key mutex; unrelated keys proceed independently.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/marionlk/stagehand/internal/logging"
)

// Well-known file keys. Field records live under the fields/ subdirectory,
// see FieldKey.
const (
	ConfigKey         = "config.json"
	ActionsKey        = "actions.json"
	ScheduleKey       = "schedule.json"
	NotifiedKey       = "notified_matches.json"
	PopupsKey         = "popups.json"
	ScheduledMatchKey = "scheduled_matches.json"
)

// FieldKey returns the storage key for a field record.
func FieldKey(fieldID int) string {
	return fmt.Sprintf("fields/field%d.json", fieldID)
}

// Store is a keyed JSON file store rooted at one directory.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore opens (creating if needed) a store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", baseDir, err)
	}
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// lockFor returns the mutex guarding one key, creating it on first use.
func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// path resolves a key to its on-disk location.
func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// Load reads the record stored under key into v. It returns false when the
// key is absent. A file that exists but does not decode is treated as
// absent: the corruption is logged and the caller proceeds with defaults,
// the next write repairs the file.
func (s *Store) Load(key string, v any) (bool, error) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()
	return s.loadLocked(key, v)
}

func (s *Store) loadLocked(key string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		logging.Warn().Str("key", key).Err(err).Msg("corrupt record treated as absent")
		return false, nil
	}
	return true, nil
}

// Save writes the record for key atomically, creating parent directories
// as needed.
func (s *Store) Save(key string, v any) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()
	return s.saveLocked(key, v)
}

func (s *Store) saveLocked(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp for %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// ErrSkipWrite signals from an Update callback that the record is
// unchanged and must not be written back. Update swallows it and returns
// nil.
var ErrSkipWrite = errors.New("storage: skip write")

// Update runs a read-modify-write cycle on key under its lock: v is loaded
// (left untouched when absent), fn mutates it, and the result is written
// back atomically. fn returning an error aborts the write; ErrSkipWrite
// aborts it without failing the update.
func (s *Store) Update(key string, v any, fn func(loaded bool) error) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	loaded, err := s.loadLocked(key, v)
	if err != nil {
		return err
	}
	if err := fn(loaded); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	return s.saveLocked(key, v)
}

// Delete removes the record for key. Deleting an absent key is not an
// error.
func (s *Store) Delete(key string) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a record is present for key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// ListFieldIDs returns the ids of all persisted field records, in no
// particular order.
func (s *Store) ListFieldIDs() ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "fields"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list fields: %w", err)
	}

	var ids []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var id int
		if n, err := fmt.Sscanf(entry.Name(), "field%d.json", &id); err == nil && n == 1 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
