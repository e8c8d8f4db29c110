// Package stablekv implements the station's C1 layer: a log-structured,
// typed persistent key-value map that survives process restarts (standing
// in for the host platform's stable memory, which the production station
// gets for free from the IC runtime but a standalone Go process must
// provide itself).
//
// Grounded on core/ledger.go's NewLedger/OpenLedger: an append-only WAL is
// replayed on startup, and Snapshot compacts it to bound replay time when a
// caller invokes it (nothing in the station runs it periodically). Every
// mutation is first appended to the WAL, then applied to the in-memory
// map — the same write-ahead discipline the teacher's ledger uses for
// blocks.
package stablekv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// walEntry is one WAL record, written as a newline-terminated JSON object
// (not length-prefixed). JSON already satisfies
// "unknown trailing fields on read are ignored, missing fields default" for
// struct values, so walEntry wraps json.Marshal/Unmarshal directly rather
// than hand-rolling a binary format.
type walEntry[K comparable, V any] struct {
	Op    string `json:"op"` // "set" or "del"
	Key   K      `json:"key"`
	Value V      `json:"value,omitempty"`
}

// Store is a generic, WAL-backed, in-memory-cached persistent map.
type Store[K comparable, V any] struct {
	mu   sync.RWMutex
	name string
	log  *logrus.Entry

	data map[K]V

	walPath string
	wal     *os.File
}

// Open creates or reopens a Store whose WAL lives at walPath, replaying any
// existing entries. dir is created if missing.
func Open[K comparable, V any](dir, name string, log *logrus.Entry) (*Store[K, V], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stablekv: mkdir %s: %w", dir, err)
	}
	walPath := filepath.Join(dir, name+".wal")

	s := &Store[K, V]{
		name:    name,
		log:     log.WithField("map", name),
		data:    make(map[K]V),
		walPath: walPath,
	}

	if err := s.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(walPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("stablekv: open WAL %s: %w", walPath, err)
	}
	s.wal = f
	s.log.WithField("entries", len(s.data)).Info("stable map ready")
	return s, nil
}

func (s *Store[K, V]) replay() error {
	f, err := os.Open(s.walPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stablekv: replay %s: %w", s.walPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var entry walEntry[K, V]
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("stablekv: replay %s: corrupt entry: %w", s.walPath, err)
		}
		switch entry.Op {
		case "set":
			s.data[entry.Key] = entry.Value
		case "del":
			delete(s.data, entry.Key)
		}
	}
	return scanner.Err()
}

func (s *Store[K, V]) append(entry walEntry[K, V]) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("stablekv: marshal: %w", err)
	}
	b = append(b, '\n')
	if _, err := s.wal.Write(b); err != nil {
		return fmt.Errorf("stablekv: append to %s: %w", s.walPath, err)
	}
	return s.wal.Sync()
}

// Get returns the value for key and whether it was present.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Exists reports whether key is present.
func (s *Store[K, V]) Exists(key K) bool {
	_, ok := s.Get(key)
	return ok
}

// Insert writes key -> value, returning the previous value if any. The WAL
// append happens before the in-memory map is updated so a crash between the
// two leaves the map consistent with the log's committed state after the
// next replay.
func (s *Store[K, V]) Insert(key K, value V) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.append(walEntry[K, V]{Op: "set", Key: key, Value: value}); err != nil {
		var zero V
		return zero, false, err
	}
	prev, existed := s.data[key]
	s.data[key] = value
	return prev, existed, nil
}

// Remove deletes key, returning the removed value if any.
func (s *Store[K, V]) Remove(key K) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data[key]
	if !existed {
		return prev, false, nil
	}
	if err := s.append(walEntry[K, V]{Op: "del", Key: key}); err != nil {
		return prev, false, err
	}
	delete(s.data, key)
	return prev, true, nil
}

// List returns every value currently stored, in unspecified order.
func (s *Store[K, V]) List() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.data))
	for _, v := range s.data {
		out = append(out, v)
	}
	return out
}

// Keys returns every key currently stored, in unspecified order.
func (s *Store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]K, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

// Len returns the number of entries currently stored.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close releases the underlying WAL file handle.
func (s *Store[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wal == nil {
		return nil
	}
	return s.wal.Close()
}

// Snapshot truncates the WAL and rewrites it as a sequence of "set"
// entries reflecting the current in-memory state, bounding future replay
// time — the Go-process analogue of the host platform's pre-upgrade stable
// memory serialization (spec.md §4.1).
func (s *Store[K, V]) Snapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.walPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("stablekv: snapshot %s: %w", s.walPath, err)
	}
	w := bufio.NewWriter(f)
	for k, v := range s.data {
		b, err := json.Marshal(walEntry[K, V]{Op: "set", Key: k, Value: v})
		if err != nil {
			f.Close()
			return fmt.Errorf("stablekv: snapshot marshal: %w", err)
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("stablekv: snapshot write: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.wal.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.walPath); err != nil {
		return fmt.Errorf("stablekv: snapshot rename: %w", err)
	}
	newWAL, err := os.OpenFile(s.walPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	s.wal = newWAL
	s.log.WithField("entries", len(s.data)).Info("snapshot written")
	return nil
}
