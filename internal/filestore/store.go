// Package filestore provides a disk-backed key-value store with a maintained
// secondary index for cheap listing.
//
// Layout under the store root: one JSON file per record named by its key,
// plus __index__.json mapping key -> projected fields. The index is a
// best-effort shadow of the record set: it is rewritten after every record
// write, but not transactionally with it. A crash between the two writes
// leaves them out of sync; directory enumeration (ListKeys) is ground truth
// and RebuildIndex repairs the shadow from it.
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// indexFile is the reserved name of the secondary index within a store root.
const indexFile = "__index__.json"

// NotFoundError reports a key with no stored record.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("filestore: key not found: %s", e.Key)
}

// Pair is one key/record pair for SetMany.
type Pair[T any] struct {
	Key    string
	Record T
}

// Store is a durable mapping from string key to records of type T.
// Safe for concurrent use within one process; concurrent writer processes
// are not supported.
type Store[T any] struct {
	root        string
	indexFields []string

	mu sync.Mutex // guards the index read-modify-write sequence
}

// New opens (creating if needed) a store rooted at dir. indexFields declares
// the projection kept in the secondary index; with none declared every index
// entry is an empty object.
func New[T any](dir string, indexFields ...string) (*Store[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &Store[T]{root: dir, indexFields: indexFields}

	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		if err := writeJSON(s.indexPath(), map[string]map[string]any{}); err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
	}
	return s, nil
}

func (s *Store[T]) indexPath() string {
	return filepath.Join(s.root, indexFile)
}

func (s *Store[T]) recordPath(key string) string {
	return filepath.Join(s.root, key)
}

// validKey reports whether key may name a record file. The reserved index
// name and anything that could resolve outside the store root are rejected;
// keys arrive from HTTP path segments, so this is a trust boundary.
func validKey(key string) bool {
	if key == "" || key == indexFile {
		return false
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return false
	}
	return true
}

// GetMany reads the record for each key. A single missing key fails the
// whole batch with *NotFoundError; there is no partial-success contract.
func (s *Store[T]) GetMany(keys []string) ([]T, error) {
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		if !validKey(key) {
			return nil, &NotFoundError{Key: key}
		}
		data, err := os.ReadFile(s.recordPath(key))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &NotFoundError{Key: key}
			}
			return nil, fmt.Errorf("read record %s: %w", key, err)
		}
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SetMany writes each record to its own file, then folds its projection into
// the index. Each pair costs one full index read-modify-write; large batches
// pay O(n) index rewrites.
func (s *Store[T]) SetMany(pairs []Pair[T]) error {
	for _, p := range pairs {
		if !validKey(p.Key) {
			return fmt.Errorf("invalid record key %q", p.Key)
		}
		data, err := json.Marshal(p.Record)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", p.Key, err)
		}
		if err := os.WriteFile(s.recordPath(p.Key), data, 0o644); err != nil {
			return fmt.Errorf("write record %s: %w", p.Key, err)
		}

		proj, err := s.project(data)
		if err != nil {
			return fmt.Errorf("project record %s: %w", p.Key, err)
		}
		if err := s.updateIndex(func(idx map[string]map[string]any) {
			idx[p.Key] = proj
		}); err != nil {
			return fmt.Errorf("index record %s: %w", p.Key, err)
		}
	}
	return nil
}

// DeleteMany removes each key's record file and index entry. Deleting an
// absent key is an error.
func (s *Store[T]) DeleteMany(keys []string) error {
	for _, key := range keys {
		if !validKey(key) {
			return &NotFoundError{Key: key}
		}
		if err := os.Remove(s.recordPath(key)); err != nil {
			if os.IsNotExist(err) {
				return &NotFoundError{Key: key}
			}
			return fmt.Errorf("remove record %s: %w", key, err)
		}
		if err := s.updateIndex(func(idx map[string]map[string]any) {
			delete(idx, key)
		}); err != nil {
			return fmt.Errorf("deindex record %s: %w", key, err)
		}
	}
	return nil
}

// ListKeys enumerates record keys fresh from the directory, optionally
// filtered by prefix. Unordered; not a snapshot.
func (s *Store[T]) ListKeys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list store dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == indexFile {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// Index returns the full secondary index as of the last completed write.
// After a crash it may disagree with ListKeys; see RebuildIndex.
func (s *Store[T]) Index() (map[string]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex()
}

// RebuildIndex re-derives the index from the record files, treating the
// directory as ground truth. Intended as an operator repair step after a
// crash left the index stale.
func (s *Store[T]) RebuildIndex() error {
	keys, err := s.ListKeys("")
	if err != nil {
		return err
	}

	idx := make(map[string]map[string]any, len(keys))
	for _, key := range keys {
		data, err := os.ReadFile(s.recordPath(key))
		if err != nil {
			return fmt.Errorf("read record %s: %w", key, err)
		}
		proj, err := s.project(data)
		if err != nil {
			return fmt.Errorf("project record %s: %w", key, err)
		}
		idx[key] = proj
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.indexPath(), idx)
}

// project extracts the declared index fields from a record's JSON form.
// Fields absent from the record are simply omitted.
func (s *Store[T]) project(record []byte) (map[string]any, error) {
	proj := make(map[string]any, len(s.indexFields))
	if len(s.indexFields) == 0 {
		return proj, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, err
	}
	for _, f := range s.indexFields {
		if v, ok := fields[f]; ok {
			proj[f] = v
		}
	}
	return proj, nil
}

func (s *Store[T]) updateIndex(mutate func(map[string]map[string]any)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	mutate(idx)
	return writeJSON(s.indexPath(), idx)
}

func (s *Store[T]) readIndex() (map[string]map[string]any, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var idx map[string]map[string]any
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if idx == nil {
		idx = map[string]map[string]any{}
	}
	return idx, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
