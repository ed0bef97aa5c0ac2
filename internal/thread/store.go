// Package thread persists chat-thread descriptors: identity, title, creation
// time, and the opaque serialized agent state from the last completed
// exchange.
package thread

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/agent-chat/internal/filestore"
)

// Thread is one persisted conversation session. State holds the
// codec-encoded agent state blob; it stays null until the first exchange
// completes.
type Thread struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt string          `json:"created_at"`
	State     json.RawMessage `json:"state"`
}

// DefaultTitle is assigned to freshly created threads.
const DefaultTitle = "New Chat"

// Store keeps threads in a filestore namespace indexed by id, title and
// created_at. The state blob is deliberately excluded from the index: it can
// be large and listing never needs it.
type Store struct {
	kv *filestore.Store[Thread]
}

// NewStore opens the thread store rooted at dir.
func NewStore(dir string) (*Store, error) {
	kv, err := filestore.New[Thread](dir, "id", "title", "created_at")
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv}, nil
}

// Create stores a fresh thread with a generated id, the default title, and
// no state.
func (s *Store) Create() (Thread, error) {
	t := Thread{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.kv.SetMany([]filestore.Pair[Thread]{{Key: t.ID, Record: t}}); err != nil {
		return Thread{}, err
	}
	return t, nil
}

// Get loads one thread. A missing id surfaces as *filestore.NotFoundError.
func (s *Store) Get(id string) (Thread, error) {
	threads, err := s.kv.GetMany([]string{id})
	if err != nil {
		return Thread{}, err
	}
	return threads[0], nil
}

// Put overwrites a thread record wholesale.
func (s *Store) Put(t Thread) error {
	return s.kv.SetMany([]filestore.Pair[Thread]{{Key: t.ID, Record: t}})
}

// Delete removes a thread's record and index entry.
func (s *Store) Delete(id string) error {
	return s.kv.DeleteMany([]string{id})
}

// List returns the index: thread id -> {id, title, created_at}.
func (s *Store) List() (map[string]map[string]any, error) {
	return s.kv.Index()
}

// Exists reports whether a record file for id is present, using directory
// enumeration as ground truth rather than the index.
func (s *Store) Exists(id string) (bool, error) {
	keys, err := s.kv.ListKeys(id)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == id {
			return true, nil
		}
	}
	return false, nil
}

// Rebuild re-derives the secondary index from the record files.
func (s *Store) Rebuild() error {
	return s.kv.RebuildIndex()
}
