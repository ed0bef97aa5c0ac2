// Package memstore implements the two-tier long-term memory store: small
// searchable fragments live in a vector index, full parent documents live in
// a filestore namespace, and every fragment carries a back-reference to the
// parent it was split from.
package memstore

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/agent-chat/internal/filestore"
)

// MetaParentKey is the fragment metadata field holding the owning parent
// document's store key.
const MetaParentKey = "parent_key"

// MetaSeq is the fragment metadata field holding the fragment's position
// within its parent.
const MetaSeq = "seq"

// Fragment is a short span of text derived from a parent document. Fragments
// exist only inside the vector index; they are never stored standalone.
type Fragment struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorIndex is the external similarity-search collaborator. Implementations
// own fragment storage entirely.
type VectorIndex interface {
	// Add makes the fragments searchable. All-or-nothing per batch.
	Add(ctx context.Context, frags []Fragment) error
	// Search returns the top-k most similar fragments. An empty result is
	// a valid "no relevant memory" answer, not an error.
	Search(ctx context.Context, query string, k int) ([]Fragment, error)
}

// ParentDocument is the complete text of one ingested source.
type ParentDocument struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	AddedAt  string            `json:"added_at"`
}

// Store is an append-only document memory store.
type Store struct {
	parents *filestore.Store[ParentDocument]
	index   VectorIndex
	split   SplitOptions

	mu      sync.Mutex
	entropy *rand.Rand
}

// New creates a memory store persisting parent documents under dir and
// delegating fragment search to index. fragmentSize <= 0 selects the default.
func New(dir string, index VectorIndex, fragmentSize int) (*Store, error) {
	parents, err := filestore.New[ParentDocument](dir)
	if err != nil {
		return nil, fmt.Errorf("open parent store: %w", err)
	}
	return &Store{
		parents: parents,
		index:   index,
		split:   SplitOptions{Size: fragmentSize},
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (s *Store) newKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// AddDocument ingests one source: the parent record is written first so a
// concurrent reader resolving a fresh fragment hit never sees a dangling
// parent_key, then the derived fragments are pushed to the vector index in a
// single batch. If fragment insertion fails the parent record is rolled back
// and the document is not a committed member of the store.
func (s *Store) AddDocument(ctx context.Context, text string, metadata map[string]string) (string, error) {
	key := s.newKey()

	doc := ParentDocument{
		Text:     text,
		Metadata: metadata,
		AddedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.parents.SetMany([]filestore.Pair[ParentDocument]{{Key: key, Record: doc}}); err != nil {
		return "", fmt.Errorf("write parent document: %w", err)
	}

	pieces := Split(text, s.split)
	frags := make([]Fragment, 0, len(pieces))
	for i, piece := range pieces {
		meta := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			meta[k] = v
		}
		meta[MetaParentKey] = key
		meta[MetaSeq] = strconv.Itoa(i)
		frags = append(frags, Fragment{Text: piece, Metadata: meta})
	}

	if err := s.index.Add(ctx, frags); err != nil {
		// Roll back so the half-ingested document is not observable.
		if delErr := s.parents.DeleteMany([]string{key}); delErr != nil {
			return "", fmt.Errorf("index fragments: %v (parent rollback also failed: %w)", err, delErr)
		}
		return "", fmt.Errorf("index fragments: %w", err)
	}

	return key, nil
}

// Search returns the vector index's top-k fragments verbatim: no re-ranking
// and no dedup by parent, so two fragments of one document may both appear.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	frags, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}
	return frags, nil
}

// Resolve loads the full parent document a fragment points back to.
func (s *Store) Resolve(ctx context.Context, parentKey string) (ParentDocument, error) {
	docs, err := s.parents.GetMany([]string{parentKey})
	if err != nil {
		return ParentDocument{}, err
	}
	return docs[0], nil
}

// Parents exposes the underlying parent-document store, e.g. for index
// repair from the CLI.
func (s *Store) Parents() *filestore.Store[ParentDocument] {
	return s.parents
}
