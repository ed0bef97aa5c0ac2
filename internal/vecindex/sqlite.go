// Package vecindex implements the memory store's vector index collaborator
// on SQLite. With an embedder configured it ranks fragments by cosine
// similarity over stored embedding vectors; without one it falls back to
// FTS5 keyword matching.
package vecindex

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/agent-chat/internal/embedding"
	"github.com/rcliao/agent-chat/internal/memstore"
)

// Index is a SQLite-backed fragment index.
type Index struct {
	db       *sql.DB
	embedder embedding.Embedder

	mu      sync.Mutex
	entropy *rand.Rand
}

var _ memstore.VectorIndex = (*Index)(nil)

// New opens or creates the index database at dbPath. embedder may be nil,
// selecting keyword search.
func New(dbPath string, embedder embedding.Embedder) (*Index, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	idx := &Index{
		db:       db,
		embedder: embedder,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return idx, nil
}

func (x *Index) newID() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), x.entropy).String()
}

func (x *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fragments (
		id         TEXT PRIMARY KEY,
		parent_key TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		text       TEXT NOT NULL,
		metadata   TEXT,
		embedding  BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_fragments_parent ON fragments(parent_key);

	CREATE VIRTUAL TABLE IF NOT EXISTS fragments_fts USING fts5(
		text,
		content=fragments,
		content_rowid=rowid
	);
	`
	if _, err := x.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers for automatic sync
	x.db.Exec(`CREATE TRIGGER IF NOT EXISTS fragments_ai AFTER INSERT ON fragments BEGIN
		INSERT INTO fragments_fts(rowid, text) VALUES (new.rowid, new.text);
	END`)
	x.db.Exec(`CREATE TRIGGER IF NOT EXISTS fragments_ad AFTER DELETE ON fragments BEGIN
		INSERT INTO fragments_fts(fragments_fts, rowid, text) VALUES('delete', old.rowid, old.text);
	END`)

	return nil
}

// Add inserts a fragment batch inside one transaction: either the whole
// batch becomes searchable or none of it does.
func (x *Index) Add(ctx context.Context, frags []memstore.Fragment) error {
	if len(frags) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range frags {
		var metaJSON *string
		if len(f.Metadata) > 0 {
			b, err := json.Marshal(f.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			s := string(b)
			metaJSON = &s
		}

		var emb []byte
		if x.embedder != nil {
			vec, err := x.embedder.Embed(ctx, f.Text)
			if err != nil {
				return fmt.Errorf("embed fragment: %w", err)
			}
			emb = encodeVector(vec)
		}

		var seq int
		fmt.Sscanf(f.Metadata[memstore.MetaSeq], "%d", &seq)

		_, err = tx.ExecContext(ctx,
			`INSERT INTO fragments (id, parent_key, seq, text, metadata, embedding)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			x.newID(), f.Metadata[memstore.MetaParentKey], seq, f.Text, metaJSON, emb)
		if err != nil {
			return fmt.Errorf("insert fragment: %w", err)
		}
	}

	return tx.Commit()
}

// Search returns the top-k fragments for the query. Cosine ranking when an
// embedder is configured, FTS5 keyword matching otherwise. No matches is an
// empty slice, not an error.
func (x *Index) Search(ctx context.Context, query string, k int) ([]memstore.Fragment, error) {
	if k <= 0 {
		k = 4
	}
	if x.embedder != nil {
		return x.searchCosine(ctx, query, k)
	}
	return x.searchKeyword(ctx, query, k)
}

func (x *Index) searchCosine(ctx context.Context, query string, k int) ([]memstore.Fragment, error) {
	qvec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT text, metadata, embedding FROM fragments WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		frag  memstore.Fragment
		score float64
	}
	var candidates []scored

	for rows.Next() {
		var text string
		var metaJSON sql.NullString
		var emb []byte
		if err := rows.Scan(&text, &metaJSON, &emb); err != nil {
			return nil, err
		}
		frag, err := makeFragment(text, metaJSON)
		if err != nil {
			return nil, err
		}
		score := embedding.CosineSimilarity(qvec, decodeVector(emb))
		candidates = append(candidates, scored{frag: frag, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]memstore.Fragment, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.frag)
	}
	return out, nil
}

func (x *Index) searchKeyword(ctx context.Context, query string, k int) ([]memstore.Fragment, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT f.text, f.metadata
		 FROM fragments_fts fts
		 JOIN fragments f ON f.rowid = fts.rowid
		 WHERE fragments_fts MATCH ?
		 ORDER BY bm25(fragments_fts)
		 LIMIT ?`, match, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []memstore.Fragment
	for rows.Next() {
		var text string
		var metaJSON sql.NullString
		if err := rows.Scan(&text, &metaJSON); err != nil {
			return nil, err
		}
		frag, err := makeFragment(text, metaJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, frag)
	}
	return out, rows.Err()
}

// ftsQuery turns free text into an OR query of quoted terms so user input
// cannot hit FTS5 syntax errors.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t != "" {
			quoted = append(quoted, `"`+t+`"`)
		}
	}
	return strings.Join(quoted, " OR ")
}

func makeFragment(text string, metaJSON sql.NullString) (memstore.Fragment, error) {
	frag := memstore.Fragment{Text: text}
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &frag.Metadata); err != nil {
			return frag, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return frag, nil
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(vec embedding.Vector) []byte {
	buf := new(bytes.Buffer)
	for _, f := range vec {
		binary.Write(buf, binary.LittleEndian, math.Float32bits(f))
	}
	return buf.Bytes()
}

func decodeVector(b []byte) embedding.Vector {
	vec := make(embedding.Vector, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		vec = append(vec, math.Float32frombits(binary.LittleEndian.Uint32(b[i:i+4])))
	}
	return vec
}
