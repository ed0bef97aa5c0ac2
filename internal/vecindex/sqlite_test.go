package vecindex

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/agent-chat/internal/embedding"
	"github.com/rcliao/agent-chat/internal/memstore"
)

// axisEmbedder maps known words onto axes so similarity is deterministic.
type axisEmbedder struct{}

func (axisEmbedder) Dims() int { return 3 }

func (axisEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	vec := embedding.Vector{0, 0, 0}
	text = strings.ToLower(text)
	if strings.Contains(text, "cat") {
		vec[0] = 1
	}
	if strings.Contains(text, "dog") {
		vec[1] = 1
	}
	if strings.Contains(text, "fish") {
		vec[2] = 1
	}
	return vec, nil
}

func newTestIndex(t *testing.T, e embedding.Embedder) *Index {
	t.Helper()
	idx, err := New(filepath.Join(t.TempDir(), "index.db"), e)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func frag(text, parent, seq string) memstore.Fragment {
	return memstore.Fragment{
		Text: text,
		Metadata: map[string]string{
			memstore.MetaParentKey: parent,
			memstore.MetaSeq:       seq,
		},
	}
}

func TestKeywordSearch(t *testing.T) {
	idx := newTestIndex(t, nil)
	ctx := context.Background()

	err := idx.Add(ctx, []memstore.Fragment{
		frag("the quick brown fox", "p1", "0"),
		frag("jumps over the lazy dog", "p1", "1"),
		frag("pack my box with jugs", "p2", "0"),
	})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}

	hits, err := idx.Search(ctx, "lazy dog", 4)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("Search returned no hits")
	}
	if !strings.Contains(hits[0].Text, "lazy dog") {
		t.Errorf("top hit = %q, want the lazy dog fragment", hits[0].Text)
	}
	if hits[0].Metadata[memstore.MetaParentKey] != "p1" {
		t.Errorf("top hit parent = %q, want p1", hits[0].Metadata[memstore.MetaParentKey])
	}
}

func TestKeywordSearchNoMatch(t *testing.T) {
	idx := newTestIndex(t, nil)
	ctx := context.Background()

	if err := idx.Add(ctx, []memstore.Fragment{frag("hello world", "p1", "0")}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	hits, err := idx.Search(ctx, "zebra", 4)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search = %v, want no hits", hits)
	}
}

func TestKeywordSearchHostileInput(t *testing.T) {
	idx := newTestIndex(t, nil)
	ctx := context.Background()

	if err := idx.Add(ctx, []memstore.Fragment{frag("hello world", "p1", "0")}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	// FTS5 operators and quotes must not produce a syntax error.
	for _, q := range []string{`"unbalanced`, "NOT AND OR", "a*b(c)", "   "} {
		if _, err := idx.Search(ctx, q, 4); err != nil {
			t.Errorf("Search(%q) error: %v", q, err)
		}
	}
}

func TestCosineSearch(t *testing.T) {
	idx := newTestIndex(t, axisEmbedder{})
	ctx := context.Background()

	err := idx.Add(ctx, []memstore.Fragment{
		frag("my cat sleeps all day", "p1", "0"),
		frag("the dog barks at night", "p2", "0"),
		frag("fish swim in the tank", "p3", "0"),
	})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}

	hits, err := idx.Search(ctx, "tell me about my cat", 1)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Search = %d hits, want 1", len(hits))
	}
	if hits[0].Metadata[memstore.MetaParentKey] != "p1" {
		t.Errorf("top hit = %q, want the cat fragment", hits[0].Text)
	}
}

func TestSearchDefaultK(t *testing.T) {
	idx := newTestIndex(t, nil)
	ctx := context.Background()

	frags := make([]memstore.Fragment, 0, 8)
	for i := 0; i < 8; i++ {
		frags = append(frags, frag("repeated banana text", "p1", "0"))
	}
	if err := idx.Add(ctx, frags); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	hits, err := idx.Search(ctx, "banana", 0)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 4 {
		t.Errorf("Search with k=0 = %d hits, want default 4", len(hits))
	}
}

func TestAddEmptyBatch(t *testing.T) {
	idx := newTestIndex(t, nil)
	if err := idx.Add(context.Background(), nil); err != nil {
		t.Fatalf("Add(nil) error: %v", err)
	}
}

func TestReopenKeepsFragments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	ctx := context.Background()

	idx, err := New(path, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := idx.Add(ctx, []memstore.Fragment{frag("durable content", "p1", "0")}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	idx.Close()

	idx2, err := New(path, nil)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer idx2.Close()

	hits, err := idx2.Search(ctx, "durable", 4)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("Search after reopen = %d hits, want 1", len(hits))
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := embedding.Vector{0.5, -1.25, 3}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("decoded %d floats, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello world", `"hello" OR "world"`},
		{`say "hi"`, `"say" OR "hi"`},
		{"", ""},
		{`"`, ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
