package memstore

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts SplitOptions
		want int
	}{
		{"empty", "", SplitOptions{}, 0},
		{"whitespace only", "  \n\t ", SplitOptions{}, 0},
		{"short text single fragment", "hello world", SplitOptions{Size: 40}, 1},
		{"exactly at size", strings.Repeat("a", 40), SplitOptions{Size: 40}, 1},
		{"two lines over size", "aaaaaaaaaa\nbbbbbbbbbb", SplitOptions{Size: 12}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.opts)
			if len(got) != tt.want {
				t.Errorf("Split returned %d fragments %q, want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestSplitPrefersLineBoundaries(t *testing.T) {
	text := "first line\nsecond line\nthird line"
	frags := Split(text, SplitOptions{Size: 24})
	if len(frags) < 2 {
		t.Fatalf("Split = %q, want multiple fragments", frags)
	}
	for _, f := range frags {
		if strings.HasPrefix(f, " ") || strings.HasSuffix(f, "\n") {
			t.Errorf("fragment %q not trimmed", f)
		}
	}
	// No line should be cut mid-word when it fits under the target.
	if frags[0] != "first line\nsecond line" && frags[0] != "first line" {
		t.Errorf("frags[0] = %q, want a whole-line prefix", frags[0])
	}
}

func TestSplitCoversAllText(t *testing.T) {
	text := "alpha beta\ngamma delta\nepsilon zeta\neta theta"
	frags := Split(text, SplitOptions{Size: 16})
	joined := strings.Join(frags, "\n")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q lost during split", word)
		}
	}
}

func TestSplitHardSplitsOverlongLine(t *testing.T) {
	line := strings.Repeat("x", 100)
	frags := Split(line, SplitOptions{Size: 30})
	if len(frags) < 3 {
		t.Fatalf("Split = %d fragments, want at least 3", len(frags))
	}
	for _, f := range frags {
		if len(f) > 30 {
			t.Errorf("fragment length %d exceeds target 30", len(f))
		}
	}
}

func TestSplitOverlongLineRuneBoundaries(t *testing.T) {
	line := strings.Repeat("日本語", 40) // 3 bytes per rune
	frags := Split(line, SplitOptions{Size: 32})
	for _, f := range frags {
		if !strings.HasPrefix(f, "日") {
			t.Errorf("fragment %q starts mid-rune", f)
		}
		if len(f) > 32 {
			t.Errorf("fragment length %d exceeds target", len(f))
		}
	}
}

func TestSplitDefaultSize(t *testing.T) {
	text := strings.Repeat("word ", 200) // ~1000 chars, no newlines
	frags := Split(text, SplitOptions{})
	if len(frags) < 2 {
		t.Fatalf("Split = %d fragments, want multiple at default size", len(frags))
	}
	for _, f := range frags {
		if len(f) > DefaultFragmentSize {
			t.Errorf("fragment length %d exceeds default %d", len(f), DefaultFragmentSize)
		}
	}
}
