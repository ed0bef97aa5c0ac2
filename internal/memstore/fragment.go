package memstore

import "strings"

// DefaultFragmentSize is the target fragment length in characters.
const DefaultFragmentSize = 400

// SplitOptions configures fragment splitting.
type SplitOptions struct {
	// Size is the target fragment length in characters. Zero means
	// DefaultFragmentSize.
	Size int
}

// Split cuts text into adjacent fragments of roughly opts.Size characters,
// preferring line boundaries. Text at or under the target size yields exactly
// one fragment; empty or whitespace-only text yields none.
func Split(text string, opts SplitOptions) []string {
	size := opts.Size
	if size <= 0 {
		size = DefaultFragmentSize
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var frags []string
	var current []string
	curLen := 0

	flush := func() {
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			frags = append(frags, t)
		}
		current = nil
		curLen = 0
	}

	for _, line := range lines {
		// A single line longer than the target gets hard-split on rune
		// boundaries rather than producing an oversized fragment.
		if len(line) > size {
			flush()
			for _, piece := range hardSplit(line, size) {
				frags = append(frags, piece)
			}
			continue
		}
		if curLen+len(line)+1 > size && len(current) > 0 {
			flush()
		}
		current = append(current, line)
		curLen += len(line) + 1 // +1 for newline
	}
	flush()

	return frags
}

// hardSplit breaks a single overlong line into size-bounded pieces without
// cutting multi-byte runes.
func hardSplit(line string, size int) []string {
	var pieces []string
	runes := []rune(line)
	start := 0
	curBytes := 0
	for i, r := range runes {
		rl := len(string(r))
		if curBytes+rl > size && i > start {
			p := strings.TrimSpace(string(runes[start:i]))
			if p != "" {
				pieces = append(pieces, p)
			}
			start = i
			curBytes = 0
		}
		curBytes += rl
	}
	if start < len(runes) {
		p := strings.TrimSpace(string(runes[start:]))
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
