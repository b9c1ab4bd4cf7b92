package services

import "strings"

// Chunker splits long documents into overlapping pieces sized for the
// embedding model. Lengths are measured in runes so Cyrillic text is not
// penalized by its UTF-8 byte width.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
	separators   []string
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		separators:   []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " ", ""},
	}
}

// Split breaks text into chunks of at most ChunkSize runes, preferring to cut
// on the strongest separator present, with ChunkOverlap runes carried between
// adjacent chunks. Whitespace-only pieces are dropped.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := c.split(text, c.separators)
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Chunker) split(text string, separators []string) []string {
	if runeLen(text) <= c.ChunkSize {
		return []string{text}
	}

	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = splitRunes(text, c.ChunkSize)
	} else {
		parts = splitKeepSep(text, sep)
	}

	var out []string
	var pending []string
	pendingLen := 0
	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, strings.Join(pending, ""))
		pending, pendingLen = c.carryOverlap(pending)
	}
	for _, part := range parts {
		pl := runeLen(part)
		if pl > c.ChunkSize {
			flush()
			out = append(out, c.split(part, rest)...)
			pending, pendingLen = nil, 0
			continue
		}
		if pendingLen+pl > c.ChunkSize {
			flush()
		}
		pending = append(pending, part)
		pendingLen += pl
	}
	if len(pending) > 0 {
		out = append(out, strings.Join(pending, ""))
	}
	return out
}

// carryOverlap keeps the trailing pieces of a flushed chunk, up to
// ChunkOverlap runes, as the head of the next chunk.
func (c *Chunker) carryOverlap(pieces []string) ([]string, int) {
	if c.ChunkOverlap == 0 {
		return nil, 0
	}
	total := 0
	i := len(pieces)
	for i > 0 && total+runeLen(pieces[i-1]) <= c.ChunkOverlap {
		i--
		total += runeLen(pieces[i])
	}
	kept := make([]string, len(pieces)-i)
	copy(kept, pieces[i:])
	return kept, total
}

func splitKeepSep(text, sep string) []string {
	raw := strings.Split(text, sep)
	out := make([]string, 0, len(raw))
	for i, part := range raw {
		if i < len(raw)-1 {
			part += sep
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
