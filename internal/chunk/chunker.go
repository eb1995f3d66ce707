// Package chunk splits document text into overlapping passages suitable for
// embedding and retrieval. Splitting prefers sentence and paragraph
// boundaries and falls back to hard byte-window splitting when a single
// sentence exceeds the configured maximum size. Chunking is deterministic:
// the same text and config always produce the same boundaries, which keeps
// re-ingestion idempotent and cache keys stable.
package chunk

import (
	"fmt"
	"strings"

	perrors "github.com/pinpoint-search/pinpoint/internal/errors"
)

// Default chunking parameters, in bytes.
const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// Config controls chunk boundaries.
type Config struct {
	// MaxSize is the maximum chunk length in bytes.
	MaxSize int

	// Overlap is the target trailing context carried into the next chunk,
	// in bytes. Must be strictly smaller than MaxSize.
	Overlap int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{MaxSize: DefaultMaxSize, Overlap: DefaultOverlap}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return perrors.InvalidConfig("chunk max size must be positive, got %d", c.MaxSize)
	}
	if c.Overlap < 0 {
		return perrors.InvalidConfig("chunk overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.MaxSize {
		return perrors.InvalidConfig("chunk overlap %d must be smaller than max size %d", c.Overlap, c.MaxSize)
	}
	return nil
}

// Chunk is a bounded span of a document's text used as the retrieval unit.
type Chunk struct {
	// Seq is the 0-based position of the chunk within its document.
	Seq int

	// Start and End are byte offsets into the original text (End exclusive).
	Start int
	End   int

	// Text is the chunk content, text[Start:End].
	Text string
}

// ID derives the stable chunk identifier for a document.
// IDs sort in document order because the sequence is zero-padded.
func ID(docID string, seq int) string {
	return fmt.Sprintf("%s:%04d", docID, seq)
}

// Chunker splits text into overlapping chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, validating the configuration.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split splits text into ordered chunks. Every chunk is at most MaxSize
// bytes. Consecutive chunks overlap by up to Overlap bytes of trailing
// sentences; the final chunk may be shorter and has no trailing overlap.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	i := 0
	for i < len(sentences) {
		s := sentences[i]

		// A single sentence longer than MaxSize is hard-split into
		// byte windows; sentence alignment is not possible here.
		if s.end-s.start > c.cfg.MaxSize {
			chunks = c.hardSplit(text, s, chunks)
			i++
			continue
		}

		// Greedily pack whole sentences into this chunk.
		start := s.start
		end := s.end
		j := i + 1
		for j < len(sentences) && sentences[j].end-start <= c.cfg.MaxSize {
			end = sentences[j].end
			j++
		}
		chunks = append(chunks, Chunk{
			Seq:   len(chunks),
			Start: start,
			End:   end,
			Text:  text[start:end],
		})

		if j >= len(sentences) {
			break
		}

		// Re-include trailing sentences of this chunk that fit in the
		// overlap window. If none fit, the next chunk starts fresh.
		i = c.overlapStart(sentences, i, j, end)
	}

	return chunks
}

// hardSplit splits an over-long sentence into fixed byte windows with the
// configured overlap as stride reduction.
func (c *Chunker) hardSplit(text string, s span, chunks []Chunk) []Chunk {
	stride := c.cfg.MaxSize - c.cfg.Overlap
	for pos := s.start; pos < s.end; pos += stride {
		end := pos + c.cfg.MaxSize
		if end >= s.end {
			end = s.end
			chunks = append(chunks, Chunk{
				Seq:   len(chunks),
				Start: pos,
				End:   end,
				Text:  text[pos:end],
			})
			break
		}
		chunks = append(chunks, Chunk{
			Seq:   len(chunks),
			Start: pos,
			End:   end,
			Text:  text[pos:end],
		})
	}
	return chunks
}

// overlapStart returns the index of the first sentence of the next chunk.
// Walking backwards from the chunk end, sentences whose combined length
// stays within the overlap budget are re-included. At least one sentence of
// progress is always guaranteed.
func (c *Chunker) overlapStart(sentences []span, first, next int, chunkEnd int) int {
	if c.cfg.Overlap == 0 {
		return next
	}
	start := next
	for start > first+1 && chunkEnd-sentences[start-1].start <= c.cfg.Overlap {
		start--
	}
	return start
}

// span is a half-open byte range into the original text.
type span struct {
	start, end int
}

// splitSentences splits text into sentence spans. A sentence ends at a run
// of '.', '!' or '?' followed by whitespace, or at a paragraph break
// (blank line). Leading whitespace is excluded from each span so chunk text
// never starts mid-padding.
func splitSentences(text string) []span {
	var spans []span
	n := len(text)
	start := skipSpace(text, 0)

	for i := start; i < n; i++ {
		ch := text[i]

		// Paragraph break: blank line terminates the sentence.
		if ch == '\n' && i+1 < n && nextIsBlankLine(text, i) {
			if i > start {
				spans = appendSpan(spans, text, start, i)
			}
			start = skipSpace(text, i+1)
			i = start - 1
			continue
		}

		if ch == '.' || ch == '!' || ch == '?' {
			// Consume the full punctuation run.
			j := i
			for j+1 < n && (text[j+1] == '.' || text[j+1] == '!' || text[j+1] == '?') {
				j++
			}
			// Sentence boundary only when followed by whitespace or EOF.
			if j+1 >= n || isSpace(text[j+1]) {
				spans = appendSpan(spans, text, start, j+1)
				start = skipSpace(text, j+1)
				i = start - 1
				continue
			}
			i = j
		}
	}

	if start < n {
		spans = appendSpan(spans, text, start, n)
	}
	return spans
}

// appendSpan adds [start,end) after trimming trailing whitespace, dropping
// empty spans.
func appendSpan(spans []span, text string, start, end int) []span {
	for end > start && isSpace(text[end-1]) {
		end--
	}
	if end > start {
		spans = append(spans, span{start: start, end: end})
	}
	return spans
}

func skipSpace(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// nextIsBlankLine reports whether the newline at position i is followed by
// an empty (whitespace-only) line.
func nextIsBlankLine(text string, i int) bool {
	j := i + 1
	for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\r') {
		j++
	}
	return j < len(text) && text[j] == '\n'
}
