package synth

import (
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Chunker splits prompt text into pieces that each fit within the carrier's
// playable-asset bound. Splits happen at sentence boundaries so chunk joins
// are inaudible; a single oversized sentence is hard-split on whitespace as
// a last resort.
type Chunker struct {
	tokenizer *sentences.DefaultSentenceTokenizer
	maxChars  int
}

// NewChunker creates a chunker with the given per-chunk character bound.
func NewChunker(maxChars int) (*Chunker, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &Chunker{tokenizer: tokenizer, maxChars: maxChars}, nil
}

// Split returns the text as one or more ordered chunks. Empty input yields
// no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, sent := range c.tokenizer.Tokenize(text) {
		s := strings.TrimSpace(sent.Text)
		if s == "" {
			continue
		}

		if len(s) > c.maxChars {
			flush()
			chunks = append(chunks, c.hardSplit(s)...)
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(s) > c.maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	flush()

	return chunks
}

// hardSplit breaks a single oversized sentence on word boundaries.
func (c *Chunker) hardSplit(s string) []string {
	var chunks []string
	var current strings.Builder

	for _, word := range strings.Fields(s) {
		if current.Len() > 0 && current.Len()+1+len(word) > c.maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
