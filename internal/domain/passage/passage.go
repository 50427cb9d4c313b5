// Package passage defines the unit of retrieval: a bounded span of corpus
// text stored with its embedding and metadata.
package passage

import (
	"fmt"
	"time"
)

// Passage is a chunk of source text with its embedding and search metadata.
// (SourceID, ChunkIndex) uniquely identifies a passage within the corpus.
type Passage struct {
	sourceID     string
	sourceTitle  string
	sourcePath   string
	sectionTitle string
	chunkIndex   int
	text         string
	charCount    int
	embedding    []float32
	keywords     []string
	updatedAt    time.Time
}

// New creates a passage, deriving charCount from the text.
func New(
	sourceID, sourceTitle, sourcePath, sectionTitle string,
	chunkIndex int, text string,
	embedding []float32, keywords []string,
	updatedAt time.Time,
) (Passage, error) {
	if sourceID == "" {
		return Passage{}, fmt.Errorf("source id is required")
	}
	if chunkIndex < 0 {
		return Passage{}, fmt.Errorf("chunk index must be non-negative, got %d", chunkIndex)
	}
	if text == "" {
		return Passage{}, fmt.Errorf("text is required")
	}
	return Passage{
		sourceID:     sourceID,
		sourceTitle:  sourceTitle,
		sourcePath:   sourcePath,
		sectionTitle: sectionTitle,
		chunkIndex:   chunkIndex,
		text:         text,
		charCount:    len([]rune(text)),
		embedding:    embedding,
		keywords:     keywords,
		updatedAt:    updatedAt,
	}, nil
}

// Reconstruct rebuilds a passage from storage without validation.
func Reconstruct(
	sourceID, sourceTitle, sourcePath, sectionTitle string,
	chunkIndex int, text string, charCount int,
	embedding []float32, keywords []string,
	updatedAt time.Time,
) Passage {
	return Passage{
		sourceID:     sourceID,
		sourceTitle:  sourceTitle,
		sourcePath:   sourcePath,
		sectionTitle: sectionTitle,
		chunkIndex:   chunkIndex,
		text:         text,
		charCount:    charCount,
		embedding:    embedding,
		keywords:     keywords,
		updatedAt:    updatedAt,
	}
}

// ID returns the storage identity "<sourceID>:<chunkIndex>".
func (p Passage) ID() string {
	return fmt.Sprintf("%s:%d", p.sourceID, p.chunkIndex)
}

// SourceID returns the owning source document identifier.
func (p Passage) SourceID() string { return p.sourceID }

// SourceTitle returns the source document title.
func (p Passage) SourceTitle() string { return p.sourceTitle }

// SourcePath returns the source file path, if known.
func (p Passage) SourcePath() string { return p.sourcePath }

// SectionTitle returns the section heading the chunk was cut from, if any.
func (p Passage) SectionTitle() string { return p.sectionTitle }

// ChunkIndex returns the position of this chunk within its source.
func (p Passage) ChunkIndex() int { return p.chunkIndex }

// Text returns the passage text.
func (p Passage) Text() string { return p.text }

// CharCount returns the rune length of the text.
func (p Passage) CharCount() int { return p.charCount }

// Embedding returns the passage embedding vector.
func (p Passage) Embedding() []float32 { return p.embedding }

// Keywords returns the search tokens extracted at ingestion time.
func (p Passage) Keywords() []string { return p.keywords }

// UpdatedAt returns the last ingestion time.
func (p Passage) UpdatedAt() time.Time { return p.updatedAt }
