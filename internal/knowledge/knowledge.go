// Package knowledge provides the vector index adapter backed by
// PostgreSQL + pgvector: embedding text and nearest-neighbor search over
// indexed chunks. The response core treats chunks as read-only input.
package knowledge

// Chunk is a retrievable unit of source text with a precomputed
// embedding. SourceRef identifies the origin document; Title is its
// human-readable name (may be empty).
type Chunk struct {
	Text      string
	Embedding []float32
	SourceRef string
	Title     string
}

// VectorDimension is the embedding size of the chunks table.
// gemini-embedding-001 supports truncation to 768 dimensions; the value
// must match db/migrations.
const VectorDimension = 768
