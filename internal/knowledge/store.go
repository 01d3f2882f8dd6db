package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/beatsync/beatsync/internal/log"
)

// searchTimeout bounds a single vector search so a slow index never
// stalls a turn; the caller degrades to an ungrounded answer on timeout.
const searchTimeout = 10 * time.Second

// Querier defines the database operations the Store needs. The interface
// lives with the consumer so tests can inject a fake without a database.
type Querier interface {
	// SearchChunks returns the topK chunks nearest to the query vector,
	// most similar first.
	SearchChunks(ctx context.Context, query pgvector.Vector, topK int32) ([]Chunk, error)

	// InsertChunk stores one chunk with its embedding.
	InsertChunk(ctx context.Context, chunk Chunk) error
}

// Store implements the vector index adapter: Embed converts text to a
// vector with the configured embedder, Search runs nearest-neighbor
// lookup against the chunks table.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store. Production wiring passes NewPgxQuerier(pool);
// tests pass a fake Querier and embedder.
func New(queries Querier, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if queries == nil {
		return nil, errors.New("querier is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Store{queries: queries, embedder: embedder, logger: logger}, nil
}

// Embed converts text into its vector representation.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// Search returns the topK chunks most similar to the embedding, ordered
// by similarity descending.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]Chunk, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(embedding) == 0 {
		return nil, errors.New("empty query embedding")
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	chunks, err := s.queries.SearchChunks(queryCtx, pgvector.NewVector(embedding), int32(topK)) // #nosec G115 -- validated positive
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}

	s.logger.Debug("vector search completed", "topK", topK, "hits", len(chunks))
	return chunks, nil
}

// Index embeds text and stores it as a chunk for the given source.
// Used by the indexing CLI path, not by turn processing.
func (s *Store) Index(ctx context.Context, text, sourceRef, title string) error {
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return err
	}
	err = s.queries.InsertChunk(ctx, Chunk{
		Text:      text,
		Embedding: vec,
		SourceRef: sourceRef,
		Title:     title,
	})
	if err != nil {
		return fmt.Errorf("inserting chunk for %q: %w", sourceRef, err)
	}
	s.logger.Debug("indexed chunk", "source_ref", sourceRef, "length", len(text))
	return nil
}

// PgxQuerier implements Querier on a pgx connection pool.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier wraps a connection pool. The pool is owned by the caller.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

// SearchChunks runs a cosine-distance nearest-neighbor query.
func (q *PgxQuerier) SearchChunks(ctx context.Context, query pgvector.Vector, topK int32) ([]Chunk, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT content, embedding, source_ref, title
		   FROM chunks
		  ORDER BY embedding <=> $1
		  LIMIT $2`,
		query, topK)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c   Chunk
			vec pgvector.Vector
		)
		if err := rows.Scan(&c.Text, &vec, &c.SourceRef, &c.Title); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// InsertChunk stores one chunk row.
func (q *PgxQuerier) InsertChunk(ctx context.Context, chunk Chunk) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO chunks (content, embedding, source_ref, title)
		 VALUES ($1, $2, $3, $4)`,
		chunk.Text, pgvector.NewVector(chunk.Embedding), chunk.SourceRef, chunk.Title)
	if err != nil {
		return fmt.Errorf("inserting chunk: %w", err)
	}
	return nil
}
