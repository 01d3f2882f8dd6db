// Package retrieval implements the grounding pipeline for question
// turns: hypothetical-answer generation (HyDE), embedding, vector
// search, source aggregation, bounded context construction, and citation
// extraction.
//
// The stages are strictly sequential; each consumes the previous stage's
// output. Every stage failure is local: the pipeline logs it, returns an
// empty Result, and the turn proceeds ungrounded. Nothing here is ever
// fatal to a turn.
package retrieval

import (
	"context"

	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/knowledge"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/provider"
)

// Generator is the model operation used for hypothetical answers.
// *provider.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (string, error)
}

// Index is the vector index adapter. *knowledge.Store satisfies it.
type Index interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Search(ctx context.Context, embedding []float32, topK int) ([]knowledge.Chunk, error)
}

// Source is a document-level grouping of chunks sharing an origin,
// ordered by the first matching chunk.
type Source struct {
	Ref    string
	Title  string
	Chunks []knowledge.Chunk
}

// Result is the pipeline output consumed by the prompt assembler and the
// streaming responder. Both fields are empty when retrieval degraded.
type Result struct {
	Context   string
	Citations []conversation.Citation
}

// Config holds the pipeline tuning values.
type Config struct {
	// Model is the provider-qualified model for HyDE generation.
	Model string

	// Temperature for HyDE generation.
	Temperature float32

	// TopK is the number of chunks requested from the index.
	TopK int

	// ContextBudget is the maximum number of context characters.
	ContextBudget int
}

// Pipeline runs the grounding stages for one turn. No state survives a
// turn: embeddings, hypothetical answers, and results are never cached.
type Pipeline struct {
	generator Generator
	index     Index
	cfg       Config
	logger    log.Logger
}

// New creates a Pipeline.
func New(generator Generator, index Index, cfg Config, logger log.Logger) *Pipeline {
	return &Pipeline{generator: generator, index: index, cfg: cfg, logger: logger}
}

const hydePrompt = `Write a short, plausible answer to the user's question as if you already knew the facts.
Do not mention uncertainty or that you are guessing. Two or three sentences.`

// Run executes the full pipeline for a query. It returns an empty Result
// on any stage failure or empty result set; the caller answers
// ungrounded in that case.
func (p *Pipeline) Run(ctx context.Context, query string) Result {
	// Stage 1: hypothetical answer. Embedding the model's guess retrieves
	// better neighbors than embedding a short raw query.
	hypothetical, err := p.generator.Generate(ctx, provider.Request{
		Model:       p.cfg.Model,
		System:      hydePrompt,
		Temperature: p.cfg.Temperature,
		Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: query},
		},
	})
	if err != nil {
		p.logger.Warn("hypothetical answer generation failed, answering ungrounded", "error", err)
		return Result{}
	}

	// Stage 2: embedding.
	embedding, err := p.index.Embed(ctx, hypothetical)
	if err != nil {
		p.logger.Warn("embedding failed, answering ungrounded", "error", err)
		return Result{}
	}

	// Stage 3: nearest-neighbor search.
	chunks, err := p.index.Search(ctx, embedding, p.cfg.TopK)
	if err != nil {
		p.logger.Warn("vector search failed, answering ungrounded", "error", err)
		return Result{}
	}
	if len(chunks) == 0 {
		p.logger.Debug("vector search returned no chunks, answering ungrounded")
		return Result{}
	}

	// Stages 4-6: aggregate, build bounded context, extract citations.
	sources := AggregateSources(chunks)
	contextText, cited := BuildContext(sources, p.cfg.ContextBudget)
	citations := ExtractCitations(cited)

	p.logger.Debug("retrieval completed",
		"chunks", len(chunks),
		"sources", len(sources),
		"cited", len(cited),
		"context_chars", len(contextText),
	)

	return Result{Context: contextText, Citations: citations}
}

// AggregateSources groups chunks by origin into ordered, deduplicated
// sources. Insertion order follows the first matching chunk, which also
// fixes citation order downstream.
func AggregateSources(chunks []knowledge.Chunk) []Source {
	var (
		sources []Source
		byRef   = make(map[string]int)
	)
	for _, c := range chunks {
		if i, ok := byRef[c.SourceRef]; ok {
			sources[i].Chunks = append(sources[i].Chunks, c)
			continue
		}
		byRef[c.SourceRef] = len(sources)
		sources = append(sources, Source{
			Ref:    c.SourceRef,
			Title:  c.Title,
			Chunks: []knowledge.Chunk{c},
		})
	}
	return sources
}
