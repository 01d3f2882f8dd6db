package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatsync/beatsync/internal/knowledge"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/provider"
)

// fakeGenerator returns a canned hypothetical answer.
type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _ provider.Request) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeIndex serves canned chunks and records inputs.
type fakeIndex struct {
	embedErr  error
	searchErr error
	chunks    []knowledge.Chunk

	embedded string
	topK     int
}

func (f *fakeIndex) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedded = text
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int) ([]knowledge.Chunk, error) {
	f.topK = topK
	return f.chunks, f.searchErr
}

func testConfig() Config {
	return Config{Model: "googleai/test-model", TopK: 5, ContextBudget: 4000}
}

func testChunks() []knowledge.Chunk {
	return []knowledge.Chunk{
		{Text: "Bebop emerged in the 1940s.", SourceRef: "doc-jazz", Title: "Jazz History"},
		{Text: "House music started in Chicago.", SourceRef: "doc-house", Title: "House Origins"},
		{Text: "Charlie Parker shaped bebop.", SourceRef: "doc-jazz", Title: "Jazz History"},
	}
}

func TestRun(t *testing.T) {
	gen := &fakeGenerator{text: "Bebop is a jazz style from the 1940s."}
	idx := &fakeIndex{chunks: testChunks()}
	p := New(gen, idx, testConfig(), log.NewNop())

	res := p.Run(context.Background(), "where does bebop come from?")

	// The hypothetical answer, not the raw query, is embedded.
	assert.Equal(t, gen.text, idx.embedded)
	assert.Equal(t, 5, idx.topK)

	require.Len(t, res.Citations, 2)
	assert.Equal(t, 1, res.Citations[0].Index)
	assert.Equal(t, "doc-jazz", res.Citations[0].SourceRef)
	assert.Equal(t, 2, res.Citations[1].Index)
	assert.Equal(t, "doc-house", res.Citations[1].SourceRef)

	// Every cited sourceRef's content appears in the context.
	assert.Contains(t, res.Context, "Bebop emerged")
	assert.Contains(t, res.Context, "Charlie Parker")
	assert.Contains(t, res.Context, "House music")
}

func TestRun_HyDEFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	idx := &fakeIndex{chunks: testChunks()}
	p := New(gen, idx, testConfig(), log.NewNop())

	res := p.Run(context.Background(), "question")
	assert.Empty(t, res.Context)
	assert.Empty(t, res.Citations)
	assert.Empty(t, idx.embedded, "no embedding after HyDE failure")
}

func TestRun_EmbedFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{text: "guess"}
	idx := &fakeIndex{embedErr: errors.New("embedder down"), chunks: testChunks()}
	p := New(gen, idx, testConfig(), log.NewNop())

	res := p.Run(context.Background(), "question")
	assert.Empty(t, res.Context)
	assert.Empty(t, res.Citations)
}

func TestRun_SearchFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{text: "guess"}
	idx := &fakeIndex{searchErr: errors.New("index down")}
	p := New(gen, idx, testConfig(), log.NewNop())

	res := p.Run(context.Background(), "question")
	assert.Empty(t, res.Context)
	assert.Empty(t, res.Citations)
}

func TestRun_EmptyResultDegrades(t *testing.T) {
	gen := &fakeGenerator{text: "guess"}
	idx := &fakeIndex{}
	p := New(gen, idx, testConfig(), log.NewNop())

	res := p.Run(context.Background(), "question")
	assert.Empty(t, res.Context)
	assert.Empty(t, res.Citations)
}

func TestAggregateSources(t *testing.T) {
	sources := AggregateSources(testChunks())

	require.Len(t, sources, 2)
	// Order follows the first matching chunk.
	assert.Equal(t, "doc-jazz", sources[0].Ref)
	assert.Len(t, sources[0].Chunks, 2)
	assert.Equal(t, "doc-house", sources[1].Ref)
	assert.Len(t, sources[1].Chunks, 1)
}

func TestBuildContext_Budget(t *testing.T) {
	sources := AggregateSources(testChunks())

	// A budget that only fits the first source drops the second.
	text, cited := BuildContext(sources, 40)
	require.Len(t, cited, 1)
	assert.Equal(t, "doc-jazz", cited[0].Ref)
	assert.LessOrEqual(t, len(text), 40)
	assert.Contains(t, text, "Bebop emerged")
}

func TestBuildContext_TruncationKeepsValidUTF8(t *testing.T) {
	sources := []Source{{
		Ref:    "doc-notes",
		Title:  "Notes",
		Chunks: []knowledge.Chunk{{Text: strings.Repeat("é", 200)}},
	}}

	// Sweep budgets around multibyte boundaries so some cut points land
	// mid-rune.
	for budget := 12; budget < 24; budget++ {
		text, cited := BuildContext(sources, budget)
		require.Len(t, cited, 1, "budget %d", budget)
		assert.True(t, utf8.ValidString(text), "budget %d produced invalid UTF-8", budget)
		assert.LessOrEqual(t, len(text), budget)
	}
}

func TestBuildContext_ZeroBudget(t *testing.T) {
	text, cited := BuildContext(AggregateSources(testChunks()), 0)
	assert.Empty(t, text)
	assert.Empty(t, cited)
}

func TestExtractCitations_ContiguousFromOne(t *testing.T) {
	sources := []Source{
		{Ref: "a", Chunks: []knowledge.Chunk{{Text: "alpha"}}},
		{Ref: "b", Chunks: []knowledge.Chunk{{Text: "beta"}}},
		{Ref: "c", Chunks: []knowledge.Chunk{{Text: "gamma"}}},
	}

	citations := ExtractCitations(sources)
	require.Len(t, citations, 3)
	for i, c := range citations {
		assert.Equal(t, i+1, c.Index)
	}
	assert.Equal(t, "alpha", citations[0].Snippet)
}

func TestSnippet_Truncation(t *testing.T) {
	long := strings.Repeat("la ", 100)
	src := Source{Ref: "a", Chunks: []knowledge.Chunk{{Text: long}}}

	s := snippet(src)
	assert.LessOrEqual(t, len([]rune(s)), snippetMaxChars+3)
	assert.True(t, strings.HasSuffix(s, "..."))
}
