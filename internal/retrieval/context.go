package retrieval

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/conversation"
)

// snippetMaxChars bounds the citation display snippet.
const snippetMaxChars = 160

// BuildContext concatenates source content into a single bounded context
// string, preserving source order. The overflowing source is truncated
// rather than dropped; sources past the budget are dropped entirely.
// It returns the context text and the sources actually incorporated.
func BuildContext(sources []Source, budget int) (string, []Source) {
	if budget <= 0 || len(sources) == 0 {
		return "", nil
	}

	var (
		b     strings.Builder
		cited []Source
	)
	for i, src := range sources {
		block := formatSource(src, i+1)

		remaining := budget - b.Len()
		if remaining <= 0 {
			break
		}
		if len(block) > remaining {
			// Partial truncation keeps the turn grounded in at least the
			// head of this source. Back off a partial rune at the cut so
			// the context stays valid UTF-8.
			cut := remaining
			for cut > 0 && !utf8.RuneStart(block[cut]) {
				cut--
			}
			truncated := strings.TrimSpace(block[:cut])
			if truncated == "" {
				break
			}
			b.WriteString(truncated)
			cited = append(cited, src)
			break
		}

		b.WriteString(block)
		cited = append(cited, src)
	}

	return strings.TrimRight(b.String(), "\n"), cited
}

// formatSource renders one source block with its citation marker.
func formatSource(src Source, index int) string {
	title := src.Title
	if title == "" {
		title = config.EmptyCitationMessage
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strconv.Itoa(index))
	b.WriteString("] ")
	b.WriteString(title)
	b.WriteString("\n")
	for _, c := range src.Chunks {
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// ExtractCitations assigns stable 1-based indices to the sources
// incorporated into the context, in incorporation order. Sources not in
// cited were dropped and get no citation.
func ExtractCitations(cited []Source) []conversation.Citation {
	if len(cited) == 0 {
		return nil
	}
	citations := make([]conversation.Citation, len(cited))
	for i, src := range cited {
		citations[i] = conversation.Citation{
			Index:     i + 1,
			SourceRef: src.Ref,
			Snippet:   snippet(src),
		}
	}
	return citations
}

// snippet derives the display snippet from the source's first chunk.
func snippet(src Source) string {
	if len(src.Chunks) == 0 {
		return ""
	}
	text := strings.TrimSpace(src.Chunks[0].Text)
	if runes := []rune(text); len(runes) > snippetMaxChars {
		text = strings.TrimSpace(string(runes[:snippetMaxChars])) + "..."
	}
	return text
}
