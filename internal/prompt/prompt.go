// Package prompt holds the fixed system-prompt templates and assembles
// the provider-agnostic message set for each intent class.
package prompt

import (
	"fmt"

	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/intent"
)

// Assembled is the provider-ready prompt: a system prompt plus the
// sanitized history messages.
type Assembled struct {
	System   string
	Messages []conversation.Message
}

const hostileTemplate = `You are BeatSync, a friendly DJ assistant.
The user's last message was hostile or abusive. Respond with a single calm,
de-escalating sentence. Do not apologize excessively, do not argue, and do
not continue the previous topic.`

const questionTemplate = `You are BeatSync, a knowledgeable DJ assistant.
Answer the user's question using ONLY the sources below. If the sources do
not cover the question, say what you know generally and make clear it is
not from your library.

Sources:
%s

Cite sources inline with their bracketed number, e.g. [1]. Only cite
numbers that appear in the sources above.`

const questionUngroundedTemplate = `You are BeatSync, a knowledgeable DJ assistant.
No library sources are available for this question. Answer from general
knowledge, briefly, and do not fabricate citations.`

const randomTemplate = `You are BeatSync, a playful DJ assistant.
The user is making small talk. Keep the reply short, upbeat, and music-
flavored when it fits naturally.`

// Assemble selects the template for the intent, interpolates grounding
// context for questions, and maps the citation-stripped history window
// into the message set.
//
// Hostile turns deliberately exclude prior history: only the hostile
// message itself is sent, so the de-escalation reply is not conditioned
// on earlier turns and the provider still gets a non-empty message list.
func Assemble(intentType intent.Type, contextText string, history []conversation.Message, historyLen int) Assembled {
	switch intentType {
	case intent.Hostile:
		return Assembled{
			System:   hostileTemplate,
			Messages: conversation.StripCitations(conversation.Window(history, 1)),
		}

	case intent.Random:
		return Assembled{
			System:   randomTemplate,
			Messages: conversation.StripCitations(conversation.Window(history, historyLen)),
		}

	default: // question
		system := questionUngroundedTemplate
		if contextText != "" {
			system = fmt.Sprintf(questionTemplate, contextText)
		}
		window := conversation.Window(history, historyLen)
		return Assembled{
			System:   system,
			Messages: conversation.StripCitations(window),
		}
	}
}
