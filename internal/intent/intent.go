// Package intent classifies the latest user turn into one of the fixed
// response paths: question, hostile, random chatter, or delegation to an
// external capability.
//
// Capability detection is deterministic pattern matching so a music
// request never depends on a model call. Everything else goes through a
// single label-classification model call whose safe default is question:
// a failed classifier must never escalate to hostile handling and must
// never bypass the model via a capability route.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/provider"
)

// Type enumerates the fixed intent classes.
type Type string

const (
	Question   Type = "question"
	Hostile    Type = "hostile"
	Random     Type = "random"
	Capability Type = "capability"
)

// CapabilityMusic is the only capability currently routed.
const CapabilityMusic = "music_recommendation"

// Intention is the classified purpose of a user turn. It is produced
// fresh per turn and never persisted beyond the response cycle.
type Intention struct {
	Type Type

	// Capability names the external capability for Type == Capability.
	Capability string

	// Slot carries the extracted slot value (the mood keyword for music).
	Slot string

	// Confidence is an optional score; zero when the classifier cannot
	// provide one (pattern matches report 1).
	Confidence float32
}

// Generator is the single model operation the classifier needs.
// *provider.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (string, error)
}

// Classifier maps user turns to intentions.
type Classifier struct {
	generator Generator
	model     string
	logger    log.Logger
}

// New creates a Classifier. model is the provider-qualified model used
// for the label-classification call.
func New(generator Generator, model string, logger log.Logger) *Classifier {
	return &Classifier{generator: generator, model: model, logger: logger}
}

const classifyPrompt = `You are an intent classifier for a music-savvy assistant.
Classify the user's latest message into exactly one label:

QUESTION - the user asks something that deserves a researched answer
HOSTILE  - the user is insulting, threatening, or abusive
RANDOM   - small talk, greetings, or anything else

Answer with the label only.`

// Classify resolves the intention of the latest user turn given recent
// history. It never returns an error: classification failures degrade to
// Question.
func (c *Classifier) Classify(ctx context.Context, turn conversation.Message, recent []conversation.Message) Intention {
	if mood, ok := matchMusicRequest(turn.Content); ok {
		return Intention{
			Type:       Capability,
			Capability: CapabilityMusic,
			Slot:       mood,
			Confidence: 1,
		}
	}

	messages := append(conversation.StripCitations(recent), conversation.Message{
		Role:    conversation.RoleUser,
		Content: turn.Content,
	})

	label, err := c.generator.Generate(ctx, provider.Request{
		Model:    c.model,
		System:   classifyPrompt,
		Messages: messages,
	})
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to question", "error", err)
		return Intention{Type: Question}
	}

	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "HOSTILE":
		return Intention{Type: Hostile}
	case "RANDOM":
		return Intention{Type: Random}
	case "QUESTION":
		return Intention{Type: Question}
	default:
		c.logger.Debug("unknown intent label, defaulting to question", "label", label)
		return Intention{Type: Question}
	}
}

// musicWords mark a turn as a music request when combined with a mood
// or a recommendation verb.
var musicWords = []string{
	"music", "song", "songs", "track", "tracks", "playlist",
	"jam", "jams", "tune", "tunes", "soundtrack",
}

// recommendWords are the verbs that claim a mood-less music turn as a
// recommendation request.
var recommendWords = []string{
	"recommend", "recommendation", "recommendations",
	"suggest", "suggestion", "suggestions", "play",
}

// knownMoods are the moods with dedicated genre buckets.
var knownMoods = []string{"happy", "sad", "energetic", "relaxed", "romantic"}

// moodPhrase captures the word after "feeling", "mood is", "mood:" or "im".
var moodPhrase = regexp.MustCompile(`(?i)(?:feeling|mood\s*(?:is|:)?|i'?m)\s+([a-z-]+)`)

// matchMusicRequest reports whether the turn asks for music and extracts
// the mood slot. A music word alone is not enough: without a mood signal
// or a recommendation verb the turn falls through to model
// classification, so "what is house music?" stays a question. The slot
// may be empty or an unrecognized word; the capability router owns the
// fallback to the default genre bucket.
func matchMusicRequest(content string) (string, bool) {
	lower := strings.ToLower(content)

	hasMusicWord := false
	for _, w := range musicWords {
		if containsWord(lower, w) {
			hasMusicWord = true
			break
		}
	}
	if !hasMusicWord {
		return "", false
	}

	// Prefer an explicit known mood anywhere in the turn.
	for _, mood := range knownMoods {
		if containsWord(lower, mood) {
			return mood, true
		}
	}

	// Otherwise take the word following a mood phrase, even if unknown;
	// downstream genre mapping defaults unrecognized moods.
	if m := moodPhrase.FindStringSubmatch(lower); m != nil {
		return m[1], true
	}

	// Mood-less turns still count when the user explicitly asks for a
	// recommendation.
	for _, w := range recommendWords {
		if containsWord(lower, w) {
			return "", true
		}
	}

	return "", false
}

// containsWord reports whether lower contains w as a whole word.
func containsWord(lower, w string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
