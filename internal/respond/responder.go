// Package respond orchestrates one conversational turn: budget check,
// intent classification, grounding, prompt assembly, model streaming,
// and the ordered event stream the transport layer relays to the user.
//
// Each turn is served by a single producer goroutine writing to a
// bounded channel. The channel always carries an indicator before the
// first token, citations after the last token in ascending order, and
// exactly one terminal event (done or error) before it closes. Turns
// share no mutable state; concurrency safety is entirely confinement.
package respond

import (
	"context"
	"errors"
	"fmt"

	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/intent"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/prompt"
	"github.com/beatsync/beatsync/internal/provider"
	"github.com/beatsync/beatsync/internal/retrieval"
)

// eventBuffer sizes the per-turn channel. The producer blocks when the
// consumer falls this far behind, which backpressures the model stream.
const eventBuffer = 16

// Classifier maps a user turn to an intention. *intent.Classifier
// satisfies it.
type Classifier interface {
	Classify(ctx context.Context, turn conversation.Message, recent []conversation.Message) intent.Intention
}

// Retriever runs the grounding pipeline. *retrieval.Pipeline satisfies
// it.
type Retriever interface {
	Run(ctx context.Context, query string) retrieval.Result
}

// Streamer is the streaming model operation. *provider.Client satisfies
// it.
type Streamer interface {
	GenerateStream(ctx context.Context, req provider.Request, fn provider.StreamFunc) (string, error)
}

// Recommender resolves a mood to recommendation text.
// *capability.MusicClient satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, mood string) string
}

// Config carries the per-intent model settings and turn limits.
type Config struct {
	Question config.ResponseConfig
	Hostile  config.ResponseConfig
	Random   config.ResponseConfig

	// WordCutoff is the conversation word budget. At most this many
	// words may have accumulated before the model is called again.
	WordCutoff int

	// HistoryContextLength bounds the history window sent to the model.
	HistoryContextLength int
}

// Responder produces the event stream for user turns. It is stateless
// across turns and safe for concurrent use.
type Responder struct {
	classifier Classifier
	retriever  Retriever
	streamer   Streamer
	music      Recommender
	cfg        Config
	logger     log.Logger
}

// New creates a Responder. All collaborators are required.
func New(classifier Classifier, retriever Retriever, streamer Streamer, music Recommender, cfg Config, logger log.Logger) (*Responder, error) {
	if classifier == nil {
		return nil, errors.New("respond: classifier is required")
	}
	if retriever == nil {
		return nil, errors.New("respond: retriever is required")
	}
	if streamer == nil {
		return nil, errors.New("respond: streamer is required")
	}
	if music == nil {
		return nil, errors.New("respond: music recommender is required")
	}
	if logger == nil {
		return nil, errors.New("respond: logger is required")
	}
	return &Responder{
		classifier: classifier,
		retriever:  retriever,
		streamer:   streamer,
		music:      music,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Respond starts one turn. The chat's last message must be the new user
// turn; earlier messages are history. Validation failures are returned
// synchronously. On success the returned channel delivers the turn's
// events in order and is closed after the terminal event, or without one
// if ctx is cancelled first.
func (r *Responder) Respond(ctx context.Context, chat conversation.Chat) (<-chan Event, error) {
	if err := chat.Validate(); err != nil {
		return nil, fmt.Errorf("validating chat: %w", err)
	}
	if len(chat.Messages) == 0 {
		return nil, fmt.Errorf("%w: chat has no messages", conversation.ErrInvalidChat)
	}
	turn := chat.Messages[len(chat.Messages)-1]
	if turn.Role != conversation.RoleUser {
		return nil, fmt.Errorf("%w: last message must be from the user", conversation.ErrInvalidChat)
	}

	events := make(chan Event, eventBuffer)
	go r.run(ctx, chat, turn, events)
	return events, nil
}

// run is the turn's producer goroutine.
func (r *Responder) run(ctx context.Context, chat conversation.Chat, turn conversation.Message, events chan<- Event) {
	defer close(events)

	if !r.emit(ctx, events, indicatorEvent()) {
		return
	}

	history := chat.Messages[:len(chat.Messages)-1]

	if conversation.CheckBudget(history, turn, r.cfg.WordCutoff) == conversation.BudgetExhausted {
		r.logger.Info("word budget exhausted, skipping model call",
			"cutoff", r.cfg.WordCutoff)
		if r.emit(ctx, events, tokenEvent(config.WordBreakMessage)) {
			r.emit(ctx, events, doneEvent())
		}
		return
	}

	recent := conversation.Window(history, r.cfg.HistoryContextLength)
	intention := r.classifier.Classify(ctx, turn, recent)
	r.logger.Debug("turn classified", "intent", intention.Type, "capability", intention.Capability)

	switch {
	case intention.Type == intent.Capability && intention.Capability == intent.CapabilityMusic:
		r.runCapability(ctx, events, intention)
	case intention.Type == intent.Hostile:
		r.runModel(ctx, events, r.cfg.Hostile, prompt.Assemble(intent.Hostile, "", chat.Messages, r.cfg.HistoryContextLength), nil)
	case intention.Type == intent.Random:
		r.runModel(ctx, events, r.cfg.Random, prompt.Assemble(intent.Random, "", chat.Messages, r.cfg.HistoryContextLength), nil)
	default:
		r.runQuestion(ctx, events, turn, chat.Messages)
	}
}

// runCapability answers a music request without a model call. The
// entire answer is one synthetic token so the transport treats it like
// any streamed reply.
func (r *Responder) runCapability(ctx context.Context, events chan<- Event, intention intent.Intention) {
	reply := r.music.Recommend(ctx, intention.Slot)
	if r.emit(ctx, events, tokenEvent(reply)) {
		r.emit(ctx, events, doneEvent())
	}
}

// runQuestion grounds the turn and streams the answer with citations.
// messages is the full conversation, new turn last, so the model sees
// the question inside the history window.
func (r *Responder) runQuestion(ctx context.Context, events chan<- Event, turn conversation.Message, messages []conversation.Message) {
	result := r.retriever.Run(ctx, turn.Content)
	assembled := prompt.Assemble(intent.Question, result.Context, messages, r.cfg.HistoryContextLength)
	r.runModel(ctx, events, r.cfg.Question, assembled, result.Citations)
}

// runModel streams one model call, relaying deltas as token events. On
// provider failure the tokens already emitted stand and a single error
// event terminates the stream.
func (r *Responder) runModel(ctx context.Context, events chan<- Event, rc config.ResponseConfig, assembled prompt.Assembled, citations []conversation.Citation) {
	_, err := r.streamer.GenerateStream(ctx, provider.Request{
		Model:       rc.FullModelName(),
		System:      assembled.System,
		Messages:    assembled.Messages,
		Temperature: rc.Temperature,
	}, func(ctx context.Context, delta string) error {
		if !r.emit(ctx, events, tokenEvent(delta)) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("model stream failed", "model", rc.FullModelName(), "error", err)
		r.emit(ctx, events, errorEvent(config.DefaultResponseMessage))
		return
	}

	for _, c := range citations {
		if !r.emit(ctx, events, citationEvent(c)) {
			return
		}
	}
	r.emit(ctx, events, doneEvent())
}

// emit delivers one event unless the turn context is cancelled. It
// reports whether the event was delivered.
func (r *Responder) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
