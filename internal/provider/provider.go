// Package provider adapts the Genkit model API to the small surface the
// response pipeline needs: one-shot generation and token streaming.
//
// The adapter is constructed once at the composition root and injected
// into every component that talks to a model; there are no package-level
// client singletons, and a failed initialization surfaces at startup.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/log"
)

// Request describes a single model call.
type Request struct {
	// Model is the provider-qualified model name, e.g. "googleai/gemini-2.5-flash".
	Model string

	// System is the system prompt for the call.
	System string

	// Messages is the sanitized conversation history, oldest first.
	Messages []conversation.Message

	// Temperature controls sampling randomness.
	Temperature float32
}

// StreamFunc receives one incremental text delta. Returning an error
// aborts the stream.
type StreamFunc func(ctx context.Context, delta string) error

// ErrEmptyResponse indicates the model finished without producing text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Client is the Genkit-backed model provider adapter.
// It is safe for concurrent use across simultaneous turns.
type Client struct {
	g       *genkit.Genkit
	limiter *rate.Limiter
	logger  log.Logger
}

// NewGenkit initializes Genkit with the Google AI plugin and returns the
// instance together with the configured embedder.
func NewGenkit(ctx context.Context, embedderModel string) (*genkit.Genkit, ai.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, nil, errors.New("initializing genkit with googleai plugin")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, embedderModel)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not available", embedderModel)
	}

	return g, embedder, nil
}

// New creates a provider client. limiter may be nil to disable proactive
// rate limiting; production wiring passes a shared limiter so bursts of
// concurrent turns do not trip provider quotas.
func New(g *genkit.Genkit, limiter *rate.Limiter, logger log.Logger) (*Client, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Client{g: g, limiter: limiter, logger: logger}, nil
}

// Generate runs a non-streaming model call and returns the full text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	return c.generate(ctx, req, nil)
}

// GenerateStream runs a streaming model call, invoking fn for every text
// delta in arrival order, and returns the accumulated text.
func (c *Client) GenerateStream(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	if fn == nil {
		return "", errors.New("stream callback is required")
	}
	return c.generate(ctx, req, fn)
}

func (c *Client) generate(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	opts := []ai.GenerateOption{
		ai.WithMessages(toModelMessages(req.Messages)...),
		ai.WithConfig(modelConfig(req.Temperature)),
	}
	if req.Model != "" {
		opts = append(opts, ai.WithModelName(req.Model))
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if fn != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				if err := fn(ctx, part.Text); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	c.logger.Debug("executing model call",
		"model", req.Model,
		"messages", len(req.Messages),
		"streaming", fn != nil,
	)

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// modelConfig builds the generation config in the googlegenai plugin's
// native type. The plugin's config switch accepts genai config values
// and maps only; anything else fails the call before network I/O.
func modelConfig(temperature float32) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
}

// toModelMessages converts conversation messages to Genkit messages.
// System-role history entries are dropped; the system prompt travels via
// ai.WithSystem.
func toModelMessages(messages []conversation.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case conversation.RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}
