package config

import (
	"fmt"
	"net/url"
	"os"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is read directly by the Genkit plugin; fail fast here so a
	// missing key surfaces at startup rather than on the first turn.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	for _, rc := range []struct {
		name string
		cfg  ResponseConfig
	}{
		{"question", c.Question},
		{"hostile", c.Hostile},
		{"random", c.Random},
	} {
		if rc.cfg.ModelName == "" {
			return fmt.Errorf("%w: %s.model_name cannot be empty", ErrInvalidModelName, rc.name)
		}
		// Temperature range 0.0 (deterministic) to 2.0 per Gemini API docs.
		if rc.cfg.Temperature < 0.0 || rc.cfg.Temperature > 2.0 {
			return fmt.Errorf("%w: %s.temperature must be between 0.0 and 2.0, got %.2f",
				ErrInvalidTemperature, rc.name, rc.cfg.Temperature)
		}
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.ContextBudget < 100 {
		return fmt.Errorf("%w: must be at least 100 characters, got %d", ErrInvalidContextBudget, c.ContextBudget)
	}

	if c.WordCutoff < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidWordCutoff, c.WordCutoff)
	}

	if c.HistoryContextLength < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidHistoryLength, c.HistoryContextLength)
	}

	if c.MusicBaseURL == "" {
		return fmt.Errorf("%w: music_base_url cannot be empty", ErrInvalidMusicURL)
	}
	if u, err := url.Parse(c.MusicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidMusicURL, c.MusicBaseURL)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}
