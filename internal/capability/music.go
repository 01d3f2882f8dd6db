// Package capability routes intents that bypass the language model to
// external services. The only capability today is mood-based music
// recommendation: a deterministic genre lookup against an external HTTP
// service, formatted directly as the assistant's answer.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/log"
)

// maxRecommendations caps the formatted list.
const maxRecommendations = 5

// moodGenres maps a mood to its genre bucket. Unrecognized moods fall
// back to defaultGenres.
var moodGenres = map[string][]string{
	"happy":     {"pop", "dance", "house"},
	"sad":       {"blues", "acoustic", "soul"},
	"energetic": {"rock", "metal", "edm"},
	"relaxed":   {"jazz", "chill", "lo-fi"},
	"romantic":  {"r&b", "love songs", "indie"},
}

var defaultGenres = []string{"pop"}

// GenresFor returns the genre bucket for a mood. Matching is
// case-insensitive; unknown moods get the default bucket.
func GenresFor(mood string) []string {
	if genres, ok := moodGenres[strings.ToLower(strings.TrimSpace(mood))]; ok {
		return genres
	}
	return defaultGenres
}

// PickGenre selects one genre from the mood's bucket.
func PickGenre(mood string) string {
	genres := GenresFor(mood)
	return genres[rand.IntN(len(genres))]
}

// Recommendation is one track returned by the lookup service.
type Recommendation struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

// lookupResponse is the service's wire format.
type lookupResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	Error           string           `json:"error"`
}

// MusicClient calls the external music lookup service. The underlying
// http.Client is safe for concurrent use across simultaneous turns.
type MusicClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  log.Logger
}

// NewMusicClient creates a MusicClient. Every lookup is bounded by
// timeout; a timed-out call is a capability failure, never a fault that
// escapes to the user.
func NewMusicClient(baseURL string, timeout time.Duration, logger log.Logger) *MusicClient {
	if timeout <= 0 {
		timeout = config.DefaultMusicTimeout
	}
	return &MusicClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Recommend resolves a mood to formatted track recommendations. It never
// returns an error: empty results, timeouts, and service failures all
// degrade to the fixed apology text.
func (m *MusicClient) Recommend(ctx context.Context, mood string) string {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if mood == "" {
		// The lookup service rejects a missing mood, so an empty slot
		// queries the default genre bucket. The service maps any
		// unrecognized mood to the same bucket, so the results line up.
		mood = PickGenre(mood)
	}

	recs, err := m.lookup(ctx, mood)
	if err != nil {
		m.logger.Warn("music lookup failed", "mood", mood, "error", err)
		return config.CapabilityApologyMessage
	}
	if len(recs) == 0 {
		m.logger.Debug("music lookup returned no tracks", "mood", mood)
		return config.CapabilityApologyMessage
	}
	return Format(mood, recs)
}

// lookup performs the HTTP call to GET /capability/music?mood=<mood>.
func (m *MusicClient) lookup(ctx context.Context, mood string) ([]Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/capability/music?mood=%s", m.baseURL, url.QueryEscape(mood))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling music service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding music response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("music service returned %d: %s", resp.StatusCode, body.Error)
	}

	return body.Recommendations, nil
}

// Format renders up to five recommendations as a markdown list.
func Format(mood string, recs []Recommendation) string {
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's what I'd spin for a %s mood:\n", strings.ToLower(strings.TrimSpace(mood)))
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. %s by %s — %s\n", i+1, r.Name, r.Artist, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
