package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/log"
)

func TestGenresFor_KnownMoods(t *testing.T) {
	tests := []struct {
		mood   string
		genres []string
	}{
		{"happy", []string{"pop", "dance", "house"}},
		{"sad", []string{"blues", "acoustic", "soul"}},
		{"energetic", []string{"rock", "metal", "edm"}},
		{"relaxed", []string{"jazz", "chill", "lo-fi"}},
		{"romantic", []string{"r&b", "love songs", "indie"}},
	}
	for _, tt := range tests {
		t.Run(tt.mood, func(t *testing.T) {
			assert.Equal(t, tt.genres, GenresFor(tt.mood))
		})
	}
}

func TestGenresFor_UnknownMoodFallsBack(t *testing.T) {
	assert.Equal(t, []string{"pop"}, GenresFor("quantum"))
	assert.Equal(t, []string{"pop"}, GenresFor(""))
}

func TestGenresFor_CaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{"pop", "dance", "house"}, GenresFor("  Happy "))
}

func TestPickGenre_StaysInBucket(t *testing.T) {
	for range 20 {
		genre := PickGenre("energetic")
		assert.Contains(t, []string{"rock", "metal", "edm"}, genre)
	}
}

func TestRecommend_FormatsTracks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/capability/music", r.URL.Path)
		assert.Equal(t, "relaxed", r.URL.Query().Get("mood"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recommendations":[
			{"name":"Blue in Green","artist":"Miles Davis","url":"https://example.com/1"},
			{"name":"Tea Leaf Dancers","artist":"Flying Lotus","url":"https://example.com/2"}
		]}`))
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, time.Second, log.NewNop())
	got := client.Recommend(context.Background(), "relaxed")

	assert.Contains(t, got, "relaxed mood")
	assert.Contains(t, got, "1. Blue in Green by Miles Davis")
	assert.Contains(t, got, "2. Tea Leaf Dancers by Flying Lotus")
}

func TestRecommend_CapsAtFiveTracks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recommendations":[
			{"name":"a","artist":"x","url":"u"},{"name":"b","artist":"x","url":"u"},
			{"name":"c","artist":"x","url":"u"},{"name":"d","artist":"x","url":"u"},
			{"name":"e","artist":"x","url":"u"},{"name":"f","artist":"x","url":"u"}
		]}`))
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, time.Second, log.NewNop())
	got := client.Recommend(context.Background(), "happy")

	assert.Contains(t, got, "5. e by x")
	assert.NotContains(t, got, "f by x")
}

func TestRecommend_EmptyMoodQueriesDefaultBucket(t *testing.T) {
	var gotMood string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMood = r.URL.Query().Get("mood")
		if gotMood == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Please provide a mood."}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recommendations":[
			{"name":"Levitating","artist":"Dua Lipa","url":"https://example.com/1"}
		]}`))
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, time.Second, log.NewNop())
	got := client.Recommend(context.Background(), "  ")

	assert.Equal(t, "pop", gotMood, "empty slot must query the default bucket, not an empty mood")
	assert.Contains(t, got, "1. Levitating by Dua Lipa")
}

func TestRecommend_EmptyResultApologizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"recommendations":[]}`))
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, time.Second, log.NewNop())
	assert.Equal(t, config.CapabilityApologyMessage, client.Recommend(context.Background(), "sad"))
}

func TestRecommend_ServiceErrorApologizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"catalog offline"}`))
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, time.Second, log.NewNop())
	assert.Equal(t, config.CapabilityApologyMessage, client.Recommend(context.Background(), "happy"))
}

func TestRecommend_TimeoutApologizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, 20*time.Millisecond, log.NewNop())
	assert.Equal(t, config.CapabilityApologyMessage, client.Recommend(context.Background(), "happy"))
}

func TestRecommend_UnreachableServiceApologizes(t *testing.T) {
	client := NewMusicClient("http://127.0.0.1:1", 100*time.Millisecond, log.NewNop())
	assert.Equal(t, config.CapabilityApologyMessage, client.Recommend(context.Background(), "happy"))
}

func TestFormat_TrimsTrailingNewline(t *testing.T) {
	out := Format("Happy", []Recommendation{{Name: "n", Artist: "a", URL: "u"}})
	require.False(t, strings.HasSuffix(out, "\n"))
}
