package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, player map[string]any, timedtext string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req playerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.VideoID)
		json.NewEncoder(w).Encode(player)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(timedtext))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func playerFixture(tracks ...map[string]any) map[string]any {
	return map[string]any{
		"playabilityStatus": map[string]any{"status": "OK"},
		"videoDetails": map[string]any{
			"videoId":       "dQw4w9WgXcQ",
			"title":         "Test video",
			"author":        "Test channel",
			"lengthSeconds": "213",
		},
		"captions": map[string]any{
			"playerCaptionsTracklistRenderer": map[string]any{
				"captionTracks": tracks,
			},
		},
	}
}

func TestGetVideoInfo(t *testing.T) {
	srv := newTestServer(t, playerFixture(
		map[string]any{"baseUrl": "/api/timedtext?lang=en", "languageCode": "en"},
	), "")
	client := NewClient(srv.URL)

	info, err := client.GetVideoInfo(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Test video", info.Title)
	assert.Equal(t, 213*time.Second, info.Duration)
	require.Len(t, info.Tracks, 1)
	assert.Equal(t, "en", info.Tracks[0].LanguageCode)
}

func TestGetVideoInfoUnplayable(t *testing.T) {
	srv := newTestServer(t, map[string]any{
		"playabilityStatus": map[string]any{"status": "LOGIN_REQUIRED", "reason": "private video"},
	}, "")
	client := NewClient(srv.URL)

	_, err := client.GetVideoInfo(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrUnplayable)
}

func TestSelectTrack(t *testing.T) {
	manualEN := CaptionTrack{BaseURL: "/m-en", LanguageCode: "en"}
	manualHI := CaptionTrack{BaseURL: "/m-hi", LanguageCode: "hi"}
	autoEN := CaptionTrack{BaseURL: "/a-en", LanguageCode: "en-US", Kind: "asr"}
	autoFR := CaptionTrack{BaseURL: "/a-fr", LanguageCode: "fr", Kind: "asr"}

	t.Run("manual beats auto", func(t *testing.T) {
		got, err := SelectTrack([]CaptionTrack{autoEN, manualEN}, []string{"en", "hi"})
		require.NoError(t, err)
		assert.Equal(t, "/m-en", got.BaseURL)
	})

	t.Run("language order respected", func(t *testing.T) {
		got, err := SelectTrack([]CaptionTrack{manualHI, manualEN}, []string{"en", "hi"})
		require.NoError(t, err)
		assert.Equal(t, "/m-en", got.BaseURL)
	})

	t.Run("auto fallback with region code", func(t *testing.T) {
		got, err := SelectTrack([]CaptionTrack{autoFR, autoEN}, []string{"en"})
		require.NoError(t, err)
		assert.Equal(t, "/a-en", got.BaseURL)
	})

	t.Run("no language match", func(t *testing.T) {
		_, err := SelectTrack([]CaptionTrack{autoFR}, []string{"en", "hi"})
		assert.ErrorIs(t, err, ErrNoTrack)
	})

	t.Run("no tracks means disabled", func(t *testing.T) {
		_, err := SelectTrack(nil, []string{"en"})
		assert.ErrorIs(t, err, ErrCaptionsDisabled)
	})
}

func TestFetchTrack(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="1.5">Never gonna give you up</text>
  <text start="1.5" dur="1.5">never gonna let you down</text>
  <text start="3.0" dur="1.0">  </text>
  <text start="4.0" dur="2.0">we&#39;ve known each other &amp; so on</text>
  <text start="6.0" dur="1.0">it&amp;#39;s double encoded &amp;quot;here&amp;quot;</text>
</transcript>`
	srv := newTestServer(t, playerFixture(), doc)
	client := NewClient(srv.URL)

	track := &CaptionTrack{BaseURL: "/api/timedtext?lang=en", LanguageCode: "en"}
	segments, err := client.FetchTrack(context.Background(), track)
	require.NoError(t, err)
	require.Len(t, segments, 4) // blank cue dropped

	assert.Equal(t, "Never gonna give you up", segments[0].Text)
	assert.Equal(t, 1500*time.Millisecond, segments[0].Dur)
	assert.Equal(t, 1500*time.Millisecond, segments[1].Start)
	assert.Equal(t, "we've known each other & so on", segments[2].Text)
	// double-encoded entities survive XML decoding and need the HTML pass
	assert.Equal(t, `it's double encoded "here"`, segments[3].Text)

	joined := JoinSegments(segments)
	assert.Equal(t, `Never gonna give you up never gonna let you down we've known each other & so on it's double encoded "here"`, joined)
}
