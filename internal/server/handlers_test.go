package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubeqa/internal/chat"
	"tubeqa/internal/index"
	"tubeqa/internal/llm"
	"tubeqa/internal/store/sqlite"
	"tubeqa/internal/transcript"
)

type fakeStore struct {
	mu     sync.Mutex
	videos map[string]*sqlite.Video
	chunks map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{videos: map[string]*sqlite.Video{}, chunks: map[string]int{}}
}

func (f *fakeStore) GetVideo(ctx context.Context, videoID string) (*sqlite.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[videoID]
	if !ok {
		return nil, sqlite.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) UpsertVideo(ctx context.Context, v *sqlite.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.videos[v.VideoID] = &cp
	return nil
}

func (f *fakeStore) CountChunks(ctx context.Context, videoID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[videoID], nil
}

type fakeTranscripts struct {
	result *transcript.Result
	err    error
}

func (f *fakeTranscripts) Get(ctx context.Context, videoID string) (*transcript.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Chat(ctx context.Context, systemPrompt string, turns []llm.Turn) (string, error) {
	return f.Complete(ctx, systemPrompt, "")
}

type fakeEnqueuer struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *fakeEnqueuer) Publish(ctx context.Context, videoID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, videoID)
	return nil
}

type fakeIngester struct {
	mu        sync.Mutex
	processed []string
	done      chan struct{}
}

func (f *fakeIngester) Process(ctx context.Context, videoID string) error {
	f.mu.Lock()
	f.processed = append(f.processed, videoID)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

const testVideoID = "dQw4w9WgXcQ"
const testWatchURL = "https://www.youtube.com/watch?v=" + testVideoID

func newTestServer(t *testing.T, mut func(*Config)) (*Server, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	registry := index.NewRegistry(nil)
	ix := index.New()
	require.NoError(t, ix.Add(0, "the speaker explains goroutines", []float32{1, 0}))
	require.NoError(t, ix.Add(1, "closing remarks", []float32{0, 1}))
	registry.Put(testVideoID, ix)

	manager, err := chat.NewManager(unitEmbedder{}, registry, &fakeProvider{reply: "an answer"}, chat.Config{})
	require.NoError(t, err)

	cfg := Config{
		Addr:        ":0",
		Store:       store,
		Transcripts: &fakeTranscripts{result: &transcript.Result{VideoID: testVideoID, Text: "transcript text", Source: transcript.SourceCaptions}},
		Provider:    &fakeProvider{reply: "a summary"},
		Chat:        manager,
		Enqueuer:    &fakeEnqueuer{},
	}
	if mut != nil {
		mut(&cfg)
	}
	return New(cfg), store
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "abc", truncateRunes("abcdef", 3))

	// multibyte text is cut between runes, never inside one
	s := "héllo wörld"
	got := truncateRunes(s, 4)
	assert.Equal(t, "héll", got)
	assert.True(t, utf8.ValidString(got))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestSummarize(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/api/summarize", summarizeRequest{URL: testWatchURL})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[summarizeResponse](t, rec)
	assert.Equal(t, testVideoID, body.VideoID)
	assert.Equal(t, "a summary", body.Summary)
}

func TestSummarizeInvalidURL(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/api/summarize", summarizeRequest{URL: "https://example.com/nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorEnvelope](t, rec)
	assert.Equal(t, "invalid_url", body.Error.Code)
}

func TestSummarizeNoTranscript(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *Config) {
		cfg.Transcripts = &fakeTranscripts{err: transcript.ErrNoTranscript}
	})
	rec := doJSON(t, s, http.MethodPost, "/api/summarize", summarizeRequest{URL: testWatchURL})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[errorEnvelope](t, rec)
	assert.Equal(t, "no_transcript", body.Error.Code)
}

func TestSummarizeLLMFailure(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *Config) {
		cfg.Provider = &fakeProvider{err: errors.New("model overloaded")}
	})
	rec := doJSON(t, s, http.MethodPost, "/api/summarize", summarizeRequest{URL: testWatchURL})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCreateVideoQueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	s, store := newTestServer(t, func(cfg *Config) { cfg.Enqueuer = enq })

	rec := doJSON(t, s, http.MethodPost, "/api/videos", createVideoRequest{URL: testWatchURL})
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody[videoResponse](t, rec)
	assert.Equal(t, testVideoID, body.VideoID)
	assert.Equal(t, sqlite.StatusQueued, body.Status)

	assert.Equal(t, []string{testVideoID}, enq.published)
	v, err := store.GetVideo(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, sqlite.StatusQueued, v.Status)
}

func TestCreateVideoIdempotentWhenReady(t *testing.T) {
	enq := &fakeEnqueuer{}
	s, store := newTestServer(t, func(cfg *Config) { cfg.Enqueuer = enq })
	require.NoError(t, store.UpsertVideo(context.Background(), &sqlite.Video{
		VideoID: testVideoID,
		Title:   "Go talk",
		Status:  sqlite.StatusReady,
	}))
	store.chunks[testVideoID] = 7

	rec := doJSON(t, s, http.MethodPost, "/api/videos", createVideoRequest{URL: testWatchURL})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[videoResponse](t, rec)
	assert.Equal(t, sqlite.StatusReady, body.Status)
	assert.Equal(t, 7, body.ChunkCount)
	assert.Empty(t, enq.published)
}

func TestCreateVideoInlineFallback(t *testing.T) {
	ing := &fakeIngester{done: make(chan struct{})}
	s, _ := newTestServer(t, func(cfg *Config) {
		cfg.Enqueuer = nil
		cfg.Ingester = ing
	})

	rec := doJSON(t, s, http.MethodPost, "/api/videos", createVideoRequest{URL: testWatchURL})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-ing.done:
	case <-time.After(2 * time.Second):
		t.Fatal("inline ingest was not triggered")
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Equal(t, []string{testVideoID}, ing.processed)
}

func TestGetVideo(t *testing.T) {
	s, store := newTestServer(t, nil)
	require.NoError(t, store.UpsertVideo(context.Background(), &sqlite.Video{
		VideoID:     testVideoID,
		Title:       "Go talk",
		DurationSec: 600,
		Status:      sqlite.StatusReady,
		Source:      transcript.SourceCaptions,
	}))
	store.chunks[testVideoID] = 12

	rec := doJSON(t, s, http.MethodGet, "/api/videos/"+testVideoID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[videoResponse](t, rec)
	assert.Equal(t, "Go talk", body.Title)
	assert.Equal(t, 600, body.DurationSec)
	assert.Equal(t, 12, body.ChunkCount)
}

func TestGetVideoNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/api/videos/AAAAAAAAAAA", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat(t *testing.T) {
	s, store := newTestServer(t, nil)
	require.NoError(t, store.UpsertVideo(context.Background(), &sqlite.Video{
		VideoID: testVideoID,
		Status:  sqlite.StatusReady,
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/chat", chatRequest{
		VideoID: testVideoID,
		Message: "what are goroutines?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[chat.Answer](t, rec)
	assert.Equal(t, "an answer", body.Text)
	assert.NotEmpty(t, body.SessionID)
	assert.NotEmpty(t, body.Sources)

	// continue the session
	rec = doJSON(t, s, http.MethodPost, "/api/chat", chatRequest{
		VideoID:   testVideoID,
		SessionID: body.SessionID,
		Message:   "and channels?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	followup := decodeBody[chat.Answer](t, rec)
	assert.Equal(t, body.SessionID, followup.SessionID)
}

func TestChatVideoNotReady(t *testing.T) {
	s, store := newTestServer(t, nil)
	require.NoError(t, store.UpsertVideo(context.Background(), &sqlite.Video{
		VideoID: testVideoID,
		Status:  sqlite.StatusProcessing,
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/chat", chatRequest{
		VideoID: testVideoID,
		Message: "anything yet?",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorEnvelope](t, rec)
	assert.Equal(t, "not_ready", body.Error.Code)
}

func TestChatUnknownVideo(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/api/chat", chatRequest{
		VideoID: "AAAAAAAAAAA",
		Message: "hello",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatUnknownSession(t *testing.T) {
	s, store := newTestServer(t, nil)
	require.NoError(t, store.UpsertVideo(context.Background(), &sqlite.Video{
		VideoID: testVideoID,
		Status:  sqlite.StatusReady,
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/chat", chatRequest{
		VideoID:   testVideoID,
		SessionID: "11111111-1111-1111-1111-111111111111",
		Message:   "hello",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[errorEnvelope](t, rec)
	assert.Equal(t, "session_not_found", body.Error.Code)
}
