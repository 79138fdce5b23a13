package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tubeqa/internal/index"
	"tubeqa/internal/llm"
	"tubeqa/internal/logging"
)

var (
	// ErrSessionNotFound indicates an unknown or expired session ID.
	ErrSessionNotFound = fmt.Errorf("chat: session not found")
	// ErrSessionVideoMismatch indicates the session belongs to another video.
	ErrSessionVideoMismatch = fmt.Errorf("chat: session belongs to a different video")
)

const systemPrompt = `You are a helpful assistant answering questions about a YouTube video.
Answer using only the numbered transcript excerpts provided with each question.
If the excerpts do not contain the answer, say so instead of guessing.
Keep answers concise.`

// Embedder is the single-vector embedding dependency.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the chat manager.
type Config struct {
	TopK     int           // retrieved excerpts per question
	MaxTurns int           // history bound, in question/answer pairs
	IdleTTL  time.Duration // sessions idle longer than this are swept
}

// Answer is the result of one Ask.
type Answer struct {
	SessionID string      `json:"session_id"`
	Text      string      `json:"answer"`
	Sources   []index.Hit `json:"sources"`
}

// Manager owns the in-process session map and runs the bounded
// retrieval-augmented loop.
type Manager struct {
	embedder Embedder
	registry *index.Registry
	provider llm.Provider

	topK     int
	maxTurns int
	idleTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires the chat loop. Zero config fields select defaults.
func NewManager(embedder Embedder, registry *index.Registry, provider llm.Provider, cfg Config) (*Manager, error) {
	if embedder == nil || registry == nil || provider == nil {
		return nil, fmt.Errorf("chat: embedder, registry and provider are required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Manager{
		embedder: embedder,
		registry: registry,
		provider: provider,
		topK:     topK,
		maxTurns: maxTurns,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}, nil
}

// Ask answers one question about a video. An empty sessionID starts a new
// session; a known one continues it with the capped history.
func (m *Manager) Ask(ctx context.Context, videoID, sessionID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("chat: question is empty")
	}

	session, err := m.resolveSession(videoID, sessionID)
	if err != nil {
		return nil, err
	}

	ix, err := m.registry.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}

	queryVec, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := ix.Search(queryVec, m.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	turns := m.buildTurns(session, hits, question)
	answer, err := m.provider.Chat(ctx, systemPrompt, turns)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	m.mu.Lock()
	session.append(question, answer, m.maxTurns)
	m.mu.Unlock()

	logging.Debugf("[chat] session=%s video=%s sources=%d turns=%d",
		session.ID, videoID, len(hits), len(session.Turns)/2)

	return &Answer{SessionID: session.ID, Text: answer, Sources: hits}, nil
}

func (m *Manager) resolveSession(videoID, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID == "" {
		s := newSession(videoID)
		m.sessions[s.ID] = s
		return s, nil
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.VideoID != videoID {
		return nil, ErrSessionVideoMismatch
	}
	return s, nil
}

// buildTurns assembles the capped history plus the context-bearing final
// user message. Retrieved excerpts are attached only to the pending
// question; stored history keeps the bare questions.
func (m *Manager) buildTurns(session *Session, hits []index.Hit, question string) []llm.Turn {
	m.mu.Lock()
	history := make([]llm.Turn, len(session.Turns))
	copy(history, session.Turns)
	m.mu.Unlock()

	var b strings.Builder
	if len(hits) > 0 {
		b.WriteString("Transcript excerpts:\n")
		for i, h := range hits {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, h.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)

	return append(history, llm.Turn{Role: llm.RoleUser, Content: b.String()})
}

// Sessions reports the number of live sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (m *Manager) Sweep() int {
	cutoff := time.Now().UTC().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps expired sessions until the context is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logging.Debugf("[chat] swept %d idle sessions", n)
			}
		}
	}
}
