package server

import (
	"context"
	"net/http"
	"time"

	"tubeqa/internal/chat"
	"tubeqa/internal/llm"
	"tubeqa/internal/logging"
	"tubeqa/internal/store/sqlite"
	"tubeqa/internal/transcript"
)

// VideoStore is the persistence slice the API needs.
type VideoStore interface {
	GetVideo(ctx context.Context, videoID string) (*sqlite.Video, error)
	UpsertVideo(ctx context.Context, v *sqlite.Video) error
	CountChunks(ctx context.Context, videoID string) (int, error)
}

// TranscriptGetter resolves a transcript through the fallback chain.
type TranscriptGetter interface {
	Get(ctx context.Context, videoID string) (*transcript.Result, error)
}

// Enqueuer hands an ingest job to the pipeline.
type Enqueuer interface {
	Publish(ctx context.Context, videoID string) error
}

// Ingester runs an ingest job to completion.
type Ingester interface {
	Process(ctx context.Context, videoID string) error
}

// Server is the HTTP API over the transcript, ingest and chat services.
type Server struct {
	store       VideoStore
	transcripts TranscriptGetter
	provider    llm.Provider
	chat        *chat.Manager
	enqueuer    Enqueuer // nil means no broker: ingest runs inline
	ingester    Ingester

	httpServer *http.Server
}

// Config wires a Server.
type Config struct {
	Addr        string
	Store       VideoStore
	Transcripts TranscriptGetter
	Provider    llm.Provider
	Chat        *chat.Manager
	Enqueuer    Enqueuer
	Ingester    Ingester
}

func New(cfg Config) *Server {
	s := &Server{
		store:       cfg.Store,
		transcripts: cfg.Transcripts,
		provider:    cfg.Provider,
		chat:        cfg.Chat,
		enqueuer:    cfg.Enqueuer,
		ingester:    cfg.Ingester,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // summarize and chat wait on LLM calls
	}
	return s
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("[server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Infof("[server] shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
