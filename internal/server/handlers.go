package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tubeqa/internal/chat"
	"tubeqa/internal/index"
	"tubeqa/internal/logging"
	"tubeqa/internal/store/sqlite"
	"tubeqa/internal/transcript"
	"tubeqa/internal/youtube"
)

const summarySystemPrompt = `You summarize YouTube video transcripts.
Write a concise summary of the main points in a few short paragraphs.
Use only the transcript text provided.`

// maxSummaryChars bounds the transcript text sent to the LLM.
const maxSummaryChars = 48000

const inlineIngestTimeout = 30 * time.Minute

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type summarizeRequest struct {
	URL string `json:"url"`
}

type summarizeResponse struct {
	VideoID string `json:"video_id"`
	Summary string `json:"summary"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	videoID, err := youtube.ExtractVideoID(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_url", "not a recognizable YouTube URL")
		return
	}

	result, err := s.transcripts.Get(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, transcript.ErrNoTranscript) {
			respondError(w, http.StatusNotFound, "no_transcript", "no transcript could be extracted for this video")
			return
		}
		logging.Errorf("[server] summarize video=%s transcript: %v", videoID, err)
		respondError(w, http.StatusBadGateway, "transcript_failed", "transcript extraction failed")
		return
	}

	text := truncateRunes(result.Text, maxSummaryChars)
	summary, err := s.provider.Complete(r.Context(), summarySystemPrompt, text)
	if err != nil {
		logging.Errorf("[server] summarize video=%s llm: %v", videoID, err)
		respondError(w, http.StatusBadGateway, "llm_failed", "summary generation failed")
		return
	}

	respondJSON(w, http.StatusOK, summarizeResponse{VideoID: videoID, Summary: summary})
}

// truncateRunes cuts s to at most n runes, never splitting a UTF-8
// sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

type createVideoRequest struct {
	URL string `json:"url"`
}

type videoResponse struct {
	VideoID     string `json:"video_id"`
	Status      string `json:"status"`
	Title       string `json:"title,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Source      string `json:"source,omitempty"`
	ChunkCount  int    `json:"chunk_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	var req createVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	videoID, err := youtube.ExtractVideoID(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_url", "not a recognizable YouTube URL")
		return
	}

	ctx := r.Context()
	if existing, err := s.store.GetVideo(ctx, videoID); err == nil {
		switch existing.Status {
		case sqlite.StatusReady:
			respondJSON(w, http.StatusOK, s.videoDoc(ctx, existing))
			return
		case sqlite.StatusQueued, sqlite.StatusProcessing:
			respondJSON(w, http.StatusAccepted, s.videoDoc(ctx, existing))
			return
		}
		// failed videos fall through and get re-queued
	} else if !errors.Is(err, sqlite.ErrNotFound) {
		logging.Errorf("[server] get video=%s: %v", videoID, err)
		respondError(w, http.StatusInternalServerError, "internal", "storage error")
		return
	}

	if err := s.store.UpsertVideo(ctx, &sqlite.Video{VideoID: videoID, Status: sqlite.StatusQueued}); err != nil {
		logging.Errorf("[server] queue video=%s: %v", videoID, err)
		respondError(w, http.StatusInternalServerError, "internal", "storage error")
		return
	}

	if err := s.enqueue(ctx, videoID); err != nil {
		logging.Errorf("[server] publish video=%s: %v", videoID, err)
		respondError(w, http.StatusInternalServerError, "internal", "could not queue ingest job")
		return
	}

	respondJSON(w, http.StatusAccepted, videoResponse{VideoID: videoID, Status: sqlite.StatusQueued})
}

// enqueue publishes the job to the broker, or falls back to an inline
// background ingest when no broker is configured.
func (s *Server) enqueue(ctx context.Context, videoID string) error {
	if s.enqueuer != nil {
		return s.enqueuer.Publish(ctx, videoID)
	}
	if s.ingester == nil {
		return errors.New("no ingest pipeline configured")
	}
	go func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), inlineIngestTimeout)
		defer cancel()
		if err := s.ingester.Process(jobCtx, videoID); err != nil {
			logging.Errorf("[server] inline ingest video=%s: %v", videoID, err)
		}
	}()
	return nil
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	v, err := s.store.GetVideo(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "unknown video")
			return
		}
		logging.Errorf("[server] get video=%s: %v", videoID, err)
		respondError(w, http.StatusInternalServerError, "internal", "storage error")
		return
	}

	respondJSON(w, http.StatusOK, s.videoDoc(r.Context(), v))
}

func (s *Server) videoDoc(ctx context.Context, v *sqlite.Video) videoResponse {
	doc := videoResponse{
		VideoID:     v.VideoID,
		Status:      v.Status,
		Title:       v.Title,
		DurationSec: v.DurationSec,
		Source:      v.Source,
		Error:       v.Error,
	}
	if v.Status == sqlite.StatusReady {
		if n, err := s.store.CountChunks(ctx, v.VideoID); err == nil {
			doc.ChunkCount = n
		}
	}
	return doc
}

type chatRequest struct {
	VideoID   string `json:"video_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.VideoID == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "video_id and message are required")
		return
	}

	ctx := r.Context()
	v, err := s.store.GetVideo(ctx, req.VideoID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "unknown video")
			return
		}
		logging.Errorf("[server] chat video=%s: %v", req.VideoID, err)
		respondError(w, http.StatusInternalServerError, "internal", "storage error")
		return
	}
	if v.Status != sqlite.StatusReady {
		respondError(w, http.StatusConflict, "not_ready", "video is not indexed yet (status: "+v.Status+")")
		return
	}

	answer, err := s.chat.Ask(ctx, req.VideoID, req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "session_not_found", "unknown or expired session")
		case errors.Is(err, chat.ErrSessionVideoMismatch):
			respondError(w, http.StatusConflict, "session_mismatch", "session belongs to a different video")
		case errors.Is(err, index.ErrNotIndexed):
			respondError(w, http.StatusConflict, "not_ready", "video is not indexed yet")
		default:
			logging.Errorf("[server] chat video=%s: %v", req.VideoID, err)
			respondError(w, http.StatusBadGateway, "llm_failed", "answer generation failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, answer)
}
