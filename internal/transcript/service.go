package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tubeqa/internal/cache"
	"tubeqa/internal/logging"
	"tubeqa/internal/store/sqlite"
	"tubeqa/internal/youtube"
)

// Transcript sources, in fallback order.
const (
	SourceCaptions  = "captions"
	SourceWhisper   = "whisper"
	SourceGoogleSTT = "google_stt"
)

// ErrNoTranscript indicates every acquisition stage failed.
var ErrNoTranscript = fmt.Errorf("transcript: no transcript available")

// Result is an acquired transcript plus where it came from.
type Result struct {
	VideoID  string
	Title    string
	Duration time.Duration
	Text     string
	Source   string
}

// CaptionClient is the slice of the youtube client the chain needs.
type CaptionClient interface {
	GetVideoInfo(ctx context.Context, videoID string) (*youtube.VideoInfo, error)
	FetchTrack(ctx context.Context, track *youtube.CaptionTrack) ([]youtube.Segment, error)
}

// AudioDownloader fetches a video's audio as a local wav file. cleanup
// removes the temporary files and is safe to call unconditionally.
type AudioDownloader interface {
	Download(ctx context.Context, videoID string) (path string, cleanup func(), err error)
}

// Recognizer turns a local audio file into text.
type Recognizer interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TranscriptStore is the persistence slice used for lookups and write-through.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, videoID string) (*sqlite.Transcript, error)
	UpsertTranscript(ctx context.Context, t *sqlite.Transcript) error
}

// Service runs the provider fallback chain:
// cache -> store -> captions -> recognizers over downloaded audio.
type Service struct {
	captions    CaptionClient
	downloader  AudioDownloader
	recognizers []Recognizer
	cache       cache.TranscriptCache
	store       TranscriptStore
	languages   []string
}

// Config wires the chain. Captions is required; everything else is
// optional and its stage is skipped when absent.
type Config struct {
	Captions    CaptionClient
	Downloader  AudioDownloader
	Recognizers []Recognizer
	Cache       cache.TranscriptCache
	Store       TranscriptStore
	Languages   []string
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Captions == nil {
		return nil, fmt.Errorf("transcript: caption client is required")
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"en", "hi"}
	}
	return &Service{
		captions:    cfg.Captions,
		downloader:  cfg.Downloader,
		recognizers: cfg.Recognizers,
		cache:       cfg.Cache,
		store:       cfg.Store,
		languages:   languages,
	}, nil
}

// Get acquires a transcript for the video, trying each stage in order.
func (s *Service) Get(ctx context.Context, videoID string) (*Result, error) {
	if cached := s.fromCache(ctx, videoID); cached != nil {
		return cached, nil
	}
	if stored := s.fromStore(ctx, videoID); stored != nil {
		return stored, nil
	}

	result, err := s.fromCaptions(ctx, videoID)
	if err == nil {
		s.persist(ctx, result)
		return result, nil
	}
	logging.Infof("[transcript] video=%s captions unavailable: %v", videoID, err)

	// carry title/duration into the audio fallback result when the player
	// responded even though captions did not work out
	var info *youtube.VideoInfo
	if vi, infoErr := s.captions.GetVideoInfo(ctx, videoID); infoErr == nil {
		info = vi
	}

	result, err = s.fromAudio(ctx, videoID, info)
	if err != nil {
		logging.Errorf("[transcript] video=%s all stages failed: %v", videoID, err)
		return nil, fmt.Errorf("%w: %v", ErrNoTranscript, err)
	}
	s.persist(ctx, result)
	return result, nil
}

func (s *Service) fromCache(ctx context.Context, videoID string) *Result {
	if s.cache == nil {
		return nil
	}
	cached, ok, err := s.cache.Get(ctx, videoID)
	if err != nil {
		logging.Errorf("[transcript] video=%s cache read: %v", videoID, err)
		return nil
	}
	if !ok {
		return nil
	}
	logging.Debugf("[transcript] video=%s served from cache", videoID)
	return &Result{VideoID: videoID, Text: cached.Text, Source: cached.Source}
}

func (s *Service) fromStore(ctx context.Context, videoID string) *Result {
	if s.store == nil {
		return nil
	}
	stored, err := s.store.GetTranscript(ctx, videoID)
	if err != nil {
		if !errors.Is(err, sqlite.ErrNotFound) {
			logging.Errorf("[transcript] video=%s store read: %v", videoID, err)
		}
		return nil
	}
	result := &Result{VideoID: videoID, Text: stored.Text, Source: stored.Source}
	if s.cache != nil {
		if err := s.cache.Set(ctx, videoID, &cache.CachedTranscript{
			Text:      stored.Text,
			Source:    stored.Source,
			FetchedAt: stored.FetchedAt,
		}); err != nil {
			logging.Errorf("[transcript] video=%s cache backfill: %v", videoID, err)
		}
	}
	return result
}

func (s *Service) fromCaptions(ctx context.Context, videoID string) (*Result, error) {
	info, err := s.captions.GetVideoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, err := youtube.SelectTrack(info.Tracks, s.languages)
	if err != nil {
		return nil, err
	}
	segments, err := s.captions.FetchTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	text := youtube.JoinSegments(segments)
	if text == "" {
		return nil, fmt.Errorf("caption track is empty")
	}
	logging.Infof("[transcript] video=%s captions retrieved (lang=%s auto=%v)",
		videoID, track.LanguageCode, track.AutoGenerated())
	return &Result{
		VideoID:  videoID,
		Title:    info.Title,
		Duration: info.Duration,
		Text:     text,
		Source:   SourceCaptions,
	}, nil
}

func (s *Service) fromAudio(ctx context.Context, videoID string, info *youtube.VideoInfo) (*Result, error) {
	if s.downloader == nil || len(s.recognizers) == 0 {
		return nil, fmt.Errorf("no audio fallback configured")
	}

	audioPath, cleanup, err := s.downloader.Download(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	defer cleanup()

	var lastErr error
	for _, rec := range s.recognizers {
		text, err := rec.Transcribe(ctx, audioPath)
		if err != nil {
			logging.Errorf("[transcript] video=%s %s failed: %v", videoID, rec.Name(), err)
			lastErr = err
			continue
		}
		if text == "" {
			lastErr = fmt.Errorf("%s returned empty text", rec.Name())
			continue
		}
		logging.Infof("[transcript] video=%s transcribed via %s", videoID, rec.Name())
		result := &Result{VideoID: videoID, Text: text, Source: rec.Name()}
		if info != nil {
			result.Title = info.Title
			result.Duration = info.Duration
		}
		return result, nil
	}
	return nil, fmt.Errorf("all recognizers failed: %w", lastErr)
}

func (s *Service) persist(ctx context.Context, r *Result) {
	now := time.Now().UTC()
	if s.cache != nil {
		if err := s.cache.Set(ctx, r.VideoID, &cache.CachedTranscript{
			Text:      r.Text,
			Source:    r.Source,
			FetchedAt: now,
		}); err != nil {
			logging.Errorf("[transcript] video=%s cache write: %v", r.VideoID, err)
		}
	}
	if s.store != nil {
		if err := s.store.UpsertTranscript(ctx, &sqlite.Transcript{
			VideoID:   r.VideoID,
			Source:    r.Source,
			Text:      r.Text,
			FetchedAt: now,
		}); err != nil {
			logging.Errorf("[transcript] video=%s store write: %v", r.VideoID, err)
		}
	}
}
