package workers

import (
	"context"
	"errors"
	"fmt"

	"tubeqa/internal/cache"
	"tubeqa/internal/chunk"
	"tubeqa/internal/embed"
	"tubeqa/internal/hashutil"
	"tubeqa/internal/index"
	"tubeqa/internal/logging"
	"tubeqa/internal/store/sqlite"
	"tubeqa/internal/transcript"
)

// TranscriptGetter is the transcript chain dependency.
type TranscriptGetter interface {
	Get(ctx context.Context, videoID string) (*transcript.Result, error)
}

// VideoStore is the persistence slice the processor needs.
type VideoStore interface {
	GetVideo(ctx context.Context, videoID string) (*sqlite.Video, error)
	UpsertVideo(ctx context.Context, v *sqlite.Video) error
	SetVideoStatus(ctx context.Context, videoID, status, errText string) error
	ReplaceChunks(ctx context.Context, videoID string, chunks []sqlite.StoredChunk) error
}

// Processor runs the full ingest for one video: transcript chain, fixed
// size chunking, batch embedding and persistence. When a registry is set
// the fresh index is also swapped in-process.
type Processor struct {
	transcripts TranscriptGetter
	splitter    *chunk.Splitter
	embedder    embed.Embedder
	embedModel  string
	embCache    cache.EmbeddingCache
	store       VideoStore
	registry    *index.Registry
}

// ProcessorConfig wires a Processor.
type ProcessorConfig struct {
	Transcripts TranscriptGetter
	Splitter    *chunk.Splitter
	Embedder    embed.Embedder
	EmbedModel  string
	EmbedCache  cache.EmbeddingCache
	Store       VideoStore
	Registry    *index.Registry
}

func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Transcripts == nil || cfg.Embedder == nil || cfg.Store == nil {
		return nil, fmt.Errorf("workers: transcripts, embedder and store are required")
	}
	splitter := cfg.Splitter
	if splitter == nil {
		var err error
		splitter, err = chunk.NewSplitter(0, 0)
		if err != nil {
			return nil, err
		}
	}
	return &Processor{
		transcripts: cfg.Transcripts,
		splitter:    splitter,
		embedder:    cfg.Embedder,
		embedModel:  cfg.EmbedModel,
		embCache:    cfg.EmbedCache,
		store:       cfg.Store,
		registry:    cfg.Registry,
	}, nil
}

// Process ingests one video and flips its status to ready or failed.
func (p *Processor) Process(ctx context.Context, videoID string) error {
	if err := p.markProcessing(ctx, videoID); err != nil {
		return err
	}

	if err := p.ingest(ctx, videoID); err != nil {
		if statusErr := p.store.SetVideoStatus(ctx, videoID, sqlite.StatusFailed, err.Error()); statusErr != nil {
			logging.Errorf("[ingest] video=%s mark failed: %v", videoID, statusErr)
		}
		return err
	}
	return p.store.SetVideoStatus(ctx, videoID, sqlite.StatusReady, "")
}

func (p *Processor) markProcessing(ctx context.Context, videoID string) error {
	err := p.store.SetVideoStatus(ctx, videoID, sqlite.StatusProcessing, "")
	if errors.Is(err, sqlite.ErrNotFound) {
		// a job can outlive its row (fresh DB, replayed topic): recreate it
		return p.store.UpsertVideo(ctx, &sqlite.Video{
			VideoID: videoID,
			Status:  sqlite.StatusProcessing,
		})
	}
	return err
}

func (p *Processor) ingest(ctx context.Context, videoID string) error {
	result, err := p.transcripts.Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}

	if result.Title != "" || result.Duration > 0 {
		if err := p.store.UpsertVideo(ctx, &sqlite.Video{
			VideoID:     videoID,
			Title:       result.Title,
			DurationSec: int(result.Duration.Seconds()),
			Status:      sqlite.StatusProcessing,
			Source:      result.Source,
		}); err != nil {
			return err
		}
	}

	chunks := p.splitter.Split(result.Text)
	if len(chunks) == 0 {
		return fmt.Errorf("transcript produced no chunks")
	}

	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	stored := make([]sqlite.StoredChunk, len(chunks))
	ix := index.New()
	for i, c := range chunks {
		stored[i] = sqlite.StoredChunk{Chunk: c, Embedding: vectors[i]}
		if err := ix.Add(c.Ordinal, c.Text, vectors[i]); err != nil {
			return fmt.Errorf("index chunk %d: %w", c.Ordinal, err)
		}
	}

	if err := p.store.ReplaceChunks(ctx, videoID, stored); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}
	if p.registry != nil {
		p.registry.Put(videoID, ix)
	}

	logging.Infof("[ingest] video=%s ready (source=%s chunks=%d)", videoID, result.Source, len(chunks))
	return nil
}

// embedChunks resolves vectors through the embedding cache, batching only
// the misses through the API.
func (p *Processor) embedChunks(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	var missTexts []string
	var missIdx []int

	for i, c := range chunks {
		if p.embCache == nil {
			missTexts = append(missTexts, c.Text)
			missIdx = append(missIdx, i)
			continue
		}
		key := hashutil.HashStrings(p.embedModel, c.Text)
		vec, ok, err := p.embCache.Get(ctx, key)
		if err != nil {
			logging.Errorf("[ingest] embedding cache read: %v", err)
		}
		if ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, c.Text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := p.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		for j, i := range missIdx {
			vectors[i] = fresh[j]
			if p.embCache != nil {
				key := hashutil.HashStrings(p.embedModel, missTexts[j])
				if err := p.embCache.Set(ctx, key, fresh[j]); err != nil {
					logging.Errorf("[ingest] embedding cache write: %v", err)
				}
			}
		}
	}
	return vectors, nil
}
