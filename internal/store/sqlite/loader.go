package sqlite

import (
	"context"

	"tubeqa/internal/index"
)

// LoadIndex hydrates an in-memory index from a video's persisted chunks.
// Returns (nil, nil) when nothing is stored, per the index.Loader contract.
func (s *Store) LoadIndex(ctx context.Context, videoID string) (*index.Index, error) {
	chunks, err := s.GetChunks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	ix := index.New()
	for _, c := range chunks {
		if err := ix.Add(c.Ordinal, c.Text, c.Embedding); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

var _ index.Loader = (*Store)(nil)
