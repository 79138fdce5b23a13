package index

import (
	"context"
	"fmt"
	"sync"
)

// ErrNotIndexed indicates no index exists for the video and the loader
// found nothing persisted either.
var ErrNotIndexed = fmt.Errorf("index: video is not indexed")

// Loader hydrates an index from persisted chunk embeddings. Returning
// (nil, nil) means nothing is persisted for that video.
type Loader interface {
	LoadIndex(ctx context.Context, videoID string) (*Index, error)
}

// Registry is the process-wide map of video ID to index, with lazy loading
// from persistent storage.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
	loader  Loader
}

// NewRegistry builds a registry. loader may be nil when persistence is off.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		indexes: make(map[string]*Index),
		loader:  loader,
	}
}

// Put registers an in-memory index for a video, replacing any previous one.
func (r *Registry) Put(videoID string, ix *Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[videoID] = ix
}

// Get returns the index for a video, loading it from storage on first use.
func (r *Registry) Get(ctx context.Context, videoID string) (*Index, error) {
	r.mu.RLock()
	ix, ok := r.indexes[videoID]
	r.mu.RUnlock()
	if ok {
		return ix, nil
	}

	if r.loader == nil {
		return nil, ErrNotIndexed
	}
	loaded, err := r.loader.LoadIndex(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load index for %s: %w", videoID, err)
	}
	if loaded == nil || loaded.Len() == 0 {
		return nil, ErrNotIndexed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another goroutine may have loaded it meanwhile; keep the first
	if existing, ok := r.indexes[videoID]; ok {
		return existing, nil
	}
	r.indexes[videoID] = loaded
	return loaded, nil
}

// Drop removes a video's index from memory.
func (r *Registry) Drop(videoID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, videoID)
}

// Len reports how many indexes are resident.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indexes)
}
