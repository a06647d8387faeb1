package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// DefaultPageSize is the largest page the Spotify paging endpoints serve.
const DefaultPageSize = 50

// Cursor is the position of a fetch within a collection.
type Cursor struct {
	Offset   int
	PageSize int
	HasMore  bool
}

// PageFunc fetches the page starting at cursor.Offset.
type PageFunc[T any] func(ctx context.Context, cursor Cursor) (*models.Page[T], error)

// Fetcher accumulates paginated collections. It is safe for concurrent use;
// fetches for different keys run independently.
type Fetcher[T any] struct {
	phase Phase
	valid func(T) bool

	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
}

type flight struct {
	id     uint64
	cancel context.CancelFunc
}

// NewFetcher creates a fetcher reporting progress under phase. A nil valid
// keeps every item.
func NewFetcher[T any](phase Phase, valid func(T) bool) *Fetcher[T] {
	return &Fetcher[T]{phase: phase, valid: valid, inflight: make(map[string]flight)}
}

// Fetch collects every valid item of the collection identified by key,
// starting at start. A later Fetch for the same key supersedes this one.
func (f *Fetcher[T]) Fetch(ctx context.Context, key string, start Cursor, page PageFunc[T], progress chan<- ProgressUpdate) ([]T, error) {
	ctx, id := f.begin(ctx, key)
	defer f.finish(key, id)

	cursor := start
	if cursor.PageSize <= 0 {
		cursor.PageSize = DefaultPageSize
	}
	cursor.HasMore = true

	var items []T
	for n := 1; cursor.HasMore; n++ {
		p, err := page(ctx, cursor)
		if !f.current(key, id) {
			return nil, shared.ErrSuperseded
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d of %s: %w", n, key, err)
		}

		for _, item := range p.Items {
			if f.valid == nil || f.valid(item) {
				items = append(items, item)
			}
		}

		cursor.Offset += len(p.Items)
		cursor.HasMore = p.HasNext() && len(p.Items) > 0
		sendProgress(progress, pageUpdate(f.phase, n, cursor.Offset, p.Total))
	}

	if !f.finish(key, id) {
		return nil, shared.ErrSuperseded
	}
	return items, nil
}

// begin registers a fetch for key, cancelling the one it replaces.
func (f *Fetcher[T]) begin(ctx context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if prev, ok := f.inflight[key]; ok {
		prev.cancel()
	}
	f.seq++
	f.inflight[key] = flight{id: f.seq, cancel: cancel}
	return ctx, f.seq
}

func (f *Fetcher[T]) current(key string, id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight[key].id == id
}

// finish releases the fetch and reports whether it was still current.
func (f *Fetcher[T]) finish(key string, id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl, ok := f.inflight[key]
	if !ok || fl.id != id {
		return false
	}
	fl.cancel()
	delete(f.inflight, key)
	return true
}
