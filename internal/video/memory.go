package video

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[string]*Video
}

// NewMemoryRepository creates a new in-memory video repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos: make(map[string]*Video),
	}
}

// Create stores a clone of v.
func (r *MemoryRepository) Create(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.ID]; ok {
		return ErrAlreadyExists
	}
	r.videos[v.ID] = v.Clone()
	return nil
}

// FindByID retrieves a video by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v.Clone(), nil
}

// Save replaces the stored video with a clone of v.
func (r *MemoryRepository) Save(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.ID]; !ok {
		return ErrNotFound
	}
	r.videos[v.ID] = v.Clone()
	return nil
}

// ListByUser returns clones of the user's videos, newest first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Video, 0)
	for _, v := range r.videos {
		if v.UserID == userID {
			result = append(result, v.Clone())
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func sortNewestFirst(videos []*Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}
