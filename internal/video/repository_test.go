package video

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryTests exercises the Repository contract against any adapter.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("create then find", func(t *testing.T) {
		repo := newRepo(t)
		v := New("user-1", "first", "desc")

		require.NoError(t, repo.Create(ctx, v))

		found, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, found.ID)
		assert.Equal(t, "user-1", found.UserID)
		assert.Equal(t, "first", found.Title)
		assert.Equal(t, "desc", found.Description)
		assert.Empty(t, found.VideoURL)
		assert.True(t, v.CreatedAt.Equal(found.CreatedAt), "created_at %v != %v", v.CreatedAt, found.CreatedAt)
	})

	t.Run("create duplicate", func(t *testing.T) {
		repo := newRepo(t)
		v := New("user-1", "dup", "")

		require.NoError(t, repo.Create(ctx, v))
		assert.ErrorIs(t, repo.Create(ctx, v), ErrAlreadyExists)
	})

	t.Run("find missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save updates fields", func(t *testing.T) {
		repo := newRepo(t)
		v := New("user-1", "title", "")
		require.NoError(t, repo.Create(ctx, v))

		v.SetVideoKey("videos/portrait/abc.mp4")
		v.SetThumbnailURL("/assets/thumb.png")
		require.NoError(t, repo.Save(ctx, v))

		found, err := repo.FindByID(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, "videos/portrait/abc.mp4", found.VideoURL)
		assert.Equal(t, "/assets/thumb.png", found.ThumbnailURL)
		assert.True(t, found.HasVideo())
	})

	t.Run("save missing", func(t *testing.T) {
		repo := newRepo(t)
		assert.ErrorIs(t, repo.Save(ctx, New("user-1", "ghost", "")), ErrNotFound)
	})

	t.Run("list by user newest first", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		older := NewWithID("a-older", "user-1", "older", "")
		older.CreatedAt = base
		newer := NewWithID("b-newer", "user-1", "newer", "")
		newer.CreatedAt = base.Add(time.Hour)
		other := NewWithID("c-other", "user-2", "other", "")
		other.CreatedAt = base.Add(2 * time.Hour)

		for _, v := range []*Video{older, newer, other} {
			require.NoError(t, repo.Create(ctx, v))
		}

		list, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b-newer", list[0].ID)
		assert.Equal(t, "a-older", list[1].ID)
	})

	t.Run("list for unknown user is empty", func(t *testing.T) {
		repo := newRepo(t)
		list, err := repo.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})
}
