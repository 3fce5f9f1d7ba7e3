package storage

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoKey(t *testing.T) {
	keyPattern := regexp.MustCompile(`^videos/landscape/[A-Za-z0-9_-]{43}\.mp4$`)

	t.Run("builds namespaced key", func(t *testing.T) {
		key, err := VideoKey("landscape", "mp4")
		require.NoError(t, err)
		assert.Regexp(t, keyPattern, key)
	})

	t.Run("accepts extension with leading dot", func(t *testing.T) {
		key, err := VideoKey("landscape", ".mp4")
		require.NoError(t, err)
		assert.Regexp(t, keyPattern, key)
	})

	t.Run("omits dot when extension is empty", func(t *testing.T) {
		key, err := VideoKey("other", "")
		require.NoError(t, err)
		assert.Regexp(t, `^videos/other/[A-Za-z0-9_-]{43}$`, key)
	})

	t.Run("keys are unique", func(t *testing.T) {
		a, err := VideoKey("portrait", "mp4")
		require.NoError(t, err)
		b, err := VideoKey("portrait", "mp4")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects bad namespace", func(t *testing.T) {
		for _, ns := range []string{"", "a/b", `a\b`} {
			_, err := VideoKey(ns, "mp4")
			assert.True(t, errors.Is(err, ErrInvalidName), "namespace %q", ns)
		}
	})
}
