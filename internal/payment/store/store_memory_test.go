package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark is fresh, second is not", func(t *testing.T) {
		s := NewInMemory()
		fresh, err := s.MarkProcessed(ctx, "ev-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = s.MarkProcessed(ctx, "ev-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("distinct ids are independent", func(t *testing.T) {
		s := NewInMemory()
		fresh, err := s.MarkProcessed(ctx, "ev-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = s.MarkProcessed(ctx, "ev-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("expired markers are forgotten", func(t *testing.T) {
		s := NewInMemory()
		now := time.Now()
		s.now = func() time.Time { return now }

		fresh, err := s.MarkProcessed(ctx, "ev-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)

		s.now = func() time.Time { return now.Add(2 * time.Minute) }
		fresh, err = s.MarkProcessed(ctx, "ev-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)
	})
}
