package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{TTL: time.Minute, MaxEntries: 4})

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	value := []byte(`{"country":"Deutschland"}`)
	require.NoError(t, c.Set(ctx, "k", value))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"country":"Deutschland"}`, string(got))
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{TTL: time.Minute})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	now = now.Add(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestMemoryCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{TTL: time.Hour, MaxEntries: 2})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))
	require.NoError(t, c.Set(ctx, "c", []byte("3")))

	require.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "a")
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	require.True(t, ok)
}

func TestSignatureIsCaseSensitiveAndTrimmed(t *testing.T) {
	require.Equal(t, Signature("abc"), Signature(" abc "))
	require.NotEqual(t, Signature("abc"), Signature("ABC"))
	require.Len(t, Signature("x"), 64)
}

func TestMemoryCacheExpiredReadKeepsConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{TTL: time.Minute})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("stale")))
	now = now.Add(2 * time.Minute)

	// The first clock read inside Get happens after the stale entry was
	// loaded; refresh the key at that point like a racing writer would.
	refreshed := false
	c.now = func() time.Time {
		if !refreshed {
			refreshed = true
			require.NoError(t, c.Set(ctx, "k", []byte("fresh")))
		}
		return now
	}

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, refreshed)

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", string(got))
}
