package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func TestMemoryGetSetInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got view
	hit, err := m.Get(ctx, EventKey("e1"), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, m.Set(ctx, EventKey("e1"), view{Name: "Movie Night", Score: 2}))
	require.NoError(t, m.Set(ctx, EventLeaderboardKey("e1"), []view{{Name: "a"}}))

	hit, err = m.Get(ctx, EventKey("e1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, view{Name: "Movie Night", Score: 2}, got)

	require.NoError(t, m.Invalidate(ctx, EventKeys("e1")...))
	assert.False(t, m.Has(EventKey("e1")))
	assert.False(t, m.Has(EventLeaderboardKey("e1")))
}

func TestEventKeys(t *testing.T) {
	assert.Equal(t, "event:abc", EventKey("abc"))
	assert.Equal(t, "event:abc:leaderboard", EventLeaderboardKey("abc"))
}

func TestNoopNeverHits(t *testing.T) {
	var n Noop
	require.NoError(t, n.Set(context.Background(), "k", 1))
	var v int
	hit, err := n.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}
