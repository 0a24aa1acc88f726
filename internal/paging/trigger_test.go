package paging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerFiresOnEnteringEdgeOnly(t *testing.T) {
	loads := 0
	tr := NewTrigger(func(context.Context) error { loads++; return nil })
	ctx := context.Background()

	fired, err := tr.Observe(ctx, "s1", true)
	require.NoError(t, err)
	assert.False(t, fired, "nothing attached yet")

	tr.Attach("s1")
	fired, _ = tr.Observe(ctx, "s1", true)
	assert.True(t, fired)
	fired, _ = tr.Observe(ctx, "s1", true)
	assert.False(t, fired, "still visible is not a new edge")
	fired, _ = tr.Observe(ctx, "s1", false)
	assert.False(t, fired)
	fired, _ = tr.Observe(ctx, "s1", true)
	assert.True(t, fired)
	assert.Equal(t, 2, loads)
}

func TestTriggerIgnoresReplacedSentinel(t *testing.T) {
	loads := 0
	tr := NewTrigger(func(context.Context) error { loads++; return nil })
	ctx := context.Background()

	tr.Attach("s1")
	tr.Attach("s2")
	assert.Equal(t, "s2", tr.Current())

	fired, _ := tr.Observe(ctx, "s1", true)
	assert.False(t, fired)
	fired, _ = tr.Observe(ctx, "s2", true)
	assert.True(t, fired)

	tr.Attach("s2")
	fired, _ = tr.Observe(ctx, "s2", true)
	assert.False(t, fired, "re-attaching the same sentinel keeps its visibility")

	tr.Detach("s1")
	assert.Equal(t, "s2", tr.Current())
	tr.Detach("s2")
	assert.Equal(t, "", tr.Current())
	fired, _ = tr.Observe(ctx, "s2", true)
	assert.False(t, fired)
	assert.Equal(t, 1, loads)
}

func TestTriggerDrivesController(t *testing.T) {
	c := NewController(rangeFetcher(25, nil), "", Options{PageSize: 10, Logger: quietLogger()})
	tr := NewTrigger(c.LoadMore)
	ctx := context.Background()
	require.NoError(t, c.InitialLoad(ctx))

	tr.Attach("after-10")
	_, err := tr.Observe(ctx, "after-10", true)
	require.NoError(t, err)
	assert.Len(t, c.Snapshot().Items, 20)

	tr.Attach("after-20")
	_, err = tr.Observe(ctx, "after-20", true)
	require.NoError(t, err)
	assert.Len(t, c.Snapshot().Items, 25)
}
