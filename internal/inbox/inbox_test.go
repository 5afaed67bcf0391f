package inbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsiyukino/yukiframe/internal/frameerr"
	"github.com/tsiyukino/yukiframe/internal/inbox"
)

func TestAddPeekRemoveFIFO(t *testing.T) {
	t.Parallel()

	q := inbox.New(3, inbox.DropNewest)
	require.NoError(t, q.Add("a"))
	require.NoError(t, q.Add("b"))
	assert.Equal(t, 2, q.Count())

	msg, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", msg)

	q.Remove()
	assert.Equal(t, 1, q.Count())
	assert.Equal(t, uint64(1), q.Delivered())

	msg, ok = q.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", msg)
}

func TestDropNewestRejectsWhenFull(t *testing.T) {
	t.Parallel()

	q := inbox.New(2, inbox.DropNewest)
	require.NoError(t, q.Add("a"))
	require.NoError(t, q.Add("b"))

	err := q.Add("c")
	require.Error(t, err)
	assert.Equal(t, frameerr.QueueFull, frameerr.KindOf(err))
	assert.Equal(t, uint64(1), q.Dropped())

	msg, _ := q.Peek()
	assert.Equal(t, "a", msg, "oldest message must survive a DropNewest rejection")
}

func TestDropOldestEvictsHead(t *testing.T) {
	t.Parallel()

	q := inbox.New(2, inbox.DropOldest)
	require.NoError(t, q.Add("a"))
	require.NoError(t, q.Add("b"))
	require.NoError(t, q.Add("c"))

	assert.Equal(t, 2, q.Count())
	assert.Equal(t, uint64(1), q.Dropped())

	msg, _ := q.Peek()
	assert.Equal(t, "b", msg)
}

func TestClearPreservesLifetimeCounters(t *testing.T) {
	t.Parallel()

	q := inbox.New(2, inbox.DropOldest)
	require.NoError(t, q.Add("a"))
	q.Remove()
	require.NoError(t, q.Add("b"))

	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, uint64(1), q.Delivered())
}

func TestDefaultCapacityFallback(t *testing.T) {
	t.Parallel()

	q := inbox.New(0, inbox.DropNewest)
	assert.Equal(t, inbox.DefaultCapacity, q.Capacity())
}
