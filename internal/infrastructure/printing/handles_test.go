package printing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleTable_AcquireRelease(t *testing.T) {
	table := NewHandleTable()

	ctx, release := table.Acquire(context.Background(), "req-1")
	assert.Equal(t, 1, table.Len())
	assert.NoError(t, ctx.Err())

	release()
	assert.Equal(t, 0, table.Len())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestHandleTable_CancelTargetsOneRequest(t *testing.T) {
	table := NewHandleTable()

	ctx1, release1 := table.Acquire(context.Background(), "req-1")
	defer release1()
	ctx2, release2 := table.Acquire(context.Background(), "req-2")
	defer release2()

	assert.True(t, table.Cancel("req-1"))
	assert.ErrorIs(t, ctx1.Err(), context.Canceled)
	assert.NoError(t, ctx2.Err())
	assert.Equal(t, 1, table.Len())

	assert.False(t, table.Cancel("req-1"))
	assert.False(t, table.Cancel("unknown"))
}

func TestHandleTable_EmptyIDIsNotTracked(t *testing.T) {
	table := NewHandleTable()

	ctx, release := table.Acquire(context.Background(), "")
	assert.Equal(t, 0, table.Len())
	release()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestHandleTable_StaleReleaseKeepsNewerEntry(t *testing.T) {
	table := NewHandleTable()

	_, releaseOld := table.Acquire(context.Background(), "req-1")
	ctxNew, releaseNew := table.Acquire(context.Background(), "req-1")
	defer releaseNew()

	releaseOld()
	assert.Equal(t, 1, table.Len())
	assert.NoError(t, ctxNew.Err())

	assert.True(t, table.Cancel("req-1"))
	assert.ErrorIs(t, ctxNew.Err(), context.Canceled)
}

func TestHandleTable_ParentCancellationPropagates(t *testing.T) {
	table := NewHandleTable()
	parent, cancel := context.WithCancel(context.Background())

	ctx, release := table.Acquire(parent, "req-1")
	defer release()

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestHandleTable_CancelAll(t *testing.T) {
	table := NewHandleTable()
	var ctxs []context.Context
	for _, id := range []string{"a", "b", "c"} {
		ctx, release := table.Acquire(context.Background(), id)
		defer release()
		ctxs = append(ctxs, ctx)
	}

	assert.Equal(t, 3, table.CancelAll())
	assert.Equal(t, 0, table.Len())
	for _, ctx := range ctxs {
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	}
}

func TestHandleTable_Concurrent(t *testing.T) {
	table := NewHandleTable()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			_, release := table.Acquire(context.Background(), id)
			table.Cancel(id)
			release()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, table.Len())
}
