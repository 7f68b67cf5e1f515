package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolInvalidConfig(t *testing.T) {
	_, err := NewPool("bad", ExtractionPool, nil)
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)

	_, err = NewPool("bad", ExtractionPool, &Config{Capacity: 0})
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestForEachRunsEveryIndex(t *testing.T) {
	p, err := NewPool("extract", ExtractionPool, ExtractionPoolConfig(3))
	require.NoError(t, err)
	defer p.Release()

	results := make([]int, 50)
	require.NoError(t, p.ForEach(context.Background(), len(results), func(i int) {
		results[i] = i * i
	}))

	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
	assert.Equal(t, 3, p.Cap())
}

func TestForEachCancelled(t *testing.T) {
	p, err := NewPool("extract", ExtractionPool, ExtractionPoolConfig(2))
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	err = p.ForEach(ctx, 10, func(int) { ran.Add(1) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), ran.Load())
}

func TestSubmitWithContextSkipsCancelled(t *testing.T) {
	p, err := NewPool("bg", BackgroundPool, BackgroundPoolConfig())
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() { ran.Add(1) }), context.Canceled)

	done := make(chan struct{})
	require.NoError(t, p.SubmitWithContext(context.Background(), func() {
		ran.Add(1)
		close(done)
	}))
	<-done
	assert.Equal(t, int32(1), ran.Load())
}

func TestBackgroundPoolRejectsWhenBusy(t *testing.T) {
	p, err := NewPool("bg", BackgroundPool, BackgroundPoolConfig())
	require.NoError(t, err)
	defer p.Release()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolOverload)
	close(release)
	assert.Equal(t, int64(1), p.Stats().Rejected)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("x", BackgroundPool, BackgroundPoolConfig())
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestStatsCountCompleted(t *testing.T) {
	p, err := NewPool("x", ExtractionPool, ExtractionPoolConfig(4))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() { defer wg.Done() }))
	}
	wg.Wait()
	require.NoError(t, p.ReleaseTimeout(time.Second))

	assert.Eventually(t, func() bool { return p.Stats().Completed == 8 }, time.Second, 10*time.Millisecond)
}
