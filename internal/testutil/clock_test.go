package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestStepClock_FirstReadingIsStart(t *testing.T) {
	clock := NewStepClock(start, time.Second)
	assert.Equal(t, start, clock.Now())
	assert.Equal(t, int64(1), clock.Readings())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	clock := NewStepClock(start, 250*time.Millisecond)

	clock.Now()
	assert.Equal(t, start.Add(250*time.Millisecond), clock.Now())
	assert.Equal(t, start.Add(500*time.Millisecond), clock.Now())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(start, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Readings())
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_ConcurrentReadingsAreDistinct(t *testing.T) {
	clock := NewStepClock(start, time.Millisecond)
	const n = 100

	var mu sync.Mutex
	seen := map[time.Time]bool{}
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := clock.Now()
			mu.Lock()
			seen[now] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	assert.Equal(t, int64(n), clock.Readings())
}
