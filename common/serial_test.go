package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialCounterStartsAtOne(t *testing.T) {
	c := NewSerialCounter()
	assert.Equal(t, Serial(1), c.Peek())
	assert.Equal(t, Serial(1), c.Issue())
	assert.Equal(t, Serial(2), c.Issue())
	assert.Equal(t, Serial(3), c.Peek())
}

func TestSerialCounterZeroValue(t *testing.T) {
	var c SerialCounter
	assert.Equal(t, Serial(1), c.Issue())
}

func TestSerialCounterStrictlyIncreasing(t *testing.T) {
	c := NewSerialCounter()
	prev := Serial(0)
	for range 100 {
		s := c.Issue()
		require.Greater(t, s, prev)
		prev = s
	}
}

func TestSerialCounterReset(t *testing.T) {
	c := NewSerialCounter()
	c.Issue()
	c.Issue()
	c.Reset()
	assert.Equal(t, Serial(1), c.Issue())
}

func TestSerialCountersAreIndependent(t *testing.T) {
	a, b := NewSerialCounter(), NewSerialCounter()
	a.Issue()
	a.Issue()
	assert.Equal(t, Serial(1), b.Issue())
	assert.Equal(t, Serial(3), a.Issue())
}

func TestSerialCounterConcurrentIssueIsUnique(t *testing.T) {
	c := NewSerialCounter()
	const goroutines, perGoroutine = 8, 250

	var mu sync.Mutex
	seen := make(map[Serial]struct{}, goroutines*perGoroutine)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]Serial, 0, perGoroutine)
			for range perGoroutine {
				local = append(local, c.Issue())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, s := range local {
				seen[s] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, Serial(goroutines*perGoroutine+1), c.Peek())
}
