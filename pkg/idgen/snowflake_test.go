package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsWorkerIDOutOfRange(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)

	_, err = New(maxWorkerID + 1)
	assert.Error(t, err)

	s, err := New(maxWorkerID)
	require.NoError(t, err)
	assert.NotZero(t, s.Generate())
}

func TestGenerateIsUniqueUnderConcurrency(t *testing.T) {
	s, err := New(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 2000
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- s.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestSequenceRollsOverToNextMillisecond(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)

	clock := epoch + 1000
	calls := 0
	s.now = func() int64 {
		calls++
		// 序列号耗尽后第一次自旋时推进时钟
		if calls > maxSequence+2 {
			return clock + 1
		}
		return clock
	}

	var last int64
	for i := 0; i <= maxSequence+1; i++ {
		id := s.Generate()
		assert.Greater(t, id, last)
		last = id
	}
	assert.Equal(t, clock+1, s.timestamp)
}

func TestGenerateNumbersHavePrefix(t *testing.T) {
	orderNo := GenerateOrderNo()
	recordNo := GenerateRecordNo()

	assert.True(t, strings.HasPrefix(orderNo, PrefixOrder))
	assert.True(t, strings.HasPrefix(recordNo, PrefixRecord))
	assert.Len(t, orderNo, len(PrefixOrder)+14+8)
	assert.NotEqual(t, GenerateOrderNo(), orderNo)
}
