package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_GetSet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "aws-us-west-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "aws-us-west-1", "2016-05-01T00:10:00Z"))

	v, ok, err := s.Get(ctx, "aws-us-west-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2016-05-01T00:10:00Z", v)
}

func TestStore_ConcurrentStreamsIndependent(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("stream-%d", i)
			for j := 0; j < 100; j++ {
				_ = s.Set(ctx, id, fmt.Sprintf("mark-%d", j))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		v, ok, err := s.Get(ctx, fmt.Sprintf("stream-%d", i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "mark-99", v)
	}
}
