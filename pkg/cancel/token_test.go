package cancel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToken_SetIsIdempotent(t *testing.T) {
	t.Parallel()

	tok := New()
	require.False(t, tok.IsSet())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Set()
		}()
	}
	wg.Wait()

	require.True(t, tok.IsSet())
	select {
	case <-tok.Done():
	default:
		t.Fatal("done channel not closed after Set")
	}
}

func TestToken_SleepInterrupted(t *testing.T) {
	t.Parallel()

	tok := New()
	go func() {
		time.Sleep(20 * time.Millisecond)
		tok.Set()
	}()

	start := time.Now()
	ok := tok.Sleep(5 * time.Second)
	require.False(t, ok)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestToken_SleepCompletes(t *testing.T) {
	t.Parallel()

	tok := New()
	ok := tok.Sleep(10 * time.Millisecond)
	require.True(t, ok)
}

func TestToken_SleepAlreadySet(t *testing.T) {
	t.Parallel()

	tok := New()
	tok.Set()
	require.False(t, tok.Sleep(time.Hour))
}

func TestToken_ContextCanceledOnSet(t *testing.T) {
	t.Parallel()

	tok := New()
	ctx, cancel := tok.Context(context.Background())
	defer cancel()

	tok.Set()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after token set")
	}
}

func TestToken_Independent(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.Set()
	require.True(t, a.IsSet())
	require.False(t, b.IsSet())
}
