package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTxManager struct {
	calls atomic.Int32
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls.Add(1)
	return fn(ctx)
}

func TestCommitmentGate_SerializesCriticalSections(t *testing.T) {
	txm := &mockTxManager{}
	gate := NewCommitmentGate(txm)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Run(context.Background(), func(ctx context.Context) error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, int32(8), txm.calls.Load())
}

func TestCommitmentGate_CancelledWhileWaiting(t *testing.T) {
	gate := NewCommitmentGate(&mockTxManager{})

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = gate.Run(context.Background(), func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Run(ctx, func(ctx context.Context) error {
		t.Fatal("critical section must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	close(release)
}
