package writecoord

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/apitoolkit/timefusion/internal/catalog"
	"github.com/apitoolkit/timefusion/internal/txerrors"
	"github.com/apitoolkit/timefusion/internal/txtable"
)

func TestFairLockSerializesHolders(t *testing.T) {
	l := newFairLock()
	var active int32
	var maxActive int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.acquire(context.Background())
			defer l.release()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive, "fair lock must admit exactly one holder at a time")
}

func TestFairLockAcquireRespectsContextCancellation(t *testing.T) {
	l := newFairLock()
	_ = l.acquire(context.Background()) // hold it, never release

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInsertBatchesUnknownProjectFails(t *testing.T) {
	cat := catalog.New(txtable.Location{Bucket: "b", Prefix: "p", Endpoint: "http://localhost:9000"})
	coord := New(cat)

	err := coord.InsertBatches(context.Background(), "missing", txtable.Batch{})
	assert.ErrorIs(t, err, txerrors.ErrUnknownProject)
}
