package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/technosupport/crowdwatch/internal/store"
)

func TestWriteBuffer_ExecutesJobsInOrder(t *testing.T) {
	wb := store.NewWriteBuffer(8)
	var mu sync.Mutex
	var seen []int

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		i := i
		wb.Submit("cam-1", func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			seen = append(seen, i)
			mu.Unlock()
			return nil
		})
	}

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 {
		t.Fatalf("expected 5 jobs run, got %d", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Errorf("jobs ran out of submission order: %v", seen)
			break
		}
	}
}

func TestWriteBuffer_DropsOldestWhenFull(t *testing.T) {
	wb := store.NewWriteBuffer(1)

	block := make(chan struct{})
	var ran int32

	// First job blocks the single worker so subsequent submissions queue up
	// behind it and the drop-oldest path engages.
	wb.Submit("cam-1", func(ctx context.Context) error {
		<-block
		atomic.AddInt32(&ran, 1)
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		wb.Submit("cam-1", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	close(block)
	time.Sleep(50 * time.Millisecond)

	// With capacity 1, at most the blocking job plus one queued job survive.
	if got := atomic.LoadInt32(&ran); got > 2 {
		t.Errorf("expected at most 2 jobs to run under drop-oldest, got %d", got)
	}
}

func TestWriteBuffer_StopDrainsRemainingJobs(t *testing.T) {
	wb := store.NewWriteBuffer(8)
	var ran int32

	for i := 0; i < 3; i++ {
		wb.Submit("cam-1", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	wb.Stop("cam-1")

	if got := atomic.LoadInt32(&ran); got != 3 {
		t.Errorf("expected all 3 jobs drained on stop, got %d", got)
	}
}

func TestWriteBuffer_JobErrorDoesNotStopQueue(t *testing.T) {
	wb := store.NewWriteBuffer(8)
	var wg sync.WaitGroup
	wg.Add(2)

	wb.Submit("cam-1", func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("boom")
	})
	wb.Submit("cam-1", func(ctx context.Context) error {
		defer wg.Done()
		return nil
	})

	waitOrTimeout(t, &wg, time.Second)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for jobs to run")
	}
}
