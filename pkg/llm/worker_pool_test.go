package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestProcess_Success(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	items := []WorkItem[string]{
		{ID: "task1", Execute: func(ctx context.Context) (string, error) { return "result1", nil }},
		{ID: "task2", Execute: func(ctx context.Context) (string, error) { return "result2", nil }},
		{ID: "task3", Execute: func(ctx context.Context) (string, error) { return "result3", nil }},
	}

	results := Process(context.Background(), pool, items, nil)

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}

	// Verify all results are present (order may vary)
	resultsByID := make(map[string]string)
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("task %s failed: %v", r.ID, r.Err)
		}
		resultsByID[r.ID] = r.Result
	}

	if resultsByID["task1"] != "result1" || resultsByID["task2"] != "result2" || resultsByID["task3"] != "result3" {
		t.Errorf("unexpected results: %v", resultsByID)
	}
}

func TestProcess_WithErrors(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	expectedErr := errors.New("task failed")
	items := []WorkItem[string]{
		{ID: "task1", Execute: func(ctx context.Context) (string, error) { return "result1", nil }},
		{ID: "task2", Execute: func(ctx context.Context) (string, error) { return "", expectedErr }},
		{ID: "task3", Execute: func(ctx context.Context) (string, error) { return "result3", nil }},
	}

	results := Process(context.Background(), pool, items, nil)

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}

	resultsByID := make(map[string]WorkResult[string])
	for _, r := range results {
		resultsByID[r.ID] = r
	}

	if resultsByID["task1"].Err != nil {
		t.Errorf("task1 should succeed, got error: %v", resultsByID["task1"].Err)
	}
	if resultsByID["task2"].Err != expectedErr {
		t.Errorf("task2 should fail with expectedErr, got: %v", resultsByID["task2"].Err)
	}
	if resultsByID["task3"].Err != nil {
		t.Errorf("task3 should succeed, got error: %v", resultsByID["task3"].Err)
	}
}

func TestProcess_EmptyItems(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	results := Process(context.Background(), pool, []WorkItem[string]{}, nil)
	if results != nil {
		t.Errorf("expected nil results for empty items, got %v", results)
	}
}

func TestProcess_BoundedConcurrency(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())

	var current, peak int32
	items := make([]WorkItem[int], 8)
	for i := range items {
		items[i] = WorkItem[int]{
			ID: "task",
			Execute: func(ctx context.Context) (int, error) {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return 0, nil
			},
		}
	}

	Process(context.Background(), pool, items, nil)

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("observed %d concurrent executions, want at most 2", p)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 1}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []WorkItem[string]{
		{ID: "task1", Execute: func(ctx context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "result1", nil
		}},
		{ID: "task2", Execute: func(ctx context.Context) (string, error) { return "result2", nil }},
	}

	results := Process(ctx, pool, items, nil)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// At least one item should have been refused a semaphore slot.
	failed := 0
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			failed++
		}
	}
	if failed == 0 {
		t.Log("all items acquired slots before cancellation was observed")
	}
}

func TestProcess_ProgressCallback(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{MaxConcurrent: 4}, zap.NewNop())

	items := []WorkItem[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
	}

	var calls int
	var lastTotal int
	Process(context.Background(), pool, items, func(completed, total int) {
		calls++
		lastTotal = total
	})

	if calls != 2 {
		t.Errorf("expected 2 progress calls, got %d", calls)
	}
	if lastTotal != 2 {
		t.Errorf("expected total 2, got %d", lastTotal)
	}
}
