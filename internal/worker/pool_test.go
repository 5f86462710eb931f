package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// mockGenerator simulates a bake for testing
type mockGenerator struct {
	delay     time.Duration
	failTasks map[string]bool
	callCount atomic.Int32
}

func (m *mockGenerator) Generate(ctx context.Context, task Task) (string, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failTasks[task.String()] {
		return "", errors.New("simulated failure")
	}
	return "/tmp/" + task.Material + "_" + task.Surface, nil
}

func TestTasks_CrossProduct(t *testing.T) {
	tasks := Tasks([]string{"rusty", "fresh"}, []string{"sphere", "box", "torus"}, true)

	if len(tasks) != 6 {
		t.Fatalf("Expected 6 tasks, got %d", len(tasks))
	}
	if tasks[0].String() != "rusty/sphere" || tasks[5].String() != "fresh/torus" {
		t.Errorf("Unexpected order: %v", tasks)
	}
	for _, task := range tasks {
		if !task.Force {
			t.Errorf("Expected force on %s", task)
		}
	}
}

func TestPool_BasicExecution(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	tasks := Tasks([]string{"rusty"}, []string{"sphere", "box", "torus"}, false)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task, r.Err)
		}
		if r.Path != "/tmp/rusty_"+r.Task.Surface {
			t.Errorf("Unexpected path for %s: %q", r.Task, r.Path)
		}
	}
	if gen.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d generator calls, got %d", len(tasks), gen.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	gen := &mockGenerator{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 4, Generator: gen})

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Material: fmt.Sprintf("m%d", i), Surface: "plane"}
	}

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// 4 workers, 8 tasks of 50ms: about 100ms.
	if elapsed > 250*time.Millisecond {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}
	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	gen := &mockGenerator{
		delay:     10 * time.Millisecond,
		failTasks: map[string]bool{"rusty/box": true},
	}
	pool := New(Config{Workers: 2, Generator: gen})

	tasks := Tasks([]string{"rusty"}, []string{"sphere", "box", "torus"}, false)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.String() != "rusty/box" {
				t.Errorf("Unexpected failure for %s", r.Task)
			}
		} else {
			successCount++
		}
	}
	if successCount != 2 || failCount != 1 {
		t.Errorf("Expected 2 successes and 1 failure, got %d and %d", successCount, failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	gen := &mockGenerator{delay: 100 * time.Millisecond}
	pool := New(Config{Workers: 2, Generator: gen})

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{Material: fmt.Sprintf("m%d", i), Surface: "sphere"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 250*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}
	if len(results) != len(tasks) {
		t.Errorf("Expected a result for every task, got %d", len(results))
	}

	var cancelledCount int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount == 0 {
		t.Error("Expected cancelled results")
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal, lastFailed int

	pool := New(Config{
		Workers:   2,
		Generator: &mockGenerator{delay: gen.delay, failTasks: map[string]bool{"a/plane": true}},
		OnProgress: func(completed, total, failed int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
			lastFailed = failed
		},
	})

	tasks := Tasks([]string{"a", "b", "c"}, []string{"plane"}, false)
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d progress callbacks, got %d", len(tasks), progressCalls.Load())
	}
	if lastCompleted != len(tasks) || lastTotal != len(tasks) {
		t.Errorf("Expected %d/%d at the end, got %d/%d", len(tasks), len(tasks), lastCompleted, lastTotal)
	}
	if lastFailed != 1 {
		t.Errorf("Expected 1 failure, got %d", lastFailed)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	gen := &mockGenerator{}
	pool := New(Config{Workers: 2, Generator: gen})

	if results := pool.Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if gen.callCount.Load() != 0 {
		t.Errorf("Expected 0 generator calls for empty tasks, got %d", gen.callCount.Load())
	}
}
