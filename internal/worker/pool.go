// Package worker bakes material maps in parallel.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Generator bakes the maps of one task and returns where they went.
// This matches the signature of pipeline.Generator.Generate.
type Generator interface {
	Generate(ctx context.Context, task Task) (path string, err error)
}

// Task is one material baked onto one surface.
type Task struct {
	Material string
	Surface  string
	Force    bool
}

// String returns "material/surface".
func (t Task) String() string {
	return fmt.Sprintf("%s/%s", t.Material, t.Surface)
}

// Tasks returns the cross product of materials and surfaces, materials outermost.
func Tasks(materials, surfaces []string, force bool) []Task {
	tasks := make([]Task, 0, len(materials)*len(surfaces))
	for _, m := range materials {
		for _, s := range surfaces {
			tasks = append(tasks, Task{Material: m, Surface: s, Force: force})
		}
	}
	return tasks
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Path    string
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool runs bake tasks on a fixed number of workers.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns one result per task that was started.
// It blocks until all tasks complete or the context is cancelled; tasks that
// were never handed to a worker are reported with the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for i, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				for _, skipped := range tasks[i:] {
					resultCh <- Result{Task: skipped, Err: ctx.Err()}
				}
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})
	go func() {
		var completed, failed int
		for result := range resultCh {
			results = append(results, result)
			completed++
			if result.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(completed, len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	// The feeder may still be reporting skipped tasks; it closes taskCh when
	// done, and the workers only return after that.
	close(resultCh)
	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		path, err := p.generator.Generate(ctx, task)
		results <- Result{
			Task:    task,
			Path:    path,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
