package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vanshika/pursuit/backend/internal/board"
)

// TaskError accumulates the errors produced by a bulk run.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// BoardWriter persists one board node.
type BoardWriter interface {
	UpsertBoardNode(ctx context.Context, nodeID int, edges board.Edges) error
}

// BoardSeeder writes a board definition into the store using a worker pool.
type BoardSeeder struct {
	writer  BoardWriter
	workers int
}

// NewBoardSeeder creates a BoardSeeder with the provided concurrency.
func NewBoardSeeder(writer BoardWriter, workers int) *BoardSeeder {
	if workers <= 0 {
		workers = 4
	}
	return &BoardSeeder{
		writer:  writer,
		workers: workers,
	}
}

// SeedBoard upserts every node of spec. Nodes that fail are reported together in a
// *TaskError; the others are still written.
func (bs *BoardSeeder) SeedBoard(ctx context.Context, spec board.Spec) error {
	return bs.run(ctx, len(spec.Nodes), func(idx int) error {
		n := spec.Nodes[idx]
		edges := board.Edges{Taxi: n.Taxi, Bus: n.Bus, Underground: n.Underground}
		if err := bs.writer.UpsertBoardNode(ctx, n.ID, edges); err != nil {
			return fmt.Errorf("node %d: %w", n.ID, err)
		}
		return nil
	})
}

func (bs *BoardSeeder) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				errCh <- err
			}
		}
	}

	for i := 0; i < bs.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
