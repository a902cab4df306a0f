package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Task is one unit of background work. ctx is cancelled when the pool is shut down.
// A submitted task always runs once; if shutdown cancels it before a slot frees
// up, it runs with the cancelled ctx so it can still report back.
type Task func(ctx context.Context)

// Pool runs tasks off the caller's goroutine with at most size running at once.
// Tasks beyond that wait for a slot instead of being rejected.
type Pool struct {
	name string
	sem  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:   name,
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules task and returns immediately.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			logger.L().Warn("worker_task_cancelled", zap.String("pool", p.name), zap.Error(err))
			p.run(task)
			return
		}
		defer p.sem.Release(1)
		p.run(task)
	}()
	return nil
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("worker_task_panic",
				zap.String("pool", p.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	task(p.ctx)
}

// Shutdown stops accepting tasks and waits for running ones. When ctx ends
// first, the remaining tasks see their context cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool %s: %w", p.name, ctx.Err())
	}
}
