package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"content_sync/internal/domain"
)

// Mirror reports the outcome of the remote half of a write. The local half
// has already completed when a Mirror is handed out.
type Mirror struct {
	done chan struct{}
	err  error
}

func completedMirror(err error) *Mirror {
	m := &Mirror{done: make(chan struct{}), err: err}
	close(m.done)
	return m
}

// Done is closed once the remote write finished or was skipped.
func (m *Mirror) Done() <-chan struct{} {
	return m.done
}

// Err returns the remote error. It is only meaningful after Done is closed.
func (m *Mirror) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Wait blocks until the remote write finished or ctx is done.
func (m *Mirror) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mirrorQueue orders the remote writes of one repository. Each write starts
// only after the previous one finished.
type mirrorQueue struct {
	mu   sync.Mutex
	last *Mirror
}

func (q *mirrorQueue) push(m *Mirror) (prev *Mirror) {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev, q.last = q.last, m
	return prev
}

// mirrorer runs remote writes in the background and tracks them so the
// process can drain them on shutdown.
type mirrorer struct {
	wg        sync.WaitGroup
	publisher ChangePublisher
	logger    *slog.Logger
}

func (g *mirrorer) start(ctx context.Context, queue *mirrorQueue, event domain.ChangeEvent, logger *slog.Logger, fn func(ctx context.Context) error) *Mirror {
	m := &Mirror{done: make(chan struct{})}
	ctx = context.WithoutCancel(ctx)
	prev := queue.push(m)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(m.done)

		if prev != nil {
			<-prev.done
		}

		if err := fn(ctx); err != nil {
			logger.Error("remote mirror failed", "action", event.Action, "id", event.ID, "error", err)
			m.err = err
			return
		}

		logger.Debug("remote mirror completed", "action", event.Action, "id", event.ID)
		g.publish(ctx, event)
	}()

	return m
}

func (g *mirrorer) publish(ctx context.Context, event domain.ChangeEvent) {
	if g.publisher == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Warn("failed to publish change event", "table", event.Table, "action", event.Action, "error", err)
	}
}

func (g *mirrorer) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
