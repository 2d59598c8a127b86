package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"content_sync/internal/domain"
)

const listenerPingInterval = 90 * time.Second

// Listener is a change feed over PostgreSQL LISTEN/NOTIFY. Each table has
// its own channel, written by the triggers in migrations/.
type Listener struct {
	listener *pq.Listener
	logger   *slog.Logger

	// listenMu serializes LISTEN/UNLISTEN round-trips. It is never taken by
	// the dispatch loop, which must keep draining Notify meanwhile.
	listenMu sync.Mutex

	mu   sync.Mutex
	subs map[string]map[*listenerSub]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

type listenerSub struct {
	ctx     context.Context
	cancel  context.CancelFunc
	channel string
	fn      func(ctx context.Context)
	owner   *Listener
	once    sync.Once
}

func NewListener(dsn string, minReconnect, maxReconnect time.Duration, logger *slog.Logger) *Listener {
	l := &Listener{
		logger: logger.With("component", "pg_listener"),
		subs:   make(map[string]map[*listenerSub]struct{}),
		done:   make(chan struct{}),
	}
	l.listener = pq.NewListener(dsn, minReconnect, maxReconnect, l.logEvent)

	go l.run()

	return l
}

// Subscribe calls fn for every notification on the table's channel until
// the returned closer is closed or ctx is cancelled.
func (l *Listener) Subscribe(ctx context.Context, table string, fn func(ctx context.Context)) (io.Closer, error) {
	channel := domain.Collection(table).Channel()
	subCtx, cancel := context.WithCancel(ctx)
	sub := &listenerSub{
		ctx:     subCtx,
		cancel:  cancel,
		channel: channel,
		fn:      fn,
		owner:   l,
	}

	l.listenMu.Lock()
	defer l.listenMu.Unlock()

	l.mu.Lock()
	listening := len(l.subs[channel]) > 0
	l.mu.Unlock()

	if !listening {
		if err := l.listener.Listen(channel); err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
			cancel()
			return nil, fmt.Errorf("listen %s: %w", channel, err)
		}
	}

	l.mu.Lock()
	if l.subs[channel] == nil {
		l.subs[channel] = make(map[*listenerSub]struct{})
	}
	l.subs[channel][sub] = struct{}{}
	l.mu.Unlock()

	l.logger.Debug("subscribed", "channel", channel)

	return sub, nil
}

func (s *listenerSub) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.owner.remove(s)
	})
	return err
}

func (l *Listener) remove(sub *listenerSub) error {
	l.listenMu.Lock()
	defer l.listenMu.Unlock()

	l.mu.Lock()
	subs := l.subs[sub.channel]
	delete(subs, sub)
	remaining := len(subs)
	if remaining == 0 {
		delete(l.subs, sub.channel)
	}
	l.mu.Unlock()

	if remaining > 0 {
		return nil
	}

	select {
	case <-l.done:
		return nil
	default:
	}

	if err := l.listener.Unlisten(sub.channel); err != nil && !errors.Is(err, pq.ErrChannelNotOpen) {
		return fmt.Errorf("unlisten %s: %w", sub.channel, err)
	}
	return nil
}

func (l *Listener) run() {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected: anything may have changed while disconnected.
				l.dispatchAll()
				continue
			}
			l.dispatch(n.Channel)
		case <-ticker.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.logger.Warn("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *Listener) dispatch(channel string) {
	for _, sub := range l.snapshot(channel) {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.fn(sub.ctx)
	}
}

func (l *Listener) dispatchAll() {
	l.mu.Lock()
	channels := make([]string, 0, len(l.subs))
	for channel := range l.subs {
		channels = append(channels, channel)
	}
	l.mu.Unlock()

	for _, channel := range channels {
		l.dispatch(channel)
	}
}

func (l *Listener) snapshot(channel string) []*listenerSub {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs := make([]*listenerSub, 0, len(l.subs[channel]))
	for sub := range l.subs[channel] {
		subs = append(subs, sub)
	}
	return subs
}

func (l *Listener) logEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		l.logger.Info("listener connected")
	case pq.ListenerEventDisconnected:
		l.logger.Warn("listener disconnected", "error", err)
	case pq.ListenerEventReconnected:
		l.logger.Info("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("listener connection attempt failed", "error", err)
	}
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.listener.Close()
	})
	return err
}
