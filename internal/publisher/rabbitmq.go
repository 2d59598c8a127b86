package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"content_sync/internal/domain"
)

// RabbitMQ fans change events out over a direct exchange. The routing key
// is the table name, so each subscriber only sees its own table.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

type Config struct {
	URL      string
	Exchange string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger = logger.With("component", "rabbitmq")
	logger.Info("connected to rabbitmq", "exchange", cfg.Exchange)

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		event.Table,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   event.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published change",
		"table", event.Table,
		"action", event.Action,
		"id", event.ID,
	)

	return nil
}

// Subscribe binds a private auto-delete queue to the table's routing key and
// calls fn for every delivery until the closer is closed or ctx is done.
func (r *RabbitMQ) Subscribe(ctx context.Context, table string, fn func(ctx context.Context)) (io.Closer, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, table, r.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{channel: ch, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-subCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					r.logger.Warn("malformed change message", "table", table, "error", err)
				}
				r.logger.Debug("received change", "table", table, "action", event.Action)
				fn(subCtx)
			}
		}
	}()

	r.logger.Debug("subscribed", "table", table, "queue", q.Name)

	return sub, nil
}

type subscription struct {
	channel *amqp.Channel
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.channel.Close()
		<-s.done
	})
	return err
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
