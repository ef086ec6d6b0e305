package ingress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const amqpConsumerTag = "codespot"

// errSessionClosed ends one consume session so Run can re-dial.
var errSessionClosed = errors.New("amqp delivery channel closed")

// AMQPSource consumes a queue bound to a topic exchange.
type AMQPSource struct {
	cfg    Config
	logger *zap.Logger
	dial   func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQPSource dials the broker once to fail fast on bad settings.
func NewAMQPSource(cfg Config, logger *zap.Logger) (*AMQPSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AMQPSource{cfg: cfg, logger: logger, dial: amqp.Dial}
	conn, err := s.dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	s.conn = conn
	return s, nil
}

// Run consumes with prefetch 1 and acknowledges each message after the
// handler returns. A lost connection is re-dialled after ReconnectWait.
func (s *AMQPSource) Run(ctx context.Context, h Handler) error {
	for {
		conn, err := s.connection()
		if err == nil {
			err = s.session(ctx, conn, h)
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("amqp session ended, reconnecting",
			zap.Error(err), zap.Duration("wait", s.cfg.ReconnectWait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectWait):
		}
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
		reconnectsTotal.Inc()
	}
}

func (s *AMQPSource) connection() (*amqp.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}
	conn, err := s.dial(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}
	s.conn = conn
	return conn, nil
}

func (s *AMQPSource) session(ctx context.Context, conn *amqp.Connection, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(s.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", s.cfg.Exchange, err)
	}
	durable, exclusive := true, false
	if s.cfg.Queue == "" {
		durable, exclusive = false, true
	}
	q, err := ch.QueueDeclare(s.cfg.Queue, durable, false, exclusive, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, s.cfg.RoutingKey, s.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s/%s: %w", q.Name, s.cfg.Exchange, s.cfg.RoutingKey, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, amqpConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	s.logger.Info("listening for events",
		zap.String("source", KindAMQP),
		zap.String("exchange", s.cfg.Exchange),
		zap.String("routing_key", s.cfg.RoutingKey),
		zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errSessionClosed
			}
			deliver(ctx, KindAMQP, h, d.Body, s.logger)
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("ack delivery %d: %w", d.DeliveryTag, err)
			}
		}
	}
}

// Close closes the broker connection.
func (s *AMQPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
