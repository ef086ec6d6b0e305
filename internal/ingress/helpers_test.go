package ingress

import (
	"context"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var getenv = os.Getenv

// publishAMQP keeps publishing payload until the consumer's queue is bound,
// then returns a func closing the publisher.
func publishAMQP(ctx context.Context, cfg Config, payload []byte) (func(), error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	closeFn := func() { _ = ch.Close(); _ = conn.Close() }

	// The first publish may race the consumer's bind; retry briefly.
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			_ = ch.PublishWithContext(ctx, cfg.Exchange, cfg.RoutingKey, false, false, amqp.Publishing{
				ContentType: "application/json",
				Body:        payload,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return closeFn, nil
}
