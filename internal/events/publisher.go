// Package events publishes settled orders to Kafka as a fire-and-forget feed
// for downstream consumers (reporting, receipt printing). A failed publish
// never affects the settlement that produced it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/pkg/breaker"
)

// Publisher is the register-facing surface. Noop stands in when no brokers
// are configured.
type Publisher interface {
	OrderSettled(ctx context.Context, order domain.Order)
}

type Noop struct{}

func (Noop) OrderSettled(context.Context, domain.Order) {}

type Kafka struct {
	writer  *kafka.Writer
	breaker *breaker.Breaker
	logger  *zap.Logger
}

func NewKafka(brokers []string, topic string, br *breaker.Breaker, logger *zap.Logger) *Kafka {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return &Kafka{
		writer:  writer,
		breaker: br,
		logger:  logger,
	}
}

// OrderSettled writes the order as JSON, keyed by order id. The breaker
// short-circuits publishing while the broker is known to be down.
func (k *Kafka) OrderSettled(ctx context.Context, order domain.Order) {
	if err := k.breaker.Allow(); err != nil {
		k.logger.Warn("order event dropped, breaker open",
			zap.String("order_id", order.ID),
		)
		return
	}

	raw, err := json.Marshal(order)
	if err != nil {
		k.logger.Error("order event marshal failed", zap.Error(err))
		return
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: raw,
		Time:  time.Now(),
	})
	if err != nil {
		k.breaker.Failure()
		k.logger.Error("order event publish failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return
	}
	k.breaker.Success()
	k.logger.Debug("order event published", zap.String("order_id", order.ID))
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
