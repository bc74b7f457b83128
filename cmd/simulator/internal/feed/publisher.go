package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/store"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

// Publisher turns store writes into AssetUpdate messages on the feed topic.
type Publisher struct {
	ctx    context.Context
	logger *zap.Logger
	writer KafkaWriter // nil => log only

	mu          sync.Mutex
	seqBase     int64
	seqCounters map[string]int64
}

// NewPublisher numbers each asset's updates from epoch+1. Passing the process start
// in microseconds keeps SeqIDs rising across restarts, so consumers deduplicating
// by SeqID never mistake a new run for a replay.
func NewPublisher(ctx context.Context, logger *zap.Logger, writer KafkaWriter, epoch int64) *Publisher {
	return &Publisher{
		ctx:         ctx,
		logger:      logger,
		writer:      writer,
		seqBase:     epoch,
		seqCounters: make(map[string]int64),
	}
}

// OnChange is a store.Listener.
func (p *Publisher) OnChange(c store.Change) {
	msgs := p.encode(c)
	if len(msgs) == 0 {
		return
	}

	if p.writer == nil {
		for _, m := range msgs {
			p.logger.Debug("Feed update (kafka disabled)", zap.ByteString("asset", m.Key), zap.ByteString("payload", m.Value))
		}
		return
	}

	// Write to Kafka (Async due to writer config)
	if err := p.writer.WriteMessages(p.ctx, msgs...); err != nil {
		p.logger.Error("Kafka Write Error", zap.Error(err), zap.Int("messages", len(msgs)))
		return
	}
	p.logger.Debug("Sent updates", zap.Int("messages", len(msgs)), zap.Int64("market_updated_at", c.MarketUpdatedAt))
}

func (p *Publisher) encode(c store.Change) []kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]kafka.Message, 0, len(c.Assets))
	for _, a := range c.Assets {
		if _, ok := p.seqCounters[a.ID]; !ok {
			p.seqCounters[a.ID] = p.seqBase
		}
		p.seqCounters[a.ID]++
		update := models.AssetUpdate{
			Asset:           a,
			MarketUpdatedAt: c.MarketUpdatedAt,
			SeqID:           p.seqCounters[a.ID],
		}

		payload, err := json.Marshal(update)
		if err != nil {
			p.logger.Error("JSON Marshal Error", zap.Error(err), zap.String("asset", a.ID))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.ID), // Key ensures partition ordering
			Value: payload,
		})
	}
	return msgs
}

// Close flushes the writer buffer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
