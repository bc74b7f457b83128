package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/cmd/simulator/internal/generator"
)

var ErrTopicNotReady = errors.New("topic not ready")

const (
	readyAttempts = 5
	readyBackoff  = 200 * time.Millisecond
)

// TopicCreator makes sure the feed topic exists before the first tick is published.
type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  generator.Clock
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock generator.Clock) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		clock:  clock,
	}
}

// Ensure creates topic through the cluster controller and waits until it reports partitions.
// An "already exists" reply from the controller is not an error.
func (tc *TopicCreator) Ensure(ctx context.Context, brokers []string, topic string, partitions int) error {
	conn, err := tc.dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get controller: %w", err)
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", controllerAddr, err)
	}
	defer controllerConn.Close()

	if partitions <= 0 {
		partitions = 1
	}
	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		tc.logger.Warn("Topic creation returned an error", zap.String("topic", topic), zap.Error(err))
	} else {
		tc.logger.Info("Topic creation request sent", zap.String("topic", topic), zap.Int("partitions", partitions))
	}

	return tc.waitForTopic(ctx, conn, topic)
}

func (tc *TopicCreator) dialAny(ctx context.Context, brokers []string) (KafkaConn, error) {
	var lastErr error = errors.New("no brokers configured")
	for _, addr := range brokers {
		conn, err := tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		tc.logger.Warn("Broker unreachable", zap.String("broker", addr), zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("dial brokers: %w", lastErr)
}

func (tc *TopicCreator) waitForTopic(ctx context.Context, conn KafkaConn, topic string) error {
	for i := 0; i < readyAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tc.clock.Sleep(readyBackoff)
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTopicNotReady, topic)
}
