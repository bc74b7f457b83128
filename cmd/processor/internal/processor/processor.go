package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/pkg/config"
	"github.com/shubham-shewale/market-beat/pkg/models"
)

const defaultSnapshotTTL = 1 * time.Hour

// Processor moves asset updates from the feed topic into Redis:
// the latest record per asset as a snapshot key, plus a publish for live viewers.
type Processor struct {
	logger      Logger
	rdb         RedisClient
	reader      KafkaReader
	numWorkers  int
	snapshotTTL time.Duration
}

func NewProcessor(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	ttl := cfg.Processor.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	workers := cfg.Processor.NumWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		logger:      logger,
		rdb:         rdb,
		reader:      reader,
		numWorkers:  workers,
		snapshotTTL: ttl,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	// The reader owns the worker channels: only it sends, so only it closes.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer func() {
			for _, ch := range workerChans {
				close(ch)
			}
		}()

		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				if ctx.Err() != nil {
					return
				}
				continue
			}

			// Deterministic Sharding: Same asset always goes to same worker
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				// latest beats complete for a live board
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	<-readerDone
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background context prevents cancellation mid-Redis write
	ctx := context.Background()

	// Local state for deduplication (only works because of deterministic sharding)
	lastSeq := make(map[string]int64)

	for payload := range msgs {
		var update models.AssetUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			p.logger.Error("JSON Unmarshal Error", zap.Error(err))
			continue
		}
		assetID := update.Asset.ID
		if assetID == "" {
			p.logger.Warn("Update without asset id", zap.Int64("seq_id", update.SeqID))
			continue
		}

		if update.SeqID <= lastSeq[assetID] {
			p.logger.Debug("Skipping duplicate update", zap.String("asset", assetID), zap.Int64("seq_id", update.SeqID))
			continue
		}

		// Atomic SET + PUBLISH via Pipeline
		pipe := p.rdb.Pipeline()
		pipe.Set(ctx, models.SnapshotKey(assetID), payload, p.snapshotTTL)
		pipe.Publish(ctx, models.AssetChannel(assetID), payload)

		_, err := pipe.Exec(ctx)
		if err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("asset", assetID))
		} else {
			p.logger.Debug("Processed", zap.String("asset", assetID), zap.Int("worker_id", id), zap.Int64("seq_id", update.SeqID))
			lastSeq[assetID] = update.SeqID
		}
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(numWorkers))
}
