package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// EventHandler processes batches of ledger events
type EventHandler interface {
	HandleEvents(ctx context.Context, events []domain.LedgerEvent) error
}

// Consumer consumes ledger events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       EventHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer. fromOldest replays the topic
// from the beginning for a group with no committed offsets.
func NewConsumer(cfg *config.KafkaConfig, handler EventHandler, fromOldest bool, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	if fromOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming and returns once the first session is set up
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	firstReady := c.ready
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ready := firstReady
		for {
			handler := newGroupHandler(c.handler, c.config.BatchSize, c.config.BatchTimeout, c.logger)
			handler.ready = ready

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			// still open when the session failed before Setup
			ready = handler.ready
		}
	}()

	select {
	case <-firstReady:
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	handler      EventHandler
	batchSize    int
	batchTimeout time.Duration
	logger       *slog.Logger
	ready        chan bool
}

func newGroupHandler(handler EventHandler, batchSize int, batchTimeout time.Duration, logger *slog.Logger) *groupHandler {
	if batchSize <= 0 {
		batchSize = 1
	}
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	return &groupHandler{
		handler:      handler,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		logger:       logger,
	}
}

// Setup is called at the beginning of a new session
func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	if h.ready != nil {
		close(h.ready)
		h.ready = nil
	}
	return nil
}

// Cleanup is called at the end of a session
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim batches events from a partition. Offsets are marked only
// after the handler has seen the batch.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	batch := make([]domain.LedgerEvent, 0, h.batchSize)
	var last *sarama.ConsumerMessage
	batchTimer := time.NewTimer(h.batchTimeout)
	defer batchTimer.Stop()

	flush := func() {
		if last == nil {
			return
		}
		if len(batch) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := h.handler.HandleEvents(ctx, batch); err != nil {
				h.logger.Error("failed to process batch", "error", err, "batch_size", len(batch))
			} else {
				h.logger.Debug("processed batch", "batch_size", len(batch))
			}
		}
		session.MarkMessage(last, "")
		batch = batch[:0]
		last = nil
	}

	for {
		select {
		case <-session.Context().Done():
			flush()
			return nil

		case <-batchTimer.C:
			flush()
			batchTimer.Reset(h.batchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			last = message

			var event domain.LedgerEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				h.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				continue
			}

			if event.Kind == "" || event.SlanderID <= 0 {
				h.logger.Warn("invalid ledger event",
					"kind", event.Kind,
					"slander_id", event.SlanderID,
					"offset", message.Offset,
				)
				continue
			}

			batch = append(batch, event)
			if len(batch) >= h.batchSize {
				flush()
				batchTimer.Reset(h.batchTimeout)
			}
		}
	}
}
