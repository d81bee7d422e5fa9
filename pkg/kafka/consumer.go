package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string

	// MaxAttempts is how many times a handler runs for one message before the
	// message is dead-lettered and committed. Defaults to 3.
	MaxAttempts int
	// RetryBackoff is multiplied by the attempt number between handler,
	// fetch and dead-letter retries. Defaults to 100ms.
	RetryBackoff time.Duration
}

// maxRetryDelay caps the wait between fetch and dead-letter retries.
const maxRetryDelay = 5 * time.Second

// DeadLetterTopic is where messages that exhaust their retries are copied.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}

// Consumer reads one topic as part of a consumer group and commits each
// message after its handler succeeds or gives up.
type Consumer struct {
	reader     MessageReader
	deadLetter MessageWriter
	handler    Handler
	logger     *slog.Logger
	topic      string
	group      string
	attempts   int
	backoff    time.Duration
	closeOnce  sync.Once
}

// NewConsumer creates a consumer backed by a kafka-go Reader. deadLetter may
// be nil, in which case poison messages are logged and skipped.
func NewConsumer(cfg ConsumerConfig, handler Handler, deadLetter MessageWriter, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})
	return NewConsumerWithReader(r, cfg, handler, deadLetter, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, deadLetter MessageWriter, logger *slog.Logger) *Consumer {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:     r,
		deadLetter: deadLetter,
		handler:    handler,
		logger:     logger,
		topic:      cfg.Topic,
		group:      cfg.GroupID,
		attempts:   attempts,
		backoff:    backoff,
	}
}

// Start consumes until ctx is canceled. It always closes the reader on return.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.Close() //nolint:errcheck

	c.logger.Info("consumer started", slog.String("topic", c.topic), slog.String("group", c.group))

	fetchFailures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			fetchFailures++
			c.logger.Error("failed to fetch message",
				slog.Int("consecutive_failures", fetchFailures),
				slog.String("error", err.Error()),
			)
			if !sleepCtx(ctx, c.retryDelay(fetchFailures)) {
				return nil
			}
			continue
		}
		fetchFailures = 0

		// process only fails once ctx is done. The message stays uncommitted
		// and is redelivered to the group.
		if err := c.process(ctx, msg); err != nil {
			c.logger.Info("consumer stopping",
				slog.String("topic", c.topic),
				slog.Int64("uncommitted_offset", msg.Offset),
			)
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// process runs the handler with retries. A nil return means the message may
// be committed; this includes undecodable and dead-lettered messages.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return c.deadLetterUntilStored(ctx, msg, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			consumerMessagesProcessed.WithLabelValues(msg.Topic, c.group).Inc()
			return nil
		}

		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.attempts),
			slog.String("error", lastErr.Error()),
		)

		if attempt < c.attempts && !sleepCtx(ctx, time.Duration(attempt)*c.backoff) {
			return ctx.Err()
		}
	}

	consumerMessagesFailed.WithLabelValues(msg.Topic, c.group).Inc()
	return c.deadLetterUntilStored(ctx, msg, lastErr)
}

// deadLetterUntilStored repeats the dead-letter write until it succeeds or
// ctx ends. Skipping it is not an option: the next commit would move the
// group offset past the message.
func (c *Consumer) deadLetterUntilStored(ctx context.Context, msg kafka.Message, cause error) error {
	for failures := 1; ; failures++ {
		err := c.deadLetterMessage(ctx, msg, cause)
		if err == nil {
			return nil
		}
		c.logger.Error("dead-letter write failed",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", failures),
			slog.String("error", err.Error()),
		)
		if !sleepCtx(ctx, c.retryDelay(failures)) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) retryDelay(failures int) time.Duration {
	d := time.Duration(failures) * c.backoff
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) deadLetterMessage(ctx context.Context, msg kafka.Message, cause error) error {
	if c.deadLetter == nil {
		return nil
	}

	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(c.group)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}

	err := c.deadLetter.WriteMessages(ctx, kafka.Message{
		Topic:   DeadLetterTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("dead-letter message from %s: %w", msg.Topic, err)
	}
	c.logger.Warn("message dead-lettered",
		slog.String("topic", msg.Topic),
		slog.Int64("offset", msg.Offset),
	)
	return nil
}

// Close closes the reader. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
