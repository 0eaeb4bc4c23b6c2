// Package kafka publishes and consumes EntryRecorded messages on a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"saldo/internal/events"
)

const maxRetryDelay = 30 * time.Second

type Publisher struct {
	writer *kafka.Writer
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

func (p *Publisher) PublishEntryRecorded(ctx context.Context, msg *events.EntryRecorded) error {
	m, err := message(msg)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, m); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// message keys by scope so one account's entries stay on one partition, in order.
func message(msg *events.EntryRecorded) (kafka.Message, error) {
	data, err := msg.ToJSON()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	return kafka.Message{
		Key:   []byte(msg.Scope),
		Value: data,
		Time:  msg.Timestamp,
	}, nil
}

type Consumer struct {
	reader *kafka.Reader
}

var _ events.Consumer = (*Consumer)(nil)

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Consume commits a message only after handler succeeds. A failing handler is
// retried with backoff on the same message, since Kafka has no requeue.
func (c *Consumer) Consume(ctx context.Context, handler events.Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		if err := process(ctx, m.Value, handler); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit kafka message: %w", err)
		}
	}
}

// process returns an error only when ctx ends before handler succeeds.
func process(ctx context.Context, body []byte, handler events.Handler) error {
	msg, err := events.EntryRecordedFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Skipping undecodable kafka message", "error", err)
		return nil
	}

	for attempt := 0; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		wait := retryDelay(attempt)
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"entry_id", msg.Entry.ID,
			"scope", msg.Scope,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(wait):
		}
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt > 5 {
		return maxRetryDelay
	}
	d := time.Second << attempt
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
