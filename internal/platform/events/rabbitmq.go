// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of [*amqp.Channel] the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes events as persistent JSON messages to a durable queue
// through the default exchange.
type RabbitPublisher struct {
	mu         sync.Mutex
	connection *amqp.Connection
	channel    channel
	queue      string
	logger     *slog.Logger
}

// NewRabbitPublisher dials the broker, opens a channel and declares the queue.
func NewRabbitPublisher(url, queue string, logger *slog.Logger) (*RabbitPublisher, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}

	logger.Info("rabbitmq publisher connected", slog.String("queue", queue))

	return &RabbitPublisher{
		connection: connection,
		channel:    ch,
		queue:      queue,
		logger:     logger,
	}, nil
}

// newRabbitPublisherWithChannel wires a publisher around an already opened channel.
func newRabbitPublisherWithChannel(ch channel, queue string, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{channel: ch, queue: queue, logger: logger}
}

// PublishAccountDecision publishes event to the configured queue.
func (publisher *RabbitPublisher) PublishAccountDecision(ctx context.Context, event AccountDecision) error {
	return publisher.publish(ctx, "account."+string(event.Decision), event)
}

// PublishEmailToken publishes event to the configured queue.
func (publisher *RabbitPublisher) PublishEmailToken(ctx context.Context, event EmailToken) error {
	return publisher.publish(ctx, "email."+string(event.Purpose), event)
}

// publish serialises payload as a persistent JSON message of the given type.
func (publisher *RabbitPublisher) publish(ctx context.Context, messageType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	message := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         messageType,
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing.
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	if err := publisher.channel.PublishWithContext(ctx, "", publisher.queue, false, false, message); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}

	return nil
}

// Close releases the channel and the connection.
func (publisher *RabbitPublisher) Close() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	var firstErr error
	if publisher.channel != nil {
		firstErr = publisher.channel.Close()
	}
	if publisher.connection != nil {
		if err := publisher.connection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
