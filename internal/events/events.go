// Package events publishes per-task completion events for live
// observers. The bus is an in-process watermill pub/sub; execution
// stages publish one event per completed task and interested consumers
// (such as the stress command's progress display) subscribe for the
// stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicTaskCompleted is the topic completion events are published on
const TopicTaskCompleted = "task.completed"

// TaskEvent describes one completed task
type TaskEvent struct {
	// Stage is the name of the stage that ran the task
	Stage string `json:"stage"`

	// Worker identifies the worker goroutine within the stage
	Worker string `json:"worker"`

	// Failed indicates the task body returned an error
	Failed bool `json:"failed"`

	// Panicked indicates the task body panicked
	Panicked bool `json:"panicked"`

	// Duration is how long the task body ran
	Duration time.Duration `json:"duration"`

	// At is the completion time
	At time.Time `json:"at"`
}

// Bus is an in-process completion event bus. Safe for concurrent use by
// any number of publishers and subscribers.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// NewBus creates an event bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			// Subscribers that fall behind buffer rather than block
			// publishers
			OutputChannelBuffer: 256,
		},
		watermill.NewSlogLogger(logger),
	)

	return &Bus{pubsub: pubsub, logger: logger}
}

// Publish emits a completion event to all current subscribers.
func (b *Bus) Publish(ev TaskEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicTaskCompleted, msg); err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}

	return nil
}

// Subscribe returns a channel of completion events. The channel closes
// when ctx is done or the bus is closed. Events published by a single
// publisher arrive in publication order.
func (b *Bus) Subscribe(ctx context.Context) (<-chan TaskEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicTaskCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to task events: %w", err)
	}

	out := make(chan TaskEvent)

	go func() {
		defer close(out)

		for msg := range messages {
			var ev TaskEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn("dropping undecodable task event", "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
