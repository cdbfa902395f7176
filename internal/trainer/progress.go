package trainer

import (
	"context"
	"log/slog"

	"github.com/marcosfpr/adarank/pkg/kafka"
)

// ProgressCollector buffers per-round progress events and publishes them to
// Kafka asynchronously, so the training loop never blocks on the broker.
// Events are dropped when the buffer is full.
type ProgressCollector struct {
	producer *kafka.Producer
	eventCh  chan ProgressEvent
	logger   *slog.Logger
	done     chan struct{}
}

// NewProgressCollector creates a collector with the given buffer size.
func NewProgressCollector(producer *kafka.Producer, bufferSize int) *ProgressCollector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &ProgressCollector{
		producer: producer,
		eventCh:  make(chan ProgressEvent, bufferSize),
		logger:   slog.Default().With("component", "progress-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, draining buffered events on shutdown.
func (c *ProgressCollector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("progress collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues one round's progress without blocking.
func (c *ProgressCollector) Track(event ProgressEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("progress event dropped (buffer full)", "model", event.Model)
	}
}

// Close stops the collector after the buffered events are published.
func (c *ProgressCollector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *ProgressCollector) publish(ctx context.Context, event ProgressEvent) {
	if err := c.producer.Publish(ctx, kafka.Event{
		Key:   event.Model,
		Value: event,
	}); err != nil {
		c.logger.Error("failed to publish progress event",
			"model", event.Model,
			"round", event.Stats.Round,
			"error", err,
		)
	}
}

func (c *ProgressCollector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
