// Package mirror fans persisted audit events out to Kafka so downstream
// consumers (SIEM, warehousing) get a copy of the ledger. The mirror is best
// effort: the ledger write has already succeeded by the time an event reaches
// it, and a full inbox drops the event rather than blocking the request path.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"ecoaudit/internal/audit"
)

const defaultInboxSize = 1024

// Producer forwards audit events to a Kafka topic through a buffered inbox
// drained by Run.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	inbox  chan audit.Event
}

// Option configures the Producer.
type Option func(*options)

type options struct {
	inboxSize int
}

// WithInboxSize overrides the inbox buffer size.
func WithInboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.inboxSize = n
		}
	}
}

// New constructs a Kafka mirror. The client connects lazily, so construction
// succeeds even while brokers are unreachable; produce errors surface in Run.
func New(brokers []string, topic string, logger *slog.Logger, opts ...Option) (*Producer, error) {
	o := options{inboxSize: defaultInboxSize}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}

	return &Producer{
		client: client,
		topic:  topic,
		logger: logger,
		inbox:  make(chan audit.Event, o.inboxSize),
	}, nil
}

// Publish hands an event to the inbox without blocking. It reports false when
// the inbox is full and the event was dropped.
func (p *Producer) Publish(ctx context.Context, event audit.Event) bool {
	select {
	case p.inbox <- event:
		return true
	default:
		p.logger.WarnContext(ctx, "mirror inbox full, dropping event",
			"event_id", event.ID,
			"action", event.Action,
		)
		return false
	}
}

// Run drains the inbox until ctx is cancelled, then flushes what the client
// still buffers. Call it from its own goroutine.
func (p *Producer) Run(ctx context.Context) {
	p.logger.InfoContext(ctx, "audit mirror started", "topic", p.topic)
	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info("audit mirror stopped", "topic", p.topic)
			return
		case event := <-p.inbox:
			p.produce(ctx, event)
		}
	}
}

// Close flushes and releases the Kafka client.
func (p *Producer) Close() {
	p.client.Close()
}

func (p *Producer) produce(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(newWireEvent(event))
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal mirrored event", "event_id", event.ID, "error", err)
		return
	}

	record := &kgo.Record{
		Key:   []byte(strconv.FormatInt(event.ID, 10)),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce mirrored event", "event_id", event.ID, "error", err)
		}
	})
}

// drain forwards whatever is still queued, then flushes with a short grace
// period so shutdown does not hang on dead brokers.
func (p *Producer) drain() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case event := <-p.inbox:
			p.produce(flushCtx, event)
		default:
			if err := p.client.Flush(flushCtx); err != nil {
				p.logger.Warn("flush mirrored events", "error", err)
			}
			return
		}
	}
}

// wireEvent is the JSON shape consumers see on the topic.
type wireEvent struct {
	ID         int64     `json:"id"`
	AdminID    *string   `json:"admin_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	TargetName string    `json:"target_name"`
	Result     string    `json:"result"`
	Details    string    `json:"details,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func newWireEvent(e audit.Event) wireEvent {
	var adminID *string
	if e.AdminID != "" {
		adminID = &e.AdminID
	}
	return wireEvent{
		ID:         e.ID,
		AdminID:    adminID,
		Action:     string(e.Action),
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		TargetName: e.TargetName,
		Result:     string(e.Result),
		Details:    e.Details,
		Reason:     e.Reason,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Timestamp:  e.Timestamp,
	}
}
