// Package notify delivers settlement outcomes to sinks after the owning
// transaction has committed. Delivery is best effort: Publish never blocks
// and sink errors are only logged.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	IntentSettled   Kind = "intent.settled"
	IntentFailed    Kind = "intent.failed"
	DonationSettled Kind = "donation.settled"
	DonationFailed  Kind = "donation.failed"
)

type Event struct {
	ID        string          `json:"id" dynamodbav:"id"`
	Kind      Kind            `json:"kind" dynamodbav:"kind"`
	RefTable  string          `json:"ref_table" dynamodbav:"ref_table"`
	RefID     int64           `json:"ref_id" dynamodbav:"ref_id"`
	Requester string          `json:"requester" dynamodbav:"requester"`
	Amount    decimal.Decimal `json:"amount" dynamodbav:"-"`
	Currency  string          `json:"currency" dynamodbav:"currency"`
	Reason    string          `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	At        time.Time       `json:"at" dynamodbav:"at"`
}

// Publisher is what the services depend on.
type Publisher interface {
	Publish(e Event)
}

type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

type Bus struct {
	log     *slog.Logger
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

var _ Publisher = (*Bus)(nil)

// NewBus starts the dispatcher. buffer <= 0 falls back to 256.
func NewBus(log *slog.Logger, buffer int, sinks ...Sink) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	b := &Bus{
		log:     log,
		sinks:   sinks,
		timeout: 5 * time.Second,
		ch:      make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.log.Warn("notify: bus closed, event dropped", "kind", e.Kind, "ref_id", e.RefID)
		return
	}
	select {
	case b.ch <- e:
	default:
		b.log.Warn("notify: buffer full, event dropped", "kind", e.Kind, "ref_id", e.RefID)
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for e := range b.ch {
		for _, s := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			if err := s.Deliver(ctx, e); err != nil {
				b.log.Error("notify: sink failed", "sink", s.Name(), "kind", e.Kind, "ref_id", e.RefID, "err", err)
			}
			cancel()
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to end.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSink writes every event as a structured log line.
type LogSink struct{ Log *slog.Logger }

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(ctx context.Context, e Event) error {
	s.Log.InfoContext(ctx, "settlement event",
		"event_id", e.ID,
		"kind", e.Kind,
		"ref_table", e.RefTable,
		"ref_id", e.RefID,
		"requester", e.Requester,
		"amount", e.Amount.StringFixed(2),
		"currency", e.Currency,
		"reason", e.Reason,
	)
	return nil
}
