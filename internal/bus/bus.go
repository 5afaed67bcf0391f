// Package bus implements the Event Bus spec §4.D describes: a bounded,
// FIFO queue of published events that fans each one out to every
// subscribed tool, triggering on-demand starts along the way.
package bus

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tsiyukino/yukiframe/internal/event"
	"github.com/tsiyukino/yukiframe/internal/frameerr"
	"github.com/tsiyukino/yukiframe/internal/observability/logging"
)

// DefaultCapacity is the bus's pending-event queue size (spec §4.D).
const DefaultCapacity = 1000

// FanoutTarget is the narrow view the bus needs of a subscriber. registry.Tool
// satisfies this structurally, so bus never imports registry (which would
// otherwise import bus back, for the on-demand trigger).
type FanoutTarget interface {
	Name() string
	Matches(eventType string) bool
	Deliver(line string) error
	ShouldAutoStart() bool
	MarkStarting() error
}

// Bus holds pending events and knows how to fan each one out once
// ProcessQueue is called.
type Bus struct {
	log      *zap.Logger
	capacity int
	pending  []event.Event

	published uint64
	dropped   uint64
}

// New constructs an empty Bus. capacity <= 0 falls back to DefaultCapacity.
func New(log *zap.Logger, capacity int) *Bus {
	if log == nil {
		log = logging.Nop()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{log: log, capacity: capacity}
}

func (b *Bus) Pending() int     { return len(b.pending) }
func (b *Bus) Capacity() int    { return b.capacity }
func (b *Bus) Published() uint64 { return b.published }
func (b *Bus) Dropped() uint64   { return b.dropped }

// Publish enqueues one event, clamping type/sender/data to their wire caps.
// It returns QueueFull when the bus is at capacity — the caller (Output
// Pump / Control Surface) is expected to surface that to whoever produced
// the event rather than silently drop it.
func (b *Bus) Publish(e event.Event) error {
	if len(b.pending) >= b.capacity {
		b.dropped++
		return frameerr.New(frameerr.QueueFull, "bus.Publish", fmt.Errorf("event bus full (capacity %d)", b.capacity))
	}

	e.Type = event.Clamp(e.Type, event.MaxTypeLen)
	e.Sender = event.Clamp(e.Sender, event.MaxSenderLen)
	e.Data = event.Clamp(e.Data, event.MaxDataLen)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.pending = append(b.pending, e)
	b.published++
	return nil
}

// ProcessQueue drains every pending event in FIFO order, fanning each one
// out to every target whose subscriptions match. Delivery is best-effort
// per target: one target's failure is logged and does not stop fan-out to
// the rest, nor does it stop draining the queue (spec §4.D).
//
// A target that is Stopped and on-demand for a matching event type is
// started before delivery is attempted, per spec §4.D item 3.
func (b *Bus) ProcessQueue(targets []FanoutTarget) {
	queue := b.pending
	b.pending = nil

	for _, e := range queue {
		line := event.Format(e)
		for _, target := range targets {
			if !target.Matches(e.Type) {
				continue
			}
			if target.ShouldAutoStart() {
				if err := target.MarkStarting(); err != nil {
					b.log.Error("on-demand auto-start failed",
						logging.Tool(target.Name()), logging.EventType(e.Type), logging.Err(err))
					continue
				}
			}
			if err := target.Deliver(line); err != nil {
				b.log.Warn("event delivery failed",
					logging.Tool(target.Name()), logging.EventType(e.Type), logging.Err(err))
			}
		}
	}
}
