package bus_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsiyukino/yukiframe/internal/bus"
	"github.com/tsiyukino/yukiframe/internal/event"
	"github.com/tsiyukino/yukiframe/internal/frameerr"
)

type fakeTarget struct {
	name         string
	subs         []string
	delivered    []string
	deliverErr   error
	autoStart    bool
	startCalls   int
	failToStart  bool
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Matches(eventType string) bool {
	for _, s := range f.subs {
		if s == "*" || s == eventType {
			return true
		}
	}
	return false
}

func (f *fakeTarget) Deliver(line string) error {
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.delivered = append(f.delivered, line)
	return nil
}

func (f *fakeTarget) ShouldAutoStart() bool { return f.autoStart }

func (f *fakeTarget) MarkStarting() error {
	f.startCalls++
	if f.failToStart {
		return fmt.Errorf("spawn failed")
	}
	f.autoStart = false
	return nil
}

func TestProcessQueueFansOutToMatchingSubscribers(t *testing.T) {
	t.Parallel()

	b := bus.New(nil, 10)
	require.NoError(t, b.Publish(event.Event{Type: "BUILD_DONE", Sender: "ci", Data: "ok"}))

	logger := &fakeTarget{name: "logger", subs: []string{"*"}}
	other := &fakeTarget{name: "other", subs: []string{"UNRELATED"}}
	ci := &fakeTarget{name: "ci", subs: []string{"*"}}

	b.ProcessQueue([]bus.FanoutTarget{logger, other, ci})

	require.Len(t, logger.delivered, 1)
	assert.Equal(t, "BUILD_DONE|ci|ok\n", logger.delivered[0])
	assert.Empty(t, other.delivered)
	require.Len(t, ci.delivered, 1, "fan-out delivers to every matching subscriber, including the publisher itself")
}

func TestPublishReturnsQueueFullAtCapacity(t *testing.T) {
	t.Parallel()

	b := bus.New(nil, 1)
	require.NoError(t, b.Publish(event.Event{Type: "A", Sender: "x", Data: ""}))

	err := b.Publish(event.Event{Type: "B", Sender: "x", Data: ""})
	require.Error(t, err)
	assert.Equal(t, frameerr.QueueFull, frameerr.KindOf(err))
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestProcessQueueTriggersOnDemandAutoStart(t *testing.T) {
	t.Parallel()

	b := bus.New(nil, 10)
	require.NoError(t, b.Publish(event.Event{Type: "NEED_INDEX", Sender: "ci", Data: ""}))

	indexer := &fakeTarget{name: "indexer", subs: []string{"NEED_INDEX"}, autoStart: true}
	b.ProcessQueue([]bus.FanoutTarget{indexer})

	assert.Equal(t, 1, indexer.startCalls)
	require.Len(t, indexer.delivered, 1)
}

func TestProcessQueueContinuesFanoutAfterOneTargetFails(t *testing.T) {
	t.Parallel()

	b := bus.New(nil, 10)
	require.NoError(t, b.Publish(event.Event{Type: "X", Sender: "ci", Data: ""}))

	broken := &fakeTarget{name: "broken", subs: []string{"*"}, deliverErr: fmt.Errorf("inbox full")}
	healthy := &fakeTarget{name: "healthy", subs: []string{"*"}}

	b.ProcessQueue([]bus.FanoutTarget{broken, healthy})

	require.Len(t, healthy.delivered, 1, "one target's delivery failure must not stop fan-out to the rest")
}
