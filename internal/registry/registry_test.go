package registry_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsiyukino/yukiframe/internal/frameerr"
	"github.com/tsiyukino/yukiframe/internal/platform"
	"github.com/tsiyukino/yukiframe/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	return registry.New(platform.New(), nil, 10)
}

func TestRegisterRejectsDuplicateAndInvalidNames(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "logger", Command: "cat"})
	require.NoError(t, err)

	_, err = r.Register(registry.Spec{Name: "logger", Command: "cat"})
	require.Error(t, err)
	assert.Equal(t, frameerr.AlreadyExists, frameerr.KindOf(err))

	_, err = r.Register(registry.Spec{Name: "has space", Command: "cat"})
	require.Error(t, err)
	assert.Equal(t, frameerr.InvalidArg, frameerr.KindOf(err))

	_, err = r.Register(registry.Spec{Name: "no-command"})
	require.Error(t, err)
	assert.Equal(t, frameerr.InvalidArg, frameerr.KindOf(err))
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "catter", Command: "cat"})
	require.NoError(t, err)

	require.NoError(t, r.Start("catter"))
	tool, ok := r.Find("catter")
	require.True(t, ok)
	assert.Equal(t, registry.Running, tool.Status)
	assert.Greater(t, tool.PID(), 0)

	require.NoError(t, r.Stop("catter"))
	assert.Equal(t, registry.Stopped, tool.Status)
	assert.Equal(t, 0, tool.Inbox.Count())
}

func TestCheckHealthDetectsCrashAndRestarts(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{
		Name:           "flaky",
		Command:        "true", // exits immediately with status 0
		RestartPolicy:  registry.Always,
		RestartOnCrash: true,
		MaxRestarts:    2,
	})
	require.NoError(t, err)
	require.NoError(t, r.Start("flaky"))

	tool, _ := r.Find("flaky")

	// Give the child time to actually exit before sweeping.
	time.Sleep(50 * time.Millisecond)
	r.CheckHealth()

	assert.Equal(t, 1, tool.RestartCount)
	assert.NotEqual(t, registry.Crashed, tool.Status, "a tool within its restart budget should have been restarted, not left crashed")

	_ = r.Stop("flaky")
}

func TestStopIdempotentOnAlreadyStopped(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "idle", Command: "cat"})
	require.NoError(t, err)
	require.NoError(t, r.Stop("idle"))
}

func TestStopIsNoOpForNonRunningStatus(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	tool, err := r.Register(registry.Spec{Name: "flaky", Command: "true"})
	require.NoError(t, err)

	tool.Status = registry.Crashed
	require.NoError(t, r.Stop("flaky"))
	assert.Equal(t, registry.Crashed, tool.Status, "stop must not disturb a tool that isn't Running")
}

func TestCheckHealthLeavesToolCrashedWhenRestartBudgetExhausted(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{
		Name:           "flaky",
		Command:        "true",
		RestartOnCrash: true,
		MaxRestarts:    1,
	})
	require.NoError(t, err)
	require.NoError(t, r.Start("flaky"))

	tool, _ := r.Find("flaky")
	tool.RestartCount = 1 // already exhausted the budget

	time.Sleep(50 * time.Millisecond)
	r.CheckHealth()

	assert.Equal(t, registry.Crashed, tool.Status, "exhausting the restart budget leaves the tool Crashed, not Error")
}

func TestCheckHealthLeavesToolCrashedWhenRestartOnCrashDisabled(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "flaky", Command: "true", RestartOnCrash: false})
	require.NoError(t, err)
	require.NoError(t, r.Start("flaky"))

	time.Sleep(50 * time.Millisecond)
	r.CheckHealth()

	tool, _ := r.Find("flaky")
	assert.Equal(t, registry.Crashed, tool.Status)
	assert.Equal(t, 0, tool.RestartCount)
}

func TestSubscribeAppendsAndCapsAtFiftyEntries(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "watcher", Command: "cat"})
	require.NoError(t, err)

	require.NoError(t, r.Subscribe("watcher", "BUILD_DONE"))
	require.NoError(t, r.Subscribe("watcher", "BUILD_DONE")) // duplicate tolerated

	tool, _ := r.Find("watcher")
	assert.Equal(t, 1, len(tool.Subscriptions))

	for i := 0; i < registry.MaxSubscriptionsPerTool-1; i++ {
		require.NoError(t, r.Subscribe("watcher", fmt.Sprintf("TYPE_%d", i)))
	}
	err = r.Subscribe("watcher", "ONE_TOO_MANY")
	require.Error(t, err)
	assert.Equal(t, frameerr.Generic, frameerr.KindOf(err))
}

func TestSendEventWritesDirectlyToStdinWhenRunning(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "catter", Command: "cat"})
	require.NoError(t, err)

	err = r.SendEvent("catter", "EVT|src|payload")
	require.Error(t, err, "a stopped tool has no stdin to write to")
	assert.Equal(t, frameerr.Generic, frameerr.KindOf(err))

	require.NoError(t, r.Start("catter"))
	require.NoError(t, r.SendEvent("catter", "EVT|src|payload"))

	tool, _ := r.Find("catter")
	assert.Equal(t, uint64(1), tool.EventsSent)
}

func TestDrainInboxesDeliversQueuedMessagesToStdin(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	_, err := r.Register(registry.Spec{Name: "catter", Command: "cat"})
	require.NoError(t, err)
	require.NoError(t, r.Start("catter"))

	tool, _ := r.Find("catter")
	require.NoError(t, tool.Deliver("EVT|src|payload\n"))
	assert.Equal(t, 1, tool.Inbox.Count())

	r.DrainInboxes()

	assert.Equal(t, 0, tool.Inbox.Count(), "a queued message must be popped and written once its tool is Running")
	assert.Equal(t, uint64(1), tool.EventsSent)

	_ = r.Stop("catter")
}

func TestUnregisterPreservesOrderOfRemainingTools(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := r.Register(registry.Spec{Name: name, Command: "cat"})
		require.NoError(t, err)
	}

	require.NoError(t, r.Unregister("b"))

	names := make([]string, 0, 2)
	for _, t := range r.Tools() {
		names = append(names, t.Name())
	}
	assert.Equal(t, []string{"a", "c"}, names)
}
