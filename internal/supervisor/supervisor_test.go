package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsiyukino/yukiframe/internal/config"
	"github.com/tsiyukino/yukiframe/internal/platform"
	"github.com/tsiyukino/yukiframe/internal/registry"
	"github.com/tsiyukino/yukiframe/internal/supervisor"
)

func testConfig() *config.Config {
	return &config.Config{
		Core: config.Core{MaxTools: 10, MessageQueueSize: 100, LogLevel: "INFO"},
		Tools: []config.Tool{
			{Name: "logger", Command: "cat", Autostart: true, SubscribeTo: []string{"*"}},
		},
	}
}

func TestRunAutostartsAndShutsDownCleanly(t *testing.T) {
	t.Parallel()

	sup, err := supervisor.New(nil, platform.New(), "unused.ini", testConfig())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		tool, ok := sup.Registry().Find("logger")
		return ok && tool.Status == registry.Running
	}, time.Second, 5*time.Millisecond)

	sup.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	tool, _ := sup.Registry().Find("logger")
	assert.Equal(t, registry.Stopped, tool.Status)
}

func TestDispatcherListReflectsRegisteredTools(t *testing.T) {
	t.Parallel()

	sup, err := supervisor.New(nil, platform.New(), "unused.ini", testConfig())
	require.NoError(t, err)

	out := sup.Dispatcher().Dispatch("list")
	assert.Contains(t, out, "logger")
}
