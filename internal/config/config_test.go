package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsiyukino/yukiframe/internal/config"
)

const sample = `
[core]
log_level = DEBUG
max_tools = 10
enable_remote_control = yes
control_port = 7000

[tool:logger]
command = ./bin/logger
description = writes events to disk
autostart = true
subscribe_to = "FILE_CHANGED", build_done

[tool:watcher]
command = ./bin/watcher
restart_policy = on_demand
restart_on_crash = true
max_restarts = 5
subscribe_to = *
`

func TestParseSample(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Core.LogLevel)
	assert.Equal(t, 10, cfg.Core.MaxTools)
	assert.True(t, cfg.Core.EnableRemoteControl)
	assert.Equal(t, 7000, cfg.Core.ControlPort)

	require.Len(t, cfg.Tools, 2)

	logger := cfg.Tools[0]
	assert.Equal(t, "logger", logger.Name)
	assert.Equal(t, "./bin/logger", logger.Command)
	assert.True(t, logger.Autostart)
	assert.Equal(t, []string{"FILE_CHANGED", "build_done"}, logger.SubscribeTo)

	watcher := cfg.Tools[1]
	assert.Equal(t, "on_demand", watcher.RestartPolicy)
	assert.True(t, watcher.RestartOnCrash)
	assert.Equal(t, 5, watcher.MaxRestarts)
	assert.Equal(t, []string{"*"}, watcher.SubscribeTo)
}

func TestParseRejectsDuplicateToolNames(t *testing.T) {
	t.Parallel()

	doc := `
[tool:logger]
command = a

[tool:logger]
command = b
`
	_, err := config.Parse(strings.NewReader(doc))
	require.Error(t, err)
}

func TestParseRejectsMissingCommand(t *testing.T) {
	t.Parallel()

	doc := `
[tool:logger]
description = no command here
`
	_, err := config.Parse(strings.NewReader(doc))
	require.Error(t, err)
}

func TestParseDefaultsWhenCoreSectionAbsent(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(strings.NewReader("[tool:x]\ncommand=y\n"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Core.LogLevel)
	assert.Equal(t, config.DefaultMaxTools, cfg.Core.MaxTools)
}
