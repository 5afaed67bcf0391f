package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsiyukino/yukiframe/internal/event"
	"github.com/tsiyukino/yukiframe/internal/frameerr"
)

func TestFormatParseRoundTrip(t *testing.T) {
	t.Parallel()

	e := event.Event{Type: "FILE_CHANGED", Sender: "watcher", Data: "path=/tmp/a.txt"}
	line := event.Format(e)
	assert.Equal(t, "FILE_CHANGED|watcher|path=/tmp/a.txt\n", line)

	got, err := event.Parse(line)
	require.NoError(t, err)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.Sender, got.Sender)
	assert.Equal(t, e.Data, got.Data)
}

func TestParsePreservesLiteralPipesInData(t *testing.T) {
	t.Parallel()

	got, err := event.Parse("LOG|tool-a|a|b|c\n")
	require.NoError(t, err)
	assert.Equal(t, "LOG", got.Type)
	assert.Equal(t, "tool-a", got.Sender)
	assert.Equal(t, "a|b|c", got.Data)
}

func TestParseAcceptsMissingTrailingNewline(t *testing.T) {
	t.Parallel()

	got, err := event.Parse("PING|tool-a|")
	require.NoError(t, err)
	assert.Equal(t, "PING", got.Type)
	assert.Equal(t, "tool-a", got.Sender)
	assert.Equal(t, "", got.Data)
}

func TestParseRejectsMissingPipes(t *testing.T) {
	t.Parallel()

	_, err := event.Parse("no pipes here")
	require.Error(t, err)
	assert.Equal(t, frameerr.ParseFailed, frameerr.KindOf(err))

	_, err = event.Parse("TYPE_ONLY|sender-with-no-second-pipe")
	require.Error(t, err)
	assert.Equal(t, frameerr.ParseFailed, frameerr.KindOf(err))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", event.Clamp("abc", 10))
	assert.Equal(t, "ab", event.Clamp("abcdef", 2))
	assert.Equal(t, "", event.Clamp("abc", 0))
}
