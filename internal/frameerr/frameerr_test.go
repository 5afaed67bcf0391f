package frameerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsiyukino/yukiframe/internal/frameerr"
)

func TestIsAndKindOf(t *testing.T) {
	t.Parallel()

	err := frameerr.New(frameerr.QueueFull, "bus.Publish", nil)
	assert.True(t, frameerr.Is(err, frameerr.QueueFull))
	assert.False(t, frameerr.Is(err, frameerr.NotFound))
	assert.Equal(t, frameerr.QueueFull, frameerr.KindOf(err))
}

func TestKindOfDefaultsToGenericForForeignErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, frameerr.Generic, frameerr.KindOf(errors.New("plain error")))
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("pipe closed")
	err := frameerr.New(frameerr.PipeFailed, "registry.Start", cause)
	assert.ErrorIs(t, err, cause)
}
