package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_Children(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.Named("engine").Named("cache").With(logging.String("cache", "knot"))

	child.Warn("slow", logging.Int("n", 3))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "engine.cache", messages[0].Logger)
	v, ok := logger.Field("warn", "slow", "cache")
	assert.True(t, ok)
	assert.Equal(t, "knot", v)
	v, ok = logger.Field("warn", "slow", "n")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
