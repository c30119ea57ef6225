package printer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Redis unreachable", "could not connect to redis://localhost:6379", nil)
		require.Error(t, err)
		require.Equal(t, "Redis unreachable", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Redis unreachable", "connection refused", []string{
			"Check that Redis is running",
			"Set REDIS_URL to the correct address",
		})
		require.Error(t, err)
		require.Equal(t, "Redis unreachable", err.Error())
	})
}

// The Error function prints formatted output to stderr with colors; the
// returned error only carries the title for Cobra's error handling, so the
// message is not printed twice.
