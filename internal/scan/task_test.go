package scan

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgerunner0x01/violette/internal/engine"
	verrors "github.com/edgerunner0x01/violette/internal/errors"
)

func TestTaskLifecycle(t *testing.T) {
	addr := netip.MustParseAddr("10.0.0.1")

	t.Run("pending to scanning to completed", func(t *testing.T) {
		task := NewTask(addr)
		assert.Equal(t, StatePending, task.State())

		require.True(t, task.markScanning())
		assert.Equal(t, StateScanning, task.State())

		report := &engine.Report{Status: engine.StatusUp}
		require.True(t, task.complete(report))
		assert.Equal(t, StateCompleted, task.State())
		assert.Equal(t, report, task.Report())
		assert.NoError(t, task.Err())
	})

	t.Run("scanning to timed-out", func(t *testing.T) {
		task := NewTask(addr)
		require.True(t, task.markScanning())
		require.True(t, task.timeout())
		assert.Equal(t, StateTimedOut, task.State())
	})

	t.Run("scanning to failed keeps the cause", func(t *testing.T) {
		task := NewTask(addr)
		require.True(t, task.markScanning())

		cause := verrors.ErrHostUnreachable(addr.String(), nil)
		require.True(t, task.fail(cause))
		assert.Equal(t, StateFailed, task.State())
		assert.Equal(t, cause, task.Err())
	})

	t.Run("cannot scan a task twice", func(t *testing.T) {
		task := NewTask(addr)
		require.True(t, task.markScanning())
		assert.False(t, task.markScanning())
	})
}

func TestTaskTerminalTransitionsAreSingleShot(t *testing.T) {
	addr := netip.MustParseAddr("10.0.0.1")

	t.Run("late completion after timeout is discarded", func(t *testing.T) {
		task := NewTask(addr)
		require.True(t, task.markScanning())
		require.True(t, task.timeout())

		assert.False(t, task.complete(&engine.Report{Status: engine.StatusUp}))
		assert.Equal(t, StateTimedOut, task.State())
		assert.Nil(t, task.Report())
	})

	t.Run("timeout after completion is discarded", func(t *testing.T) {
		task := NewTask(addr)
		require.True(t, task.markScanning())
		require.True(t, task.complete(&engine.Report{Status: engine.StatusDown}))

		assert.False(t, task.timeout())
		assert.False(t, task.fail(verrors.ErrScanTimeout(addr.String())))
		assert.Equal(t, StateCompleted, task.State())
	})

	t.Run("duration is recorded once terminal", func(t *testing.T) {
		task := NewTask(addr)
		assert.Zero(t, task.Duration())
		require.True(t, task.markScanning())
		require.True(t, task.complete(&engine.Report{Status: engine.StatusDown}))
		assert.GreaterOrEqual(t, task.Duration(), time.Duration(0))
	})
}
