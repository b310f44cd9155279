package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/querycache"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchProgressTellsLoadFromRefresh(t *testing.T) {
	t.Parallel()

	queue := newSnapshotQueue()
	t.Cleanup(queue.close)
	var model tea.Model = newFetchProgressModel("tasks", queue, nil)
	assert.Contains(t, model.View(), "Loading tasks...")

	model, cmd := model.Update(snapshotsMsg{{Status: querycache.StatusLoading, Version: 1}})
	assert.NotNil(t, cmd)
	assert.Contains(t, model.View(), "Loading tasks...")

	cached := querycache.Snapshot{
		Status:    querycache.StatusLoading,
		Data:      domain.TaskPage{Total: 1},
		FetchedAt: time.Now(),
		Version:   3,
	}
	model, _ = model.Update(snapshotsMsg{cached, {Status: querycache.StatusLoading, Version: 2}})
	assert.Contains(t, model.View(), "Refreshing tasks...")

	model, cmd = model.Update(fetchDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, model.View())
}

func TestSnapshotQueueNeverBlocksPush(t *testing.T) {
	t.Parallel()

	queue := newSnapshotQueue()
	for i := 0; i < 1000; i++ {
		queue.push(querycache.Snapshot{Version: uint64(i)})
	}

	msg, ok := queue.next().(snapshotsMsg)
	require.True(t, ok)
	assert.Len(t, msg, 1000)
	assert.Equal(t, uint64(999), msg[len(msg)-1].Version)

	queue.close()
	assert.Nil(t, queue.next())
}

func TestRunFetchReturnsFetchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	for _, asJSON := range []bool{false, true} {
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())
		stderr := &bytes.Buffer{}
		cmd.SetErr(stderr)

		var observed bool
		err := runFetch(cmd, asJSON, "analytics", func(_ context.Context, observe querycache.Listener) error {
			observed = observe != nil
			if observe != nil {
				observe(querycache.Snapshot{Status: querycache.StatusLoading})
			}
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, !asJSON, observed)
		if asJSON {
			assert.Empty(t, stderr.String())
		}
	}
}
