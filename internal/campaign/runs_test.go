package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsRejectsConcurrentRun(t *testing.T) {
	runs := NewRuns()
	id := uuid.New()

	_, done, err := runs.Begin(context.Background(), id, RunScrape)
	require.NoError(t, err)

	_, _, err = runs.Begin(context.Background(), id, RunSend)
	assert.ErrorIs(t, err, ErrCampaignBusy)

	_, otherDone, err := runs.Begin(context.Background(), uuid.New(), RunSend)
	require.NoError(t, err)
	otherDone()

	kind, ok := runs.Active(id)
	assert.True(t, ok)
	assert.Equal(t, RunScrape, kind)

	done()
	done()

	_, ok = runs.Active(id)
	assert.False(t, ok)

	_, done, err = runs.Begin(context.Background(), id, RunGenerate)
	require.NoError(t, err)
	done()
}

func TestRunsAbortCancelsContext(t *testing.T) {
	runs := NewRuns()
	id := uuid.New()

	assert.False(t, runs.Abort(id))

	ctx, done, err := runs.Begin(context.Background(), id, RunSend)
	require.NoError(t, err)
	defer done()

	assert.True(t, runs.Abort(id))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("run context not cancelled")
	}
}

func TestRunsShutdownWaitsForRuns(t *testing.T) {
	runs := NewRuns()

	ctx, done, err := runs.Begin(context.Background(), uuid.New(), RunSend)
	require.NoError(t, err)

	go func() {
		<-ctx.Done()
		done()
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, runs.Shutdown(shutdownCtx))
}
