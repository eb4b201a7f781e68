package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFirstWaitIsFree(t *testing.T) {
	p := NewPacer(time.Hour)
	slept := false
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}

	require.NoError(t, p.Wait(context.Background()))
	assert.False(t, slept)
}

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(time.Hour)
	var sleptFor time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleptFor = d
		return nil
	}

	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))

	assert.Greater(t, sleptFor, time.Duration(0))
	assert.LessOrEqual(t, sleptFor, time.Hour)
}

func TestPacerZeroIntervalIsNoop(t *testing.T) {
	p := NewPacer(0)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("should not sleep")
		return nil
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
}

func TestPacerContextCancellation(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}
