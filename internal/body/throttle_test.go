package body

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottledReaderClampsSingleReadToBurst(t *testing.T) {
	tr := NewThrottledReader(context.Background(), Zeroes(5000).Stream(), 1000) // burst = 1000

	buf := make([]byte, 5000)
	n, err := tr.Read(buf)

	require.NoError(t, err)
	require.LessOrEqual(t, n, 1000)
}

func TestThrottledReaderPacesReadsAtConfiguredRate(t *testing.T) {
	const bytesPerSecond = 1000
	tr := NewThrottledReader(context.Background(), Zeroes(1400).Stream(), bytesPerSecond)

	start := time.Now()
	n, err := io.Copy(io.Discard, tr)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.EqualValues(t, 1400, n)
	// The first 1000 bytes are covered by the initial burst; the
	// remaining 400 bytes must wait ~0.4s at 1000 B/s.
	require.GreaterOrEqual(t, elapsed, 350*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestThrottledReaderStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := NewThrottledReader(ctx, Zeroes(10_000).Stream(), 100)

	buf := make([]byte, 10_000)
	_, err := tr.Read(buf) // consumes the initial burst, leaving a wait pending
	require.NoError(t, err)

	cancel()
	_, err = tr.Read(buf)
	require.Error(t, err)
}

func TestNewThrottledReaderClampsNonPositiveRate(t *testing.T) {
	tr := NewThrottledReader(context.Background(), Zeroes(10).Stream(), 0)
	require.Equal(t, 1, tr.burst)
}
