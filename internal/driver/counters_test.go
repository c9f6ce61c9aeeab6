package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMaxOperationsStopCondition(t *testing.T) {
	c := newCounters()
	cond := MaxOperations(3)

	require.False(t, cond(c))
	c.recordStatus(200)
	c.recordStatus(200)
	require.False(t, cond(c))
	c.recordStatus(200)
	require.True(t, cond(c))
}

func TestMaxAbortsStopCondition(t *testing.T) {
	c := newCounters()
	cond := MaxAborts(2)

	c.recordAbort()
	require.False(t, cond(c))
	c.recordAbort()
	require.True(t, cond(c))
}

func TestMaxStatusCodeCountStopCondition(t *testing.T) {
	c := newCounters()
	cond := MaxStatusCodeCount(500, 2)

	c.recordStatus(200)
	require.False(t, cond(c))
	c.recordStatus(500)
	require.False(t, cond(c))
	c.recordStatus(500)
	require.True(t, cond(c))
}

func TestMaxDurationStopCondition(t *testing.T) {
	c := newCounters()
	cond := MaxDuration(30 * time.Millisecond)
	require.False(t, cond(c))
	time.Sleep(40 * time.Millisecond)
	require.True(t, cond(c))
}
