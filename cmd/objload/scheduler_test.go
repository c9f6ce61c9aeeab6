package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/driver"
)

func TestNewSchedulerConcurrency(t *testing.T) {
	s, err := newScheduler("concurrency", 0)
	require.NoError(t, err)
	_, ok := s.(driver.ConcurrencyScheduler)
	require.True(t, ok)

	s, err = newScheduler("", 0)
	require.NoError(t, err)
	_, ok = s.(driver.ConcurrencyScheduler)
	require.True(t, ok)
}

func TestNewSchedulerConstantRequiresRate(t *testing.T) {
	_, err := newScheduler("constant", 0)
	require.Error(t, err)

	s, err := newScheduler("constant", 50)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestNewSchedulerPoissonRequiresRate(t *testing.T) {
	_, err := newScheduler("poisson", -1)
	require.Error(t, err)

	s, err := newScheduler("poisson", 50)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestNewSchedulerUnknownDistribution(t *testing.T) {
	_, err := newScheduler("bogus", 0)
	require.Error(t, err)
}
