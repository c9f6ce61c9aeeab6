package ogerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationErrorMessageAndType(t *testing.T) {
	err := NewConfigurationError("rate must be positive")
	require.EqualError(t, err, "configuration error: rate must be positive")

	var target *ConfigurationError
	require.True(t, errors.As(err, &target))
}

func TestProtocolErrorMessageAndType(t *testing.T) {
	err := NewProtocolError("missing ETag")
	require.EqualError(t, err, "protocol error: missing ETag")

	var target *ProtocolError
	require.True(t, errors.As(err, &target))
}

func TestPopulationErrorMessageAndType(t *testing.T) {
	err := NewPopulationError("no eligible names")
	require.EqualError(t, err, "population error: no eligible names")

	var target *PopulationError
	require.True(t, errors.As(err, &target))
}

func TestInternalErrorWrapsCauseAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError("segment append failed", cause)
	require.EqualError(t, err, "internal error: segment append failed: disk full")

	require.True(t, errors.Is(err, cause))

	var target *InternalError
	require.True(t, errors.As(err, &target))
	require.Same(t, cause, target.Err)
}

func TestInternalErrorWithoutCause(t *testing.T) {
	err := NewInternalError("subscriber panicked", nil)
	require.EqualError(t, err, "internal error: subscriber panicked")
}

func TestErrorTaxonomyIsMutuallyExclusive(t *testing.T) {
	err := NewConfigurationError("bad weight")

	var proto *ProtocolError
	require.False(t, errors.As(err, &proto))
}
