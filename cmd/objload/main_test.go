package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/request"
)

func TestSplitEndpointWithPort(t *testing.T) {
	host, port := splitEndpoint("s3.example.com:9000")
	require.Equal(t, "s3.example.com", host)
	require.Equal(t, 9000, port)
}

func TestSplitEndpointWithoutPort(t *testing.T) {
	host, port := splitEndpoint("s3.example.com")
	require.Equal(t, "s3.example.com", host)
	require.Equal(t, 0, port)
}

func TestParseBodySizesFixed(t *testing.T) {
	defer withBodySizeConfig("160KiB", notSetString, notSetString)()

	fixed, minSize, maxSize, err := parseBodySizes()
	require.NoError(t, err)
	require.Equal(t, int64(160*1024), fixed)
	require.Zero(t, minSize)
	require.Zero(t, maxSize)
}

func TestParseBodySizesRange(t *testing.T) {
	defer withBodySizeConfig("1KiB", "1KiB", "4KiB")()

	fixed, minSize, maxSize, err := parseBodySizes()
	require.NoError(t, err)
	require.Zero(t, fixed)
	require.Equal(t, int64(1024), minSize)
	require.Equal(t, int64(4096), maxSize)
}

func TestParseBodySizesRangeRequiresBoth(t *testing.T) {
	defer withBodySizeConfig("1KiB", "1KiB", notSetString)()

	_, _, _, err := parseBodySizes()
	require.Error(t, err)
}

func TestParseBodySizesRangeRejectsInverted(t *testing.T) {
	defer withBodySizeConfig("1KiB", "4KiB", "1KiB")()

	_, _, _, err := parseBodySizes()
	require.Error(t, err)
}

func withBodySizeConfig(body, min, max string) func() {
	prevBody, prevMin, prevMax := config.bodySizeInput, config.minBodySizeInput, config.maxBodySizeInput
	config.bodySizeInput, config.minBodySizeInput, config.maxBodySizeInput = body, min, max
	return func() {
		config.bodySizeInput, config.minBodySizeInput, config.maxBodySizeInput = prevBody, prevMin, prevMax
	}
}

func TestResponseLatencyMissingContext(t *testing.T) {
	resp := &request.Response{Context: map[string]string{}}
	require.Zero(t, responseLatency(resp))
}

func TestResponseLatencyParsed(t *testing.T) {
	resp := &request.Response{Context: map[string]string{"x-og-response-latency-ns": "1500000"}}
	require.Equal(t, int64(1500000), responseLatency(resp).Nanoseconds())
}

func TestResponseLatencyMalformed(t *testing.T) {
	resp := &request.Response{Context: map[string]string{"x-og-response-latency-ns": "not-a-number"}}
	require.Zero(t, responseLatency(resp))
}
