package multipart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/body"
)

func TestSessionPartSplitEvenDivision(t *testing.T) {
	s := NewSession("c", "o", "upload-1", "", 300, 100, 4, body.ZEROES, map[string]string{})
	require.Equal(t, 3, s.partsToSend)
	require.EqualValues(t, 100, s.lastPartSize)
}

func TestSessionPartSplitRemainder(t *testing.T) {
	s := NewSession("c", "o", "upload-1", "", 250, 100, 4, body.ZEROES, map[string]string{})
	require.Equal(t, 3, s.partsToSend)
	require.EqualValues(t, 50, s.lastPartSize)
}

func TestSessionStateProgression(t *testing.T) {
	s := NewSession("c", "o", "upload-1", "", 200, 100, 4, body.ZEROES, map[string]string{})
	require.Equal(t, kindPart, s.nextRequestKind())

	p1 := s.startPartRequest()
	require.Equal(t, 1, p1)
	require.Equal(t, kindPart, s.nextRequestKind(), "second part still within maxParts and partsToSend")

	p2 := s.startPartRequest()
	require.Equal(t, 2, p2)
	require.Equal(t, kindInternalPending, s.nextRequestKind(), "all parts started, none finished yet")

	s.finishPartRequest(p1, "etag-1")
	require.Equal(t, kindInternalPending, s.nextRequestKind())

	s.finishPartRequest(p2, "etag-2")
	require.Equal(t, kindComplete, s.nextRequestKind())

	xmlBody := s.startCompleteRequest()
	require.Contains(t, xmlBody, "<PartNumber>1</PartNumber>")
	require.Contains(t, xmlBody, "<ETag>etag-1</ETag>")
	require.Contains(t, xmlBody, "<PartNumber>2</PartNumber>")
	require.Equal(t, kindInternalPending, s.nextRequestKind(), "complete in progress, not yet finished")

	s.finishCompleteRequest()
	require.Equal(t, kindInternalDone, s.nextRequestKind())
}

func TestCompleteRequestBodyOrdersByPartNumber(t *testing.T) {
	body := completeRequestBody([]partResult{
		{partNumber: 2, etag: "b"},
		{partNumber: 1, etag: "a"},
	})
	firstIdx := indexOf(body, "<PartNumber>1</PartNumber>")
	secondIdx := indexOf(body, "<PartNumber>2</PartNumber>")
	require.Greater(t, secondIdx, firstIdx)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
