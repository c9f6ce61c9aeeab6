package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/request"
)

// putRequest routes through request.NewBuilder so Build's default
// Date-stamping from messageTime applies, the same as a real PUT
// assembled by reqsupplier — without it, no Date header would ever
// reach canonicalRequest's signed-header set.
func putRequest(t *testing.T, messageTime int64, payload []byte) *request.Request {
	t.Helper()
	req, err := request.NewBuilder(request.MethodPut, request.OperationWrite).
		WithURIString("http://127.0.0.1:8080/container/object").
		WithBody(body.Custom(payload)).
		WithMessageTime(messageTime).
		Build()
	require.NoError(t, err)
	return req
}

func signer() V4 {
	return V4{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		Region:    "dsnet",
		Service:   "s3",
	}
}

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestV4AuthorizeWorkedVector(t *testing.T) {
	req := putRequest(t, 1430419247000, make([]byte, 35))

	sig, err := signer().Authorize(req)
	require.NoError(t, err)

	require.Equal(t, "20150430T184047Z", req.Headers["x-amz-date"])
	require.Equal(t, "0d5535e13cc9708d0ff0289af2fae27e564b6bcbcd9242f5140d96957744a517", req.Headers["x-amz-content-sha256"])

	auth := req.Headers["Authorization"]
	require.Contains(t, auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20150430/dsnet/s3/aws4_request, ")
	require.Contains(t, auth, "SignedHeaders=date;host;x-amz-content-sha256;x-amz-date, ")
	require.True(t, hex64.MatchString(sig), "signature %q is not 64 lowercase hex characters", sig)
	require.Equal(t, "32e574543e02fb2f975dce2af9ec6c2ddea845ce023fa56b18b70574a5e42986", sig)
	require.Contains(t, auth, "Signature="+sig)
}

func TestV4AuthorizeIsDeterministic(t *testing.T) {
	req1 := putRequest(t, 1430419247000, make([]byte, 35))
	req2 := putRequest(t, 1430419247000, make([]byte, 35))

	sig1, err := signer().Authorize(req1)
	require.NoError(t, err)
	sig2, err := signer().Authorize(req2)
	require.NoError(t, err)

	require.Equal(t, sig1, sig2)
	require.Equal(t, req1.Headers["Authorization"], req2.Headers["Authorization"])
}

func TestV4EqualBodiesYieldEqualContentHash(t *testing.T) {
	req1 := putRequest(t, 1430419247000, []byte("identical payload bytes"))
	req2 := putRequest(t, 1430419247000, []byte("identical payload bytes"))

	_, err := signer().Authorize(req1)
	require.NoError(t, err)
	_, err = signer().Authorize(req2)
	require.NoError(t, err)

	require.Equal(t, req1.Headers["x-amz-content-sha256"], req2.Headers["x-amz-content-sha256"])
}

func TestV4DifferentContentYieldsDifferentContentHash(t *testing.T) {
	req1 := putRequest(t, 1430419247000, []byte("payload one"))
	req2 := putRequest(t, 1430419247000, []byte("payload two"))

	_, err := signer().Authorize(req1)
	require.NoError(t, err)
	_, err = signer().Authorize(req2)
	require.NoError(t, err)

	require.NotEqual(t, req1.Headers["x-amz-content-sha256"], req2.Headers["x-amz-content-sha256"])
}

// TestV4DifferentDateChangesSignatureNotSignedHeaders covers the
// worked-vector invariant that varying x-amz-date changes the signature
// while the set of signed headers stays the same.
func TestV4DifferentDateChangesSignatureNotSignedHeaders(t *testing.T) {
	req1 := putRequest(t, 1430419247000, make([]byte, 35))
	req2 := putRequest(t, 1430419247000+3600_000, make([]byte, 35))

	sig1, err := signer().Authorize(req1)
	require.NoError(t, err)
	sig2, err := signer().Authorize(req2)
	require.NoError(t, err)

	require.NotEqual(t, sig1, sig2)
	require.Contains(t, req1.Headers["Authorization"], "SignedHeaders=date;host;x-amz-content-sha256;x-amz-date")
	require.Contains(t, req2.Headers["Authorization"], "SignedHeaders=date;host;x-amz-content-sha256;x-amz-date")
}

func TestV4UnsignedPayloadSentinel(t *testing.T) {
	req := putRequest(t, 1430419247000, make([]byte, 35))
	v := signer()
	v.Payload = PayloadUnsigned

	_, err := v.Authorize(req)
	require.NoError(t, err)
	require.Equal(t, unsignedPayload, req.Headers["x-amz-content-sha256"])
}
