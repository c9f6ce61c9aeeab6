package auth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/request"
)

func TestNoneAuthorizeSetsNoHeaders(t *testing.T) {
	req := getRequest(t, "http://127.0.0.1:8080/container/object")
	before := len(req.Headers)

	require.NoError(t, None{}.Authorize(req))
	require.Len(t, req.Headers, before)
}

func TestV2AuthorizerSetsAuthorizationHeader(t *testing.T) {
	req := getRequest(t, "http://127.0.0.1:8080/container/object")
	a := V2Authorizer{AccessKey: "AKIDEXAMPLE", SecretKey: "secret"}

	require.NoError(t, a.Authorize(req))
	require.Contains(t, req.Headers["Authorization"], "AWS AKIDEXAMPLE:")
}

func TestV4AuthorizerSetsHeaders(t *testing.T) {
	u, err := url.Parse("http://127.0.0.1:8080/container/object")
	require.NoError(t, err)
	req := &request.Request{
		Method:      request.MethodPut,
		URI:         u,
		Headers:     request.Headers{},
		Body:        body.Zeroes(35),
		MessageTime: 1430419247000,
		Operation:   request.OperationWrite,
		Context:     map[string]string{},
	}
	a := V4Authorizer{V4: signer()}

	require.NoError(t, a.Authorize(req))
	require.NotEmpty(t, req.Headers["Authorization"])
	require.Equal(t, "20150430T184047Z", req.Headers["x-amz-date"])
}
