package auth

import "github.com/tigrawap/objload/internal/request"

// Authorizer signs a request in place, setting whatever headers its
// scheme requires, and reports any error that prevented signing.
type Authorizer interface {
	Authorize(req *request.Request) error
}

// None signs nothing; useful when a target accepts unauthenticated
// requests.
type None struct{}

func (None) Authorize(*request.Request) error { return nil }

// V2Authorizer binds a V2 signer to a fixed access/secret key pair.
type V2Authorizer struct {
	AccessKey string
	SecretKey string
}

// Authorize sets the request's Authorization header using AWS
// Signature Version 2.
func (a V2Authorizer) Authorize(req *request.Request) error {
	req.Headers["Authorization"] = V2{}.Authorize(req, a.AccessKey, a.SecretKey)
	return nil
}

// V4Authorizer adapts V4 to the Authorizer interface.
type V4Authorizer struct {
	V4
}

// Authorize sets the request's date, payload-hash, and Authorization
// headers using AWS Signature Version 4.
func (a V4Authorizer) Authorize(req *request.Request) error {
	_, err := a.V4.Authorize(req)
	return err
}
