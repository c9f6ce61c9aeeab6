package request

import (
	"time"

	"github.com/tigrawap/objload/internal/body"
)

// Builder assembles a Request incrementally: construction records the
// current time as the message time, withX calls mutate in place, and
// Build derives the Date header from the message time.
type Builder struct {
	method      Method
	uri         *urlHolder
	headers     Headers
	ctx         map[string]string
	body        body.Body
	messageTime int64
	operation   Operation
}

// urlHolder defers URL assembly to reqsupplier, which knows about scheme,
// host, and path composition; Builder only needs an opaque setter/getter.
type urlHolder struct {
	raw string
}

// NewBuilder constructs a Builder for method and operation, defaulting
// its message time to now; WithMessageTime overrides it before Build
// derives the Date header, so two builds with the same message time
// always produce the same Date header regardless of wall-clock time.
func NewBuilder(method Method, operation Operation) *Builder {
	return &Builder{
		method:      method,
		uri:         &urlHolder{},
		headers:     make(Headers),
		ctx:         make(map[string]string),
		body:        body.None(),
		messageTime: time.Now().UnixMilli(),
		operation:   operation,
	}
}

// WithURIString sets the fully-assembled request URI as a string; Build
// parses it with net/url.
func (b *Builder) WithURIString(raw string) *Builder {
	b.uri.raw = raw
	return b
}

// WithHeader sets a request header.
func (b *Builder) WithHeader(key, value string) *Builder {
	b.headers[key] = value
	return b
}

// WithBody sets the request body.
func (b *Builder) WithBody(body body.Body) *Builder {
	b.body = body
	return b
}

// WithMessageTime overrides the message time (epoch ms), used by tests
// that need deterministic signatures.
func (b *Builder) WithMessageTime(ms int64) *Builder {
	b.messageTime = ms
	return b
}

// WithContext sets a context key/value pair.
func (b *Builder) WithContext(key, value string) *Builder {
	b.ctx[key] = value
	return b
}

// RawURI returns the URI string assembled so far.
func (b *Builder) RawURI() string { return b.uri.raw }

// Context exposes the builder's in-progress context map for callers (like
// the multipart supplier) that need to write several keys before Build.
func (b *Builder) Context() map[string]string { return b.ctx }

// Build parses the assembled URI and returns the finished Request. If
// no caller set a Date header explicitly, one is derived from the
// message time.
func (b *Builder) Build() (*Request, error) {
	u, err := parseURI(b.uri.raw)
	if err != nil {
		return nil, err
	}
	if _, ok := HeaderLookup(b.headers, "Date"); !ok {
		b.headers["Date"] = time.UnixMilli(b.messageTime).UTC().Format(time.RFC1123)
	}
	return &Request{
		Method:      b.method,
		URI:         u,
		Headers:     b.headers,
		Body:        b.body,
		MessageTime: b.messageTime,
		Operation:   b.operation,
		Context:     b.ctx,
	}, nil
}
