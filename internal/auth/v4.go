package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tigrawap/objload/internal/request"
)

const (
	v4Algorithm        = "AWS4-HMAC-SHA256"
	streamingPayload    = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
	unsignedPayload     = "UNSIGNED-PAYLOAD"
	amzDateFormat       = "20060102T150405Z"
	dateOnlyFormat      = "20060102"
)

// PayloadMode selects how the x-amz-content-sha256 header is computed.
type PayloadMode int

const (
	// PayloadSigned hashes the full request body up front.
	PayloadSigned PayloadMode = iota
	// PayloadUnsigned sets the literal UNSIGNED-PAYLOAD sentinel.
	PayloadUnsigned
	// PayloadStreamingChunked sets the chunked-signing sentinel. Authorize
	// does not wrap the body or set Content-Length; that is left to a
	// caller using NewChunkedSigner and ChunkedSigner.ContentLength.
	PayloadStreamingChunked
)

// V4 computes AWS Signature Version 4 authorization headers.
type V4 struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string
	Payload   PayloadMode
}

// Authorize signs req in place: it sets x-amz-date, x-amz-content-sha256,
// and Authorization headers, and returns the computed signature (hex) for
// callers that need it (e.g. to seed the first chunk of a streaming
// upload).
func (v V4) Authorize(req *request.Request) (signature string, err error) {
	amzTime := time.UnixMilli(req.MessageTime).UTC()
	amzDate := amzTime.Format(amzDateFormat)
	dateStamp := amzTime.Format(dateOnlyFormat)

	payloadHash, err := v.payloadHash(req)
	if err != nil {
		return "", err
	}

	req.Headers["x-amz-date"] = amzDate
	req.Headers["x-amz-content-sha256"] = payloadHash

	canonicalRequest, signedHeaders := v.canonicalRequest(req, payloadHash)
	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, v.Region, v.Service)
	stringToSign := strings.Join([]string{
		v4Algorithm,
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := v.signingKey(dateStamp)
	sig := hmacSHA256(signingKey, []byte(stringToSign))
	signature = hex.EncodeToString(sig)

	req.Headers["Authorization"] = fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		v4Algorithm, v.AccessKey, credentialScope, signedHeaders, signature)

	return signature, nil
}

func (v V4) payloadHash(req *request.Request) (string, error) {
	switch v.Payload {
	case PayloadUnsigned:
		return unsignedPayload, nil
	case PayloadStreamingChunked:
		return streamingPayload, nil
	default:
		h := sha256.New()
		r := req.Body.Stream()
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				h.Write(buf[:n])
			}
			if err != nil {
				break
			}
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}
}

// canonicalRequest builds METHOD\nURI\nQUERY\nHEADERS\n\nSIGNED\nPAYLOAD
// and returns it alongside the semicolon-joined SignedHeaders value.
func (v V4) canonicalRequest(req *request.Request, payloadHash string) (string, string) {
	canonicalHeaders := map[string]string{
		"host": req.URI.Host,
	}
	for k, val := range req.Headers {
		lk := strings.ToLower(strings.TrimSpace(k))
		canonicalHeaders[lk] = strings.TrimSpace(val)
	}
	// forced minimums, in case the caller never set them explicitly
	canonicalHeaders["x-amz-date"] = req.Headers["x-amz-date"]
	canonicalHeaders["x-amz-content-sha256"] = req.Headers["x-amz-content-sha256"]

	keys := make([]string, 0, len(canonicalHeaders))
	for k := range canonicalHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var headerLines strings.Builder
	for _, k := range keys {
		headerLines.WriteString(k)
		headerLines.WriteString(":")
		headerLines.WriteString(canonicalHeaders[k])
		headerLines.WriteString("\n")
	}
	signedHeaders := strings.Join(keys, ";")

	canonical := strings.Join([]string{
		string(req.Method),
		uriEncodePath(req.URI.Path),
		canonicalQueryString(req.URI.RawQuery),
		headerLines.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	return canonical, signedHeaders
}

func (v V4) signingKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+v.SecretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(v.Region))
	kService := hmacSHA256(kRegion, []byte(v.Service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// uriEncodePath URI-encodes each path segment per AWS's canonicalization
// rules (RFC 3986 unreserved characters left unescaped; "/" preserved as
// a segment separator).
func uriEncodePath(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = uriEncode(seg)
	}
	return strings.Join(segments, "/")
}

func uriEncode(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
		} else {
			sb.WriteString("%")
			sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// canonicalQueryString sorts query parameters by key (then value) and
// URI-encodes each key and value per AWS rules.
func canonicalQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	type kv struct{ k, v string }
	var pairs []kv
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		kvParts := strings.SplitN(part, "=", 2)
		k := kvParts[0]
		v := ""
		if len(kvParts) == 2 {
			v = kvParts[1]
		}
		pairs = append(pairs, kv{uriEncode(k), uriEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// ChunkedSigner wraps a request body so it streams out as a sequence of
// framed, individually signed chunks: hex(len);chunk-signature=<sig>\r\n
// <bytes>\r\n, each chunk's signature computed over the previous chunk's
// signature, terminated by a zero-length chunk.
type ChunkedSigner struct {
	v               V4
	dateStamp       string
	amzDate         string
	prevSignature   string
	chunkSize       int
	src             []byte // remaining unread source bytes for this "logical" body
	offset          int
	frame           []byte // buffered, not-yet-returned framed bytes
	done            bool
}

// NewChunkedSigner constructs a ChunkedSigner over the full body content,
// seeded with the signature computed for the request's headers
// (seedSignature, the return value of V4.Authorize).
func NewChunkedSigner(v V4, req *request.Request, seedSignature string, chunkSize int) *ChunkedSigner {
	amzTime := time.UnixMilli(req.MessageTime).UTC()
	content, _ := readAll(req.Body.Stream())
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &ChunkedSigner{
		v:             v,
		dateStamp:     amzTime.Format(dateOnlyFormat),
		amzDate:       amzTime.Format(amzDateFormat),
		prevSignature: seedSignature,
		chunkSize:     chunkSize,
		src:           content,
	}
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

// Read implements io.Reader, producing framed chunk bytes until the
// terminating zero-length chunk has been emitted.
func (c *ChunkedSigner) Read(p []byte) (int, error) {
	for len(c.frame) == 0 {
		if c.done {
			return 0, io.EOF
		}
		c.nextFrame()
	}
	n := copy(p, c.frame)
	c.frame = c.frame[n:]
	return n, nil
}

func (c *ChunkedSigner) nextFrame() {
	remaining := len(c.src) - c.offset
	n := c.chunkSize
	if n > remaining {
		n = remaining
	}
	chunk := c.src[c.offset : c.offset+n]
	c.offset += n
	sig := c.signChunk(chunk)
	c.prevSignature = sig
	c.frame = []byte(
		strconv.FormatInt(int64(len(chunk)), 16) +
			";chunk-signature=" + sig + "\r\n" +
			string(chunk) + "\r\n")
	if n == 0 {
		c.done = true
	}
}

func (c *ChunkedSigner) signChunk(chunk []byte) string {
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256-PAYLOAD",
		c.amzDate,
		fmt.Sprintf("%s/%s/%s/aws4_request", c.dateStamp, c.v.Region, c.v.Service),
		c.prevSignature,
		sha256Hex(nil),
		sha256Hex(chunk),
	}, "\n")
	signingKey := c.v.signingKey(c.dateStamp)
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

// ContentLength returns the total framed length the chunked body will
// occupy on the wire, needed to set Content-Length ahead of streaming.
func (c *ChunkedSigner) ContentLength() int64 {
	total := int64(0)
	n := len(c.src)
	offset := 0
	for offset <= n {
		size := c.chunkSize
		if offset+size > n {
			size = n - offset
		}
		frameLen := int64(len(strconv.FormatInt(int64(size), 16))) + int64(len(";chunk-signature=")) + 64 + 2 + int64(size) + 2
		total += frameLen
		offset += size
		if size == 0 {
			break
		}
	}
	return total
}

