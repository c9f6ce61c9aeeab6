// Package auth implements AWS Signature v2 and v4 request signing.
package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"

	"github.com/tigrawap/objload/internal/request"
)

// subresources is the set of S3 query-string keys that participate in v2
// canonicalization.
var subresources = map[string]bool{
	"acl": true, "lifecycle": true, "location": true, "logging": true,
	"notification": true, "partNumber": true, "policy": true,
	"requestPayment": true, "torrent": true, "uploadId": true,
	"uploads": true, "versionId": true, "versioning": true,
	"versions": true, "website": true,
}

// V2 computes AWS Signature Version 2 authorization headers.
//
// Only path-style requests are signed correctly; virtual-host requests
// are not accounted for. Non-subresource query parameters are never
// included in the canonicalized resource, and amz-header canonicalization
// only covers collection and sorting, not value folding or unfolding.
type V2 struct{}

// Authorize returns the value of the Authorization header for req, signed
// with accessKey/secretKey.
func (V2) Authorize(req *request.Request, accessKey, secretKey string) string {
	return "AWS " + accessKey + ":" + V2{}.Signature(req, secretKey)
}

// Signature returns the base64 HMAC-SHA1 signature of req's string-to-sign.
func (V2) Signature(req *request.Request, secretKey string) string {
	sts := V2{}.StringToSign(req)
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(sts))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// StringToSign builds the v2 string-to-sign:
// METHOD\nContent-MD5\nContent-Type\nDate\nCanonicalizedAmzHeaders\nCanonicalizedResource
func (V2) StringToSign(req *request.Request) string {
	date := headerOrDefault(req.Headers, "X-Amz-Date", headerOrDefault(req.Headers, "Date", ""))
	var sb strings.Builder
	sb.WriteString(string(req.Method))
	sb.WriteString("\n")
	sb.WriteString(headerOrDefault(req.Headers, "Content-MD5", ""))
	sb.WriteString("\n")
	sb.WriteString(headerOrDefault(req.Headers, "Content-Type", ""))
	sb.WriteString("\n")
	sb.WriteString(date)
	sb.WriteString("\n")
	sb.WriteString(V2{}.CanonicalizedAmzHeaders(req))
	sb.WriteString(V2{}.CanonicalizedResource(req))
	return sb.String()
}

func headerOrDefault(h request.Headers, key, def string) string {
	if v, ok := request.HeaderLookup(h, key); ok {
		return v
	}
	return def
}

// CanonicalizedAmzHeaders collects all headers whose lowercased key starts
// with x-amz- (excluding x-amz-date), sorts by key, and joins as
// "key:value\n".
func (V2) CanonicalizedAmzHeaders(req *request.Request) string {
	type kv struct{ k, v string }
	var entries []kv
	for k, v := range req.Headers {
		lower := strings.ToLower(strings.TrimSpace(k))
		if strings.HasPrefix(lower, "x-amz-") && lower != "x-amz-date" {
			entries = append(entries, kv{lower, strings.TrimSpace(v)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.k)
		sb.WriteString(":")
		sb.WriteString(e.v)
		sb.WriteString("\n")
	}
	return sb.String()
}

// CanonicalizedResource returns the request path, plus, if any recognized
// subresource query keys are present, a sorted "?k[=v]&..." suffix.
// Non-subresource query parameters are never included.
func (V2) CanonicalizedResource(req *request.Request) string {
	params := splitQueryParameters(req.URI.RawQuery)
	var keys []string
	for k := range params {
		if subresources[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return req.URI.Path
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(req.URI.Path)
	sb.WriteString("?")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("&")
		}
		sb.WriteString(k)
		if v, ok := params[k]; ok && v != nil {
			sb.WriteString("=")
			sb.WriteString(*v)
		}
	}
	return sb.String()
}

// splitQueryParameters splits a raw query string into key -> *value,
// preserving bare keys (no '=') as a nil value, since AWS subresources
// like "uploads" or "torrent" are valueless. net/url's own parser
// discards this distinction, so it is reimplemented here.
func splitQueryParameters(query string) map[string]*string {
	result := make(map[string]*string)
	if query == "" {
		return result
	}
	for _, q := range strings.Split(query, "&") {
		if q == "" {
			continue
		}
		parts := strings.SplitN(q, "=", 2)
		if len(parts) == 2 {
			v := parts[1]
			result[parts[0]] = &v
		} else {
			result[parts[0]] = nil
		}
	}
	return result
}
