// Package httpx holds the small shared types used when assembling
// requests: URL scheme and storage credentials.
package httpx

// Scheme is the URI scheme a request is built with.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

func (s Scheme) String() string { return string(s) }

// Credential bundles the authentication material a request supplier may
// project into the request context: basic username/password, an optional
// Keystone token (OpenStack Swift), or an optional storage account name
// (Azure-flavored backends using the same engine).
type Credential struct {
	Username           string
	Password           string
	KeystoneToken      string
	StorageAccountName string
}
