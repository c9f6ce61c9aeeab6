// Package reqsupplier implements single-step request production: PUT, GET,
// DELETE, HEAD, POST and metadata operations.
package reqsupplier

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/httpx"
	"github.com/tigrawap/objload/internal/lru"
	"github.com/tigrawap/objload/internal/ogerrors"
	"github.com/tigrawap/objload/internal/request"
)

// ContextFunc evaluates against the in-progress request context, writing
// into it (e.g. storing a chosen object name) and returning its own
// string value for convenience.
type ContextFunc func(ctx map[string]string) string

// CredentialFunc produces a Credential given the in-progress context (so
// that, e.g., a storage-account credential lookup can depend on a
// container name written moments earlier).
type CredentialFunc func(ctx map[string]string) httpx.Credential

// BodyFunc produces a Body given the in-progress context.
type BodyFunc func(ctx map[string]string) body.Body

// Config describes a single-step request supplier instance. Most fields
// left nil/zero are skipped during request construction; Host is always
// called and must be set.
type Config struct {
	ID          ContextFunc
	Method      request.Method
	Operation   request.Operation
	Scheme      httpx.Scheme
	Host        ContextFunc
	Port        int // 0 means "omit from URI"
	URIRoot     string
	Container   ContextFunc
	APIVersion  string
	Object      ContextFunc
	QueryParams map[string]ContextFunc
	// QueryOrder preserves configured iteration order for query parameter
	// insertion, since the signed URI must be built with stable order.
	QueryOrder  []string
	TrailingSlash bool
	Headers     map[string]ContextFunc
	// HeaderOrder preserves configured iteration order.
	HeaderOrder   []string
	ContextFuncs  []ContextFunc
	Credentials   CredentialFunc
	Body          BodyFunc
	VirtualHost   bool
	Retention     ContextFunc
	LegalHold     ContextFunc
	ContentMD5    bool
}

// Supplier produces a Request each time Get is called.
type Supplier struct {
	cfg         Config
	md5Cache    *lru.Cache[int64, []byte]
}

// New constructs a Supplier from cfg. Panics if Container is nil while
// Object is non-nil.
func New(cfg Config) *Supplier {
	if cfg.Container == nil && cfg.Object != nil {
		panic("reqsupplier: object supplier requires a container supplier")
	}
	return &Supplier{cfg: cfg, md5Cache: lru.New[int64, []byte](100)}
}

// Get produces the next Request.
func (s *Supplier) Get() (*request.Request, error) {
	ctx := make(map[string]string)
	cfg := s.cfg

	for _, fn := range cfg.ContextFuncs {
		fn(ctx)
	}

	var containerName string
	if cfg.Container != nil {
		containerName = cfg.Container(ctx)
		ctx[request.XOGContainerName] = containerName
	}

	if cfg.Credentials != nil {
		cred := cfg.Credentials(ctx)
		if cred.Username != "" {
			ctx[request.XOGUsername] = cred.Username
		}
		if cred.Password != "" {
			ctx[request.XOGPassword] = cred.Password
		}
		if cred.KeystoneToken != "" {
			ctx[request.XOGKeystoneToken] = cred.KeystoneToken
		}
		if cred.StorageAccountName != "" {
			ctx[request.XOGStorageAccountName] = cred.StorageAccountName
		}
	}

	if cfg.LegalHold != nil {
		cfg.LegalHold(ctx)
	}

	var objectName string
	if cfg.Object != nil {
		objectName = cfg.Object(ctx)
		if objectName == "" {
			return nil, ogerrors.NewPopulationError("no object available for " + string(cfg.Operation))
		}
		ctx[request.XOGObjectName] = objectName
	}

	builder := request.NewBuilder(cfg.Method, cfg.Operation)
	builder.WithURIString(s.buildURL(ctx, containerName, objectName))

	for _, key := range cfg.HeaderOrder {
		if fn, ok := cfg.Headers[key]; ok {
			builder.WithHeader(key, fn(ctx))
		}
	}

	if cfg.Retention != nil {
		cfg.Retention(ctx)
		if v, ok := ctx[request.XOGObjectRetention]; ok && v != "" {
			builder.WithHeader(request.XOGObjectRetention, v)
		}
	}
	if v, ok := ctx[request.XOGLegalHold]; ok && v != "" {
		builder.WithHeader(request.XOGLegalHold, v)
	}

	if cfg.ID != nil {
		builder.WithContext(request.XOGRequestID, cfg.ID(ctx))
	}

	for k, v := range ctx {
		builder.WithContext(k, v)
	}

	if cfg.Body != nil {
		b := cfg.Body(ctx)
		builder.WithBody(b)
		if cfg.Retention != nil || cfg.LegalHold != nil || cfg.ContentMD5 {
			digest := s.md5ForSize(b.Size)
			builder.WithHeader(request.XOGContentMD5, base64.StdEncoding.EncodeToString(digest))
		}
	}

	return builder.Build()
}

// md5ForSize returns the MD5 digest of a fixed zero-filled pattern of
// size bytes, cached (LRU, capacity 100) since repeated sizes are common
// across many requests.
func (s *Supplier) md5ForSize(size int64) []byte {
	return s.md5Cache.GetOrCompute(size, func() []byte {
		h := md5.New()
		io := body.Zeroes(size).Stream()
		buf := make([]byte, 32*1024)
		for {
			n, err := io.Read(buf)
			if n > 0 {
				h.Write(buf[:n])
			}
			if err != nil {
				break
			}
		}
		return h.Sum(nil)
	})
}

func (s *Supplier) buildURL(ctx map[string]string, containerName, objectName string) string {
	cfg := s.cfg
	var sb strings.Builder
	sb.WriteString(string(cfg.Scheme))
	sb.WriteString("://")

	if cfg.VirtualHost && containerName != "" {
		sb.WriteString(containerName)
		sb.WriteString(".")
	}
	sb.WriteString(cfg.Host(ctx))
	if cfg.Port != 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(cfg.Port))
	}

	if !cfg.VirtualHost {
		sb.WriteString("/")
		if cfg.URIRoot != "" {
			sb.WriteString(cfg.URIRoot)
			sb.WriteString("/")
		}
		if cfg.APIVersion != "" {
			sb.WriteString(cfg.APIVersion)
			sb.WriteString("/")
		}
		if acct := storageAccountPath(ctx, cfg.APIVersion); acct != "" {
			sb.WriteString(acct)
		}
		if containerName != "" {
			sb.WriteString(containerName)
		}
	}

	if cfg.Object != nil {
		sb.WriteString("/")
		sb.WriteString(objectName)
	}

	if cfg.TrailingSlash {
		sb.WriteString("/")
	}

	if len(cfg.QueryOrder) > 0 {
		sb.WriteString("?")
		for i, key := range cfg.QueryOrder {
			if i > 0 {
				sb.WriteString("&")
			}
			sb.WriteString(key)
			fn := cfg.QueryParams[key]
			if fn != nil {
				if v := fn(ctx); v != "" {
					sb.WriteString("=")
					sb.WriteString(v)
				}
			}
		}
	}

	return sb.String()
}

// storageAccountPath returns the account path segment: if a storage
// account name is present in context it's used directly; otherwise, if an
// API version is configured, a placeholder account name is substituted
// (vault-mode Swift accesses expect one even when unauthenticated); when
// neither applies, no segment is added.
func storageAccountPath(ctx map[string]string, apiVersion string) string {
	if name, ok := ctx[request.XOGStorageAccountName]; ok && name != "" {
		return fmt.Sprintf("%s/", name)
	}
	if apiVersion != "" {
		return "dummyaccount/"
	}
	return ""
}
