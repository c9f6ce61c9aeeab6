// Package multipart implements the session state machine for S3
// multipart uploads: INITIATE, a stream of PART requests bounded by a
// per-session concurrency cap, and COMPLETE once every part has
// finished. ABORT is recognized as a request kind but never scheduled;
// the trigger policy for abandoning a session (on error, on timeout) is
// left to a future caller.
package multipart

import (
	"fmt"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/httpx"
	"github.com/tigrawap/objload/internal/logging"
	"github.com/tigrawap/objload/internal/ogerrors"
	"github.com/tigrawap/objload/internal/request"
)

// ContextFunc evaluates against the in-progress request context.
type ContextFunc func(ctx map[string]string) string

// CredentialFunc produces a Credential given the in-progress context.
type CredentialFunc func(ctx map[string]string) httpx.Credential

// BodyFunc produces the full object Body for a new session's INITIATE
// request; PART bodies are derived from it by size and data type.
type BodyFunc func(ctx map[string]string) body.Body

// PartSizeFunc returns the byte size to split a new session's parts into.
type PartSizeFunc func(ctx map[string]string) int64

// MaxPartsFunc returns the maximum number of PART requests a new
// session may have in flight at once.
type MaxPartsFunc func(ctx map[string]string) int

// Config describes a multipart request-supplier instance.
type Config struct {
	ID             ContextFunc
	Scheme         httpx.Scheme
	Host           ContextFunc
	Port           int
	URIRoot        string
	APIVersion     string
	Container      ContextFunc
	Object         ContextFunc
	PartSize       PartSizeFunc
	MaxParts       MaxPartsFunc
	TargetSessions int
	Headers        map[string]ContextFunc
	HeaderOrder    []string
	ContextFuncs   []ContextFunc
	Credentials    CredentialFunc
	Body           BodyFunc
	VirtualHost    bool
	ContentMD5     bool
}

// Manager schedules and tracks multipart sessions, producing the next
// request to send on each call to Get and consuming responses via
// Update.
type Manager struct {
	cfg Config

	mu                 sync.Mutex
	cond               *sync.Cond
	inProgressSessions int
	actionable         []*Session
	byUploadID         map[string]*Session
	rng                *mrand.Rand
}

// New constructs a Manager from cfg.
func New(cfg Config) *Manager {
	m := &Manager{
		cfg:        cfg,
		byUploadID: make(map[string]*Session),
		rng:        mrand.New(mrand.NewPCG(1, 2)),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// getNextSession returns the session to act on next, or nil to signal
// that a new session (INITIATE) should be started. Blocks when the
// target session count has been reached and no session is actionable.
func (m *Manager) getNextSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.inProgressSessions < m.cfg.TargetSessions {
			return nil
		}
		if len(m.actionable) > 0 {
			idx := m.rng.IntN(len(m.actionable))
			session := m.actionable[idx]
			kind := session.nextRequestKind()
			if kind == kindInternalPending || kind == kindInternalError {
				m.removeActionableLocked(session)
				continue
			}
			if kind == kindComplete {
				m.removeActionableLocked(session)
			}
			return session
		}
		m.cond.Wait()
	}
}

func (m *Manager) removeActionableLocked(s *Session) {
	for i, c := range m.actionable {
		if c == s {
			m.actionable = append(m.actionable[:i], m.actionable[i+1:]...)
			break
		}
	}
	s.setActionable(false)
}

func (m *Manager) addActionableLocked(s *Session) {
	if s.isActionable() {
		return
	}
	m.actionable = append(m.actionable, s)
	s.setActionable(true)
}

// Get produces the next multipart request.
func (m *Manager) Get() (*request.Request, error) {
	ctx := make(map[string]string)
	session := m.getNextSession()

	var builder *request.Builder
	var err error

	if session == nil {
		m.mu.Lock()
		m.inProgressSessions++
		m.mu.Unlock()
		for _, fn := range m.cfg.ContextFuncs {
			fn(ctx)
		}
		builder, err = m.createInitiateRequest(ctx)
	} else {
		switch session.nextRequestKind() {
		case kindPart:
			partNumber := session.startPartRequest()
			builder, err = m.createPartRequest(ctx, session, partNumber)
		case kindComplete:
			xmlBody := session.startCompleteRequest()
			builder, err = m.createCompleteRequest(ctx, session, xmlBody)
		case kindAbort:
			builder, err = m.createAbortRequest(ctx, session)
		default:
			return nil, ogerrors.NewInternalError("multipart session has no actionable request kind", nil)
		}
	}
	if err != nil {
		return nil, err
	}

	for _, key := range m.cfg.HeaderOrder {
		if fn, ok := m.cfg.Headers[key]; ok {
			builder.WithHeader(key, fn(ctx))
		}
	}
	if m.cfg.ID != nil {
		builder.WithContext(request.XOGRequestID, m.cfg.ID(ctx))
	}
	if m.cfg.Credentials != nil {
		cred := m.cfg.Credentials(ctx)
		if cred.Username != "" {
			builder.WithContext(request.XOGUsername, cred.Username)
		}
		if cred.Password != "" {
			builder.WithContext(request.XOGPassword, cred.Password)
		}
		if cred.KeystoneToken != "" {
			builder.WithContext(request.XOGKeystoneToken, cred.KeystoneToken)
		}
	}
	for k, v := range ctx {
		builder.WithContext(k, v)
	}
	builder.WithContext(request.XOGResponseBodyConsumer, "s3.multipart")

	return builder.Build()
}

func (m *Manager) createInitiateRequest(ctx map[string]string) (*request.Builder, error) {
	fullBody := m.cfg.Body(ctx)
	partSize := m.cfg.PartSize(ctx)
	maxParts := m.cfg.MaxParts(ctx)
	containerName := m.cfg.Container(ctx)

	ctx[request.XOGContainerName] = containerName
	ctx[request.XOGMultipartContainer] = containerName
	if m.cfg.Object != nil {
		ctx[request.XOGObjectName] = m.cfg.Object(ctx)
	}
	ctx[request.XOGObjectSize] = strconv.FormatInt(fullBody.Size, 10)
	ctx[request.XOGMultipartBodyDataType] = fullBody.DataType.String()
	ctx[request.XOGMultipartPartSize] = strconv.FormatInt(partSize, 10)
	ctx[request.XOGMultipartMaxParts] = strconv.Itoa(maxParts)
	ctx[request.XOGMultipartRequest] = "INITIATE"

	b := request.NewBuilder(request.MethodPost, request.OperationMultipartInitiate)
	b.WithURIString(m.buildURL(ctx, containerName, "", "uploads", ""))
	return b, nil
}

func (m *Manager) createPartRequest(ctx map[string]string, s *Session, partNumber int) (*request.Builder, error) {
	size := s.nextPartSize()
	partBody := body.FromDataType(s.BodyDataType, size)

	ctx[request.XOGMultipartRequest] = "PART"
	ctx[request.XOGMultipartUploadID] = s.UploadID
	ctx[request.XOGMultipartPartNumber] = strconv.Itoa(partNumber)
	ctx[request.XOGContainerName] = s.ContainerName
	ctx[request.XOGObjectName] = s.ObjectName

	b := request.NewBuilder(request.MethodPut, request.OperationMultipartPart)
	b.WithURIString(m.buildURL(ctx, s.ContainerName, s.ObjectName, "partNumber", strconv.Itoa(partNumber)))
	b.WithURIString(appendQueryParam(b.RawURI(), "uploadId", s.UploadID))
	b.WithBody(partBody)
	return b, nil
}

func (m *Manager) createCompleteRequest(ctx map[string]string, s *Session, xmlBody string) (*request.Builder, error) {
	ctx[request.XOGMultipartRequest] = "COMPLETE"
	ctx[request.XOGMultipartUploadID] = s.UploadID
	ctx[request.XOGContainerName] = s.ContainerName
	ctx[request.XOGObjectName] = s.ObjectName

	b := request.NewBuilder(request.MethodPost, request.OperationMultipartComplete)
	b.WithURIString(m.buildURL(ctx, s.ContainerName, s.ObjectName, "uploadId", s.UploadID))
	b.WithBody(body.Custom([]byte(xmlBody)))
	return b, nil
}

func (m *Manager) createAbortRequest(ctx map[string]string, s *Session) (*request.Builder, error) {
	ctx[request.XOGMultipartRequest] = "ABORT"
	ctx[request.XOGMultipartUploadID] = s.UploadID
	ctx[request.XOGContainerName] = s.ContainerName
	ctx[request.XOGObjectName] = s.ObjectName

	b := request.NewBuilder(request.MethodDelete, request.OperationMultipartAbort)
	b.WithURIString(m.buildURL(ctx, s.ContainerName, s.ObjectName, "uploadId", s.UploadID))
	return b, nil
}

func (m *Manager) buildURL(ctx map[string]string, containerName, objectName, queryKey, queryValue string) string {
	var sb strings.Builder
	sb.WriteString(string(m.cfg.Scheme))
	sb.WriteString("://")
	if m.cfg.VirtualHost && containerName != "" {
		sb.WriteString(containerName)
		sb.WriteString(".")
	}
	sb.WriteString(m.cfg.Host(ctx))
	if m.cfg.Port != 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(m.cfg.Port))
	}
	if !m.cfg.VirtualHost {
		sb.WriteString("/")
		if m.cfg.URIRoot != "" {
			sb.WriteString(m.cfg.URIRoot)
			sb.WriteString("/")
		}
		if m.cfg.APIVersion != "" {
			sb.WriteString(m.cfg.APIVersion)
			sb.WriteString("/")
		}
		sb.WriteString(containerName)
	}
	if objectName != "" {
		sb.WriteString("/")
		sb.WriteString(objectName)
	}
	if queryKey != "" {
		sb.WriteString("?")
		sb.WriteString(queryKey)
		if queryValue != "" {
			sb.WriteString("=")
			sb.WriteString(queryValue)
		}
	}
	return sb.String()
}

func appendQueryParam(rawURI, key, value string) string {
	sep := "?"
	if strings.Contains(rawURI, "?") {
		sep = "&"
	}
	return rawURI + sep + key + "=" + value
}

// Update consumes a completed request/response pair. It is intended to
// be wired in as an eventbus.Subscriber; non-multipart responses (those
// without x-og-multipart-request in the request context) are ignored.
func (m *Manager) Update(req *request.Request, resp *request.Response) error {
	operation, ok := req.Context[request.XOGMultipartRequest]
	if !ok {
		return nil
	}

	switch operation {
	case "INITIATE":
		if resp.StatusCode != 200 {
			m.mu.Lock()
			m.inProgressSessions--
			m.mu.Unlock()
			logging.Log().Info().Int("status", resp.StatusCode).Msg("multipart initiate failed")
			return nil
		}
		uploadID := resp.Context[request.XOGMultipartUploadID]
		if uploadID == "" {
			return ogerrors.NewProtocolError("multipart initiate response missing upload id")
		}
		objectSize, _ := strconv.ParseInt(req.Context[request.XOGObjectSize], 10, 64)
		partSize, _ := strconv.ParseInt(req.Context[request.XOGMultipartPartSize], 10, 64)
		maxParts, _ := strconv.Atoi(req.Context[request.XOGMultipartMaxParts])
		dataType := dataTypeFromString(req.Context[request.XOGMultipartBodyDataType])

		session := NewSession(
			req.Context[request.XOGContainerName],
			req.Context[request.XOGObjectName],
			uploadID,
			req.Context[request.XOGContainerSuffix],
			objectSize, partSize, maxParts, dataType, req.Context,
		)

		m.mu.Lock()
		m.byUploadID[uploadID] = session
		m.addActionableLocked(session)
		m.cond.Signal()
		m.mu.Unlock()

	case "PART":
		uploadID := req.Context[request.XOGMultipartUploadID]
		m.mu.Lock()
		session := m.byUploadID[uploadID]
		m.mu.Unlock()
		if session == nil {
			return ogerrors.NewProtocolError(fmt.Sprintf("multipart part response for unknown upload %s", uploadID))
		}
		etag, ok := request.HeaderLookup(resp.Headers, "ETag")
		if !ok {
			return ogerrors.NewProtocolError("multipart part response missing ETag")
		}
		partNumber, _ := strconv.Atoi(req.Context[request.XOGMultipartPartNumber])
		session.finishPartRequest(partNumber, etag)

		m.mu.Lock()
		kind := session.nextRequestKind()
		if kind == kindComplete || kind == kindPart {
			m.addActionableLocked(session)
		}
		m.cond.Signal()
		m.mu.Unlock()

	case "COMPLETE":
		uploadID := req.Context[request.XOGMultipartUploadID]
		m.mu.Lock()
		session := m.byUploadID[uploadID]
		delete(m.byUploadID, uploadID)
		m.inProgressSessions--
		m.mu.Unlock()
		if session != nil {
			session.finishCompleteRequest()
		}
		m.mu.Lock()
		m.cond.Signal()
		m.mu.Unlock()

	case "ABORT":
		logging.Log().Warn().Msg("multipart abort response observed but abort is never scheduled")
	}

	return nil
}

func dataTypeFromString(s string) body.DataType {
	switch s {
	case "ZEROES":
		return body.ZEROES
	case "RANDOM":
		return body.RANDOM
	case "EXISTING":
		return body.EXISTING
	case "CUSTOM":
		return body.CUSTOM
	default:
		return body.NONE
	}
}
