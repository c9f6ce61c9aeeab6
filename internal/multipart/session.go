package multipart

import (
	"container/heap"
	"sync"

	"github.com/tigrawap/objload/internal/body"
)

// requestKind is the next action a Session should take, or an internal
// signal consumed only by the session manager's scheduling loop.
type requestKind int

const (
	kindPart requestKind = iota
	kindComplete
	kindAbort
	kindInternalPending
	kindInternalDone
	kindInternalError
)

// partResult records one finished PART response, ordered by part number
// when building the COMPLETE request body.
type partResult struct {
	partNumber int
	etag       string
}

type partHeap []partResult

func (h partHeap) Len() int            { return len(h) }
func (h partHeap) Less(i, j int) bool  { return h[i].partNumber < h[j].partNumber }
func (h partHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *partHeap) Push(x any)         { *h = append(*h, x.(partResult)) }
func (h *partHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Session tracks one in-flight multipart upload, from INITIATE through
// COMPLETE. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	ContainerName   string
	ObjectName      string
	BodyDataType    body.DataType
	ObjectSize      int64
	PartSize        int64
	MaxParts        int
	UploadID        string
	ContainerSuffix string
	Context         map[string]string

	partsToSend    int
	lastPartSize   int64
	nextPartNumber int
	inProgress     int
	finished       int
	completeInProgress bool
	completeFinished   bool
	inActionable       bool

	parts partHeap
}

// NewSession computes the part-count/last-part-size split for an upload
// of objectSize bytes using partSize-byte parts (maxParts bounds how many
// PART requests may be in flight for this session at once).
func NewSession(containerName, objectName, uploadID, containerSuffix string, objectSize, partSize int64, maxParts int, dataType body.DataType, ctx map[string]string) *Session {
	parts := int(objectSize / partSize)
	var partsToSend int
	var lastPartSize int64
	if objectSize%partSize != 0 {
		partsToSend = parts + 1
		lastPartSize = objectSize % partSize
	} else {
		partsToSend = parts
		lastPartSize = partSize
	}
	return &Session{
		ContainerName:   containerName,
		ObjectName:      objectName,
		UploadID:        uploadID,
		ContainerSuffix: containerSuffix,
		BodyDataType:    dataType,
		ObjectSize:      objectSize,
		PartSize:        partSize,
		MaxParts:        maxParts,
		Context:         ctx,
		partsToSend:     partsToSend,
		lastPartSize:    lastPartSize,
	}
}

// nextRequestKind decides the next action for this session given its
// current counters.
func (s *Session) nextRequestKind() requestKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.inProgress == 0 && !s.completeFinished && !s.completeInProgress && s.finished == s.partsToSend:
		return kindComplete
	case s.finished == s.partsToSend && s.completeFinished && !s.completeInProgress:
		return kindInternalDone
	case (s.inProgress+s.finished) < s.partsToSend && s.inProgress < s.MaxParts:
		return kindPart
	case (s.inProgress+s.finished) == s.partsToSend || s.inProgress >= s.MaxParts:
		return kindInternalPending
	default:
		return kindInternalError
	}
}

// nextPartSize returns the size of the part most recently reserved by
// startPartRequest: the final part gets lastPartSize, every other part
// PartSize.
func (s *Session) nextPartSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextPartNumber < s.partsToSend {
		return s.PartSize
	}
	return s.lastPartSize
}

// startPartRequest reserves the next part number and returns it.
func (s *Session) startPartRequest() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress++
	s.nextPartNumber++
	return s.nextPartNumber
}

// finishPartRequest records a completed part's ETag.
func (s *Session) finishPartRequest(partNumber int, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.parts, partResult{partNumber: partNumber, etag: etag})
	s.inProgress--
	s.finished++
}

// startCompleteRequest marks the COMPLETE request as in flight and
// returns the XML request body built from every finished part, ordered
// by part number.
func (s *Session) startCompleteRequest() string {
	s.mu.Lock()
	s.completeInProgress = true
	parts := make([]partResult, 0, s.parts.Len())
	for s.parts.Len() > 0 {
		parts = append(parts, heap.Pop(&s.parts).(partResult))
	}
	s.mu.Unlock()
	return completeRequestBody(parts)
}

// finishCompleteRequest records that the COMPLETE response was observed.
func (s *Session) finishCompleteRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeFinished = true
	s.completeInProgress = false
}

func (s *Session) setActionable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inActionable = v
}

func (s *Session) isActionable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inActionable
}
