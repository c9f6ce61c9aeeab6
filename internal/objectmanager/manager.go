// Package objectmanager maintains a persistent, content-addressed
// population of object names across test runs: a many-reader/single-
// writer store of fixed-width records split across segment files, with
// random selection for reads and exclusive borrow semantics for deletes.
package objectmanager

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"os"
	"strconv"
	"sync"

	"github.com/tigrawap/objload/internal/logging"
	"github.com/tigrawap/objload/internal/ogerrors"
	"github.com/tigrawap/objload/internal/request"
)

type location struct {
	segIdx int
	recIdx int
}

// Manager is the object population store. All exported methods are safe
// for concurrent use.
type Manager struct {
	mu       sync.Mutex
	dir      string
	prefix   string
	segments []*segment
	sidecar  sidecarState

	index   map[string]location
	names   []string
	namePos map[string]int

	deleting map[string]bool
	readers  map[string]int32

	rng *mrand.Rand
}

// Open loads (or initializes) the object population stored under dir
// with the given file name prefix.
func Open(dir, prefix string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ogerrors.NewInternalError("create object manager directory", err)
	}

	sc, err := loadSidecar(dir, prefix)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		dir:      dir,
		prefix:   prefix,
		sidecar:  sc,
		index:    make(map[string]location),
		namePos:  make(map[string]int),
		deleting: make(map[string]bool),
		readers:  make(map[string]int32),
		rng:      mrand.New(mrand.NewPCG(seedUint64(), seedUint64())),
	}

	for i := 0; i <= sc.CurrentMax; i++ {
		seg, err := openSegment(segmentPath(dir, prefix, i))
		if err != nil {
			return nil, err
		}
		m.segments = append(m.segments, seg)
		for recIdx, r := range seg.records {
			key := nameToString(r.name)
			m.index[key] = location{segIdx: i, recIdx: recIdx}
			m.namePos[key] = len(m.names)
			m.names = append(m.names, key)
		}
	}

	if len(m.segments) == 0 {
		seg, err := openSegment(segmentPath(dir, prefix, 0))
		if err != nil {
			return nil, err
		}
		m.segments = append(m.segments, seg)
		m.sidecar = sidecarState{Prefix: prefix, CurrentMax: 0}
		if err := saveSidecar(dir, m.sidecar); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func seedUint64() uint64 {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(^uint64(0)))
	if err != nil {
		return uint64(os.Getpid())
	}
	return n.Uint64()
}

// GenerateName returns a fresh, random 16-byte object name.
func GenerateName() [16]byte {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(ogerrors.NewInternalError("generate object name", err))
	}
	return b
}

// Add records a newly written object: name, its shard count, and its
// size in bytes. The record is appended to the current (or a freshly
// rolled) segment, durably, before the in-memory view is updated.
func (m *Manager) Add(name [16]byte, shards uint8, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := m.segments[len(m.segments)-1]
	if last.full() {
		newIdx := len(m.segments)
		seg, err := openSegment(segmentPath(m.dir, m.prefix, newIdx))
		if err != nil {
			return err
		}
		m.segments = append(m.segments, seg)
		m.sidecar.CurrentMax = newIdx
		if err := saveSidecar(m.dir, m.sidecar); err != nil {
			return err
		}
		last = seg
	}

	segIdx := len(m.segments) - 1
	recIdx := last.len()
	r := record{name: name, shards: shards, size: size}
	if err := last.append(r); err != nil {
		return err
	}

	key := nameToString(name)
	m.index[key] = location{segIdx: segIdx, recIdx: recIdx}
	m.namePos[key] = len(m.names)
	m.names = append(m.names, key)
	return nil
}

// GetNameForRead selects a name uniformly at random from all currently
// non-deleting records and marks it borrowed for read. ok is false if
// the population is empty or every record is currently being deleted.
func (m *Manager) GetNameForRead() (name string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.names) == 0 {
		return "", false
	}
	candidates := make([]string, 0, len(m.names))
	for _, n := range m.names {
		if !m.deleting[n] {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	name = candidates[m.rng.IntN(len(candidates))]
	m.readers[name]++
	return name, true
}

// GetNameForDelete atomically selects a name not already being deleted
// and transitions it into the deleting state, blocking concurrent
// deleters and future readers of that specific name. Existing read
// borrows that raced in before the transition are unaffected.
func (m *Manager) GetNameForDelete() (name string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]string, 0, len(m.names))
	for _, n := range m.names {
		if !m.deleting[n] {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	name = candidates[m.rng.IntN(len(candidates))]
	m.deleting[name] = true
	return name, true
}

// ReleaseNameFromRead returns a read borrow obtained from GetNameForRead.
func (m *Manager) ReleaseNameFromRead(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readers[name] > 0 {
		m.readers[name]--
	}
	if m.readers[name] <= 0 {
		delete(m.readers, name)
	}
}

// ReleaseNameFromDelete returns a delete borrow obtained from
// GetNameForDelete. If committed is true, the record is removed from the
// store via swap-with-last and segment truncation; otherwise the
// deleting flag is simply cleared and the record remains.
func (m *Manager) ReleaseNameFromDelete(name string, committed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deleting, name)
	if !committed {
		return nil
	}

	loc, ok := m.index[name]
	if !ok {
		return ogerrors.NewInternalError(fmt.Sprintf("delete committed for unknown object %x", name), nil)
	}
	if err := m.removeRecordLocked(name, loc); err != nil {
		return err
	}
	m.removeFromNamesList(name)
	return nil
}

// removeRecordLocked performs the swap-with-last-and-truncate described
// in the on-disk format: the victim's slot receives the final record of
// the highest-indexed segment, which is then truncated by one record.
func (m *Manager) removeRecordLocked(name string, loc location) error {
	lastSegIdx := len(m.segments) - 1
	lastSeg := m.segments[lastSegIdx]
	lastRecIdx := lastSeg.len() - 1

	if loc.segIdx == lastSegIdx && loc.recIdx == lastRecIdx {
		if err := lastSeg.removeAt(lastRecIdx); err != nil {
			return err
		}
		delete(m.index, name)
	} else {
		moved := lastSeg.records[lastRecIdx]
		targetSeg := m.segments[loc.segIdx]
		targetSeg.records[loc.recIdx] = moved
		if _, err := targetSeg.file.WriteAt(encodeRecord(moved), int64(loc.recIdx*recordSize)); err != nil {
			return ogerrors.NewInternalError("swap object record across segments", err)
		}
		movedKey := nameToString(moved.name)
		m.index[movedKey] = loc
		if err := lastSeg.removeAt(lastRecIdx); err != nil {
			return err
		}
		delete(m.index, name)
	}

	for len(m.segments) > 1 && m.segments[len(m.segments)-1].len() == 0 {
		seg := m.segments[len(m.segments)-1]
		path := seg.path
		if err := seg.close(); err != nil {
			return ogerrors.NewInternalError("close emptied segment", err)
		}
		if err := os.Remove(path); err != nil {
			logging.Log().Warn().Str("segment", path).Err(err).Msg("failed to remove emptied object segment")
		}
		m.segments = m.segments[:len(m.segments)-1]
	}
	m.sidecar.CurrentMax = len(m.segments) - 1
	return saveSidecar(m.dir, m.sidecar)
}

func (m *Manager) removeFromNamesList(key string) {
	idx, ok := m.namePos[key]
	if !ok {
		return
	}
	last := len(m.names) - 1
	lastKey := m.names[last]
	m.names[idx] = lastKey
	m.namePos[lastKey] = idx
	m.names = m.names[:last]
	delete(m.namePos, key)
}

// Len reports the current population size.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.names)
}

// Close closes all open segment files.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, seg := range m.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Update consumes a completed request/response pair and is intended to
// be wired in as an eventbus.Subscriber: it commits a write's object
// record once the write is observed to have succeeded, and releases the
// read/delete borrow a resolver took out while producing the request.
// Requests that never resolved an object name (no x-og-object-name in
// context) are ignored.
func (m *Manager) Update(req *request.Request, resp *request.Response) error {
	name := req.Context[request.XOGObjectName]
	if name == "" {
		return nil
	}
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	switch req.Operation {
	case request.OperationWrite, request.OperationOverwrite:
		if !success {
			return nil
		}
		size, _ := strconv.ParseUint(req.Context[request.XOGObjectSize], 10, 64)
		return m.commitWrite(name, 1, size)

	case request.OperationMultipartComplete:
		if !success {
			return nil
		}
		size, _ := strconv.ParseUint(req.Context[request.XOGObjectSize], 10, 64)
		return m.commitWrite(name, partCountFor(req.Context, size), size)

	case request.OperationRead, request.OperationMetadata:
		m.ReleaseNameFromRead(name)

	case request.OperationDelete:
		return m.ReleaseNameFromDelete(name, success)
	}
	return nil
}

func (m *Manager) commitWrite(name string, shards uint8, size uint64) error {
	key, err := stringToName(name)
	if err != nil {
		return ogerrors.NewInternalError("decode object name from request context", err)
	}
	return m.Add(key, shards, size)
}

// partCountFor derives the number of parts a multipart upload split its
// object into, from the size/part-size the INITIATE request recorded.
// Capped at 255 since the on-disk record stores the shard count as a
// single byte.
func partCountFor(ctx map[string]string, size uint64) uint8 {
	partSize, _ := strconv.ParseInt(ctx[request.XOGMultipartPartSize], 10, 64)
	if partSize <= 0 {
		return 1
	}
	n := (int64(size) + partSize - 1) / partSize
	if n < 1 {
		n = 1
	}
	if n > 255 {
		n = 255
	}
	return uint8(n)
}
