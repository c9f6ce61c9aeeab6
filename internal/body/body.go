// Package body implements lazy, restartable byte streams for request
// bodies: zeroes, seeded random data, a stand-in for previously-written
// content (EXISTING, streamed as zeroes of the recorded size; the
// original bytes are not read back), or a fixed custom payload (used for
// multipart COMPLETE request bodies).
package body

import (
	"bytes"
	crand "crypto/rand"
	"io"
	"math/rand/v2"
)

// DataType identifies the kind of bytes a Body streams.
type DataType int

const (
	// NONE bodies carry no bytes; Size must be 0.
	NONE DataType = iota
	// ZEROES bodies stream Size zero bytes.
	ZEROES
	// RANDOM bodies stream Size pseudo-random bytes from a seeded source.
	RANDOM
	// EXISTING bodies stream bytes for an object the object manager
	// already knows about; the object-name resolver must have populated
	// the request context before the body is materialized.
	EXISTING
	// CUSTOM bodies stream a fixed, caller-supplied payload.
	CUSTOM
)

func (d DataType) String() string {
	switch d {
	case NONE:
		return "NONE"
	case ZEROES:
		return "ZEROES"
	case RANDOM:
		return "RANDOM"
	case EXISTING:
		return "EXISTING"
	case CUSTOM:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// Body describes a request or response payload without necessarily having
// materialized its bytes yet.
type Body struct {
	DataType DataType
	Size     int64
	Seed     int64
	Content  []byte
}

// None returns the zero-length body.
func None() Body {
	return Body{DataType: NONE, Size: 0}
}

// Zeroes returns a body of size zero bytes.
func Zeroes(size int64) Body {
	return Body{DataType: ZEROES, Size: size}
}

// Random returns a body of size pseudo-random bytes, seeded for
// reproducibility. A zero seed selects a fresh, non-reproducible seed.
func Random(size int64, seed int64) Body {
	if seed == 0 {
		var buf [8]byte
		_, _ = crand.Read(buf[:])
		seed = int64(buf[0]) | int64(buf[1])<<8 | int64(buf[2])<<16 | int64(buf[3])<<24
	}
	return Body{DataType: RANDOM, Size: size, Seed: seed}
}

// Existing returns a body description for content already written
// elsewhere. Only its size is kept; Stream yields that many zero bytes,
// not the object's original content.
func Existing(size int64) Body {
	return Body{DataType: EXISTING, Size: size}
}

// Custom returns a body wrapping a fixed payload, e.g. a multipart
// CompleteMultipartUpload XML document.
func Custom(content []byte) Body {
	return Body{DataType: CUSTOM, Size: int64(len(content)), Content: content}
}

// FromDataType constructs a Body of the given size using the data-type
// conventions chosen for an earlier, related body (e.g. a multipart
// session's original INITIATE body), so that PART bodies stream bytes
// consistent with what the session started with.
func FromDataType(dt DataType, size int64) Body {
	switch dt {
	case ZEROES:
		return Zeroes(size)
	case RANDOM:
		return Random(size, 0)
	case EXISTING:
		return Existing(size)
	default:
		return Zeroes(size)
	}
}

// Stream returns a fresh, restartable io.Reader over b's bytes. Calling
// Stream multiple times always restarts from the beginning.
func (b Body) Stream() io.Reader {
	switch b.DataType {
	case NONE:
		return bytes.NewReader(nil)
	case ZEROES:
		return io.LimitReader(zeroReader{}, b.Size)
	case RANDOM:
		return io.LimitReader(newRandReader(b.Seed), b.Size)
	case CUSTOM:
		return bytes.NewReader(b.Content)
	case EXISTING:
		// The actual bytes of a previously-written object aren't
		// reconstructed; only its size matters for a request that
		// targets it (overwrite content-length, delete has no body).
		// Streaming Size zero bytes keeps any Content-Length the
		// caller set consistent with what gets written to the wire.
		return io.LimitReader(zeroReader{}, b.Size)
	default:
		return bytes.NewReader(nil)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// randReader streams a deterministic pseudo-random byte sequence for a
// given seed, independent of global math/rand state.
type randReader struct {
	r *rand.Rand
}

func newRandReader(seed int64) *randReader {
	return &randReader{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b9))}
}

func (z *randReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(z.r.IntN(256))
	}
	return len(p), nil
}
