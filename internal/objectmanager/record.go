package objectmanager

import (
	"encoding/binary"
	"encoding/hex"
)

// recordSize is the fixed on-disk width of an object record:
// name[16] ∥ shards[1] ∥ size[8 big-endian].
const recordSize = 18

const nameSize = 16

var errInvalidName = errInvalidNameType{}

type errInvalidNameType struct{}

func (errInvalidNameType) Error() string { return "objectmanager: malformed object name" }

// record is the in-memory decoding of one 18-byte on-disk record.
type record struct {
	name   [nameSize]byte
	shards uint8
	size   uint64
}

func encodeRecord(r record) []byte {
	buf := make([]byte, recordSize)
	copy(buf[0:nameSize], r.name[:])
	buf[nameSize] = r.shards
	binary.BigEndian.PutUint64(buf[nameSize+1:], r.size)
	return buf
}

func decodeRecord(buf []byte) record {
	var r record
	copy(r.name[:], buf[0:nameSize])
	r.shards = buf[nameSize]
	r.size = binary.BigEndian.Uint64(buf[nameSize+1:])
	return r
}

// nameToString renders a raw object name as the hex string used both as
// the map key internally and as the externally-visible object name (the
// value placed in a request's URI and context).
func nameToString(n [nameSize]byte) string {
	return hex.EncodeToString(n[:])
}

// stringToName parses a name previously produced by nameToString.
func stringToName(s string) ([nameSize]byte, error) {
	var n [nameSize]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != nameSize {
		return n, errInvalidName
	}
	copy(n[:], b)
	return n, nil
}
