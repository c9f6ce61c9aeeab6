package objectmanager

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tigrawap/objload/internal/logging"
	"github.com/tigrawap/objload/internal/ogerrors"
)

// segmentCapacity is the number of records that fit in a 64 MiB segment.
const segmentCapacity = 64 * 1024 * 1024 / recordSize // 3,728,270

// segment wraps one on-disk segment file and its in-memory record cache.
// Callers serialize access to a segment via the manager's mutex; segment
// itself does no locking.
type segment struct {
	path    string
	file    *os.File
	records []record
}

func segmentPath(dir, prefix string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.bin", prefix, index))
}

// openSegment opens (creating if necessary) the segment file at path and
// loads its records, truncating any trailing partial record found at the
// end of the file.
func openSegment(path string) (*segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ogerrors.NewInternalError(fmt.Sprintf("open segment %s", path), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ogerrors.NewInternalError(fmt.Sprintf("stat segment %s", path), err)
	}

	size := info.Size()
	wholeRecords := size / recordSize
	truncatedSize := wholeRecords * recordSize
	if truncatedSize != size {
		logging.Log().Warn().
			Str("segment", path).
			Int64("originalSize", size).
			Int64("truncatedSize", truncatedSize).
			Msg("truncating corrupt trailing bytes from object segment")
		if err := f.Truncate(truncatedSize); err != nil {
			f.Close()
			return nil, ogerrors.NewInternalError(fmt.Sprintf("truncate segment %s", path), err)
		}
	}

	buf := make([]byte, truncatedSize)
	if _, err := f.ReadAt(buf, 0); err != nil && truncatedSize > 0 {
		f.Close()
		return nil, ogerrors.NewInternalError(fmt.Sprintf("read segment %s", path), err)
	}

	records := make([]record, 0, wholeRecords)
	for off := int64(0); off < truncatedSize; off += recordSize {
		records = append(records, decodeRecord(buf[off:off+recordSize]))
	}

	return &segment{path: path, file: f, records: records}, nil
}

func (s *segment) len() int { return len(s.records) }

func (s *segment) full() bool { return len(s.records) >= segmentCapacity }

// append durably appends r to the segment, rolling back the in-memory
// view if the write fails.
func (s *segment) append(r record) error {
	s.records = append(s.records, r)
	if _, err := s.file.WriteAt(encodeRecord(r), int64((len(s.records)-1)*recordSize)); err != nil {
		s.records = s.records[:len(s.records)-1]
		return ogerrors.NewInternalError(fmt.Sprintf("append to segment %s", s.path), err)
	}
	return nil
}

// removeAt removes the record at index i by swapping in the final record
// of the segment and truncating the file by one record. If i is already
// the final record, no swap is made, only the truncate. Returns any I/O
// error from the swap write or the truncate.
func (s *segment) removeAt(i int) error {
	last := len(s.records) - 1
	if i != last {
		s.records[i] = s.records[last]
		if _, err := s.file.WriteAt(encodeRecord(s.records[i]), int64(i*recordSize)); err != nil {
			return ogerrors.NewInternalError(fmt.Sprintf("swap in segment %s", s.path), err)
		}
	}
	s.records = s.records[:last]
	if err := s.file.Truncate(int64(last * recordSize)); err != nil {
		return ogerrors.NewInternalError(fmt.Sprintf("truncate segment %s", s.path), err)
	}
	return nil
}

func (s *segment) close() error {
	return s.file.Close()
}
