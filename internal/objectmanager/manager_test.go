package objectmanager

import (
	"encoding/hex"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/request"
)

func newTestManager(t *testing.T) *Manager {
	dir := t.TempDir()
	m, err := Open(dir, "objects")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAddThenReadReturnsAddedName(t *testing.T) {
	m := newTestManager(t)
	name := GenerateName()
	require.NoError(t, m.Add(name, 1, 4096))

	got, ok := m.GetNameForRead()
	require.True(t, ok)
	require.Equal(t, nameToString(name), got)
	m.ReleaseNameFromRead(got)
}

func TestGetNameForReadEmptyPopulation(t *testing.T) {
	m := newTestManager(t)
	_, ok := m.GetNameForRead()
	require.False(t, ok)
}

func TestDeleteCommittedRemovesRecord(t *testing.T) {
	m := newTestManager(t)
	a := GenerateName()
	b := GenerateName()
	require.NoError(t, m.Add(a, 1, 10))
	require.NoError(t, m.Add(b, 1, 20))
	require.Equal(t, 2, m.Len())

	name, ok := m.GetNameForDelete()
	require.True(t, ok)
	require.NoError(t, m.ReleaseNameFromDelete(name, true))
	require.Equal(t, 1, m.Len())

	// the surviving record must still be selectable for read
	got, ok := m.GetNameForRead()
	require.True(t, ok)
	require.NotEqual(t, name, got)
}

func TestDeleteUncommittedKeepsRecord(t *testing.T) {
	m := newTestManager(t)
	a := GenerateName()
	require.NoError(t, m.Add(a, 1, 10))

	name, ok := m.GetNameForDelete()
	require.True(t, ok)
	require.NoError(t, m.ReleaseNameFromDelete(name, false))
	require.Equal(t, 1, m.Len())
}

func TestGetNameForDeleteExcludesAlreadyDeleting(t *testing.T) {
	m := newTestManager(t)
	a := GenerateName()
	require.NoError(t, m.Add(a, 1, 10))

	_, ok := m.GetNameForDelete()
	require.True(t, ok)

	_, ok = m.GetNameForDelete()
	require.False(t, ok, "the only record is already being deleted")
}

func TestReopenAfterCloseRecoversPopulation(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, "objects")
	require.NoError(t, err)
	name := GenerateName()
	require.NoError(t, m.Add(name, 2, 1024))
	require.NoError(t, m.Close())

	reopened, err := Open(dir, "objects")
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 1, reopened.Len())
	got, ok := reopened.GetNameForRead()
	require.True(t, ok)
	require.Equal(t, nameToString(name), got)
}

func TestOpenTruncatesCorruptTrailingBytes(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, "objects")
	require.NoError(t, err)
	require.NoError(t, m.Add(GenerateName(), 1, 1))
	require.NoError(t, m.Close())

	path := segmentPath(dir, "objects", 0)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3}) // partial trailing record
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(dir, "objects")
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, 1, reopened.Len())
}

func TestUpdateCommitsWriteOnSuccess(t *testing.T) {
	m := newTestManager(t)
	raw := GenerateName()
	name := hex.EncodeToString(raw[:])

	req := &request.Request{
		Operation: request.OperationWrite,
		Context: map[string]string{
			request.XOGObjectName: name,
			request.XOGObjectSize: "4096",
		},
	}
	resp := &request.Response{StatusCode: 200}

	require.NoError(t, m.Update(req, resp))
	require.Equal(t, 1, m.Len())
	got, ok := m.GetNameForRead()
	require.True(t, ok)
	require.Equal(t, name, got)
}

func TestUpdateIgnoresFailedWrite(t *testing.T) {
	m := newTestManager(t)
	raw := GenerateName()
	name := hex.EncodeToString(raw[:])

	req := &request.Request{
		Operation: request.OperationWrite,
		Context: map[string]string{
			request.XOGObjectName: name,
			request.XOGObjectSize: "4096",
		},
	}
	resp := &request.Response{StatusCode: 500}

	require.NoError(t, m.Update(req, resp))
	require.Equal(t, 0, m.Len())
}

func TestUpdateReleasesReadBorrow(t *testing.T) {
	m := newTestManager(t)
	name := GenerateName()
	require.NoError(t, m.Add(name, 1, 10))
	got, ok := m.GetNameForRead()
	require.True(t, ok)

	req := &request.Request{
		Operation: request.OperationRead,
		Context:   map[string]string{request.XOGObjectName: got},
	}
	resp := &request.Response{StatusCode: 200}
	require.NoError(t, m.Update(req, resp))

	require.Equal(t, int32(0), m.readers[got])
}

func TestUpdateRemovesObjectOnSuccessfulDelete(t *testing.T) {
	m := newTestManager(t)
	name := GenerateName()
	require.NoError(t, m.Add(name, 1, 10))
	got, ok := m.GetNameForDelete()
	require.True(t, ok)

	req := &request.Request{
		Operation: request.OperationDelete,
		Context:   map[string]string{request.XOGObjectName: got},
	}
	resp := &request.Response{StatusCode: 204}
	require.NoError(t, m.Update(req, resp))

	require.Equal(t, 0, m.Len())
}

func TestUpdateKeepsObjectOnFailedDelete(t *testing.T) {
	m := newTestManager(t)
	name := GenerateName()
	require.NoError(t, m.Add(name, 1, 10))
	got, ok := m.GetNameForDelete()
	require.True(t, ok)

	req := &request.Request{
		Operation: request.OperationDelete,
		Context:   map[string]string{request.XOGObjectName: got},
	}
	resp := &request.Response{StatusCode: 500}
	require.NoError(t, m.Update(req, resp))

	require.Equal(t, 1, m.Len())
	_, ok = m.GetNameForDelete()
	require.True(t, ok, "delete borrow must be released even when the delete failed")
}

func TestUpdateIgnoresRequestsWithoutObjectName(t *testing.T) {
	m := newTestManager(t)
	req := &request.Request{Operation: request.OperationWrite, Context: map[string]string{}}
	resp := &request.Response{StatusCode: 200}

	require.NoError(t, m.Update(req, resp))
	require.Equal(t, 0, m.Len())
}

func TestUpdateCommitsMultipartCompleteWithDerivedShardCount(t *testing.T) {
	m := newTestManager(t)
	raw := GenerateName()
	name := hex.EncodeToString(raw[:])

	req := &request.Request{
		Operation: request.OperationMultipartComplete,
		Context: map[string]string{
			request.XOGObjectName:        name,
			request.XOGObjectSize:        "10485760", // 10 MiB
			request.XOGMultipartPartSize: "4194304",  // 4 MiB
		},
	}
	resp := &request.Response{StatusCode: 200}

	require.NoError(t, m.Update(req, resp))
	loc := m.index[name]
	seg := m.segments[loc.segIdx]
	require.Equal(t, uint8(3), seg.records[loc.recIdx].shards)
}
