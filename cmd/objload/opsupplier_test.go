package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/objectmanager"
	"github.com/tigrawap/objload/internal/request"
)

func TestNewRngDeterministicForFixedSeed(t *testing.T) {
	a := newRng(42)
	b := newRng(42)

	for i := 0; i < 20; i++ {
		require.Equal(t, a.Int63n(1000), b.Int63n(1000))
	}
}

func TestNewRngNotSetSeedVaries(t *testing.T) {
	a := newRng(notSet)
	b := newRng(notSet)

	// crypto/rand-seeded generators should not produce identical streams.
	different := false
	for i := 0; i < 20; i++ {
		if a.Int63n(1<<62) != b.Int63n(1<<62) {
			different = true
			break
		}
	}
	require.True(t, different)
}

func TestNewSizeFnFixed(t *testing.T) {
	fn := newSizeFn(4096, 0, 0)
	ctx := map[string]string{}
	s := fn(ctx)
	require.Equal(t, "4096", s)
	require.Equal(t, "4096", ctx[request.XOGObjectSize])
}

func TestNewSizeFnRanged(t *testing.T) {
	prevSeed := config.seed
	config.seed = 7
	defer func() { config.seed = prevSeed }()

	fn := newSizeFn(0, 1024, 4096)
	for i := 0; i < 50; i++ {
		ctx := map[string]string{}
		s := fn(ctx)
		require.Equal(t, ctx[request.XOGObjectSize], s)
	}
}

func TestOverwriteObjectFnReleasesBorrow(t *testing.T) {
	dir := t.TempDir()
	objects, err := objectmanager.Open(dir, "objects")
	require.NoError(t, err)
	defer objects.Close()

	raw := objectmanager.GenerateName()
	require.NoError(t, objects.Add(raw, 0, 4096))

	fn := overwriteObjectFn(objects)
	got := fn(map[string]string{})
	require.NotEmpty(t, got)

	// The read borrow must have been released: a delete can still claim it.
	name, ok := objects.GetNameForDelete()
	require.True(t, ok)
	require.Equal(t, got, name)
}
