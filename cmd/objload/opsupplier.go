package main

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	mrand "math/rand/v2"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/driver"
	"github.com/tigrawap/objload/internal/httpx"
	"github.com/tigrawap/objload/internal/multipart"
	"github.com/tigrawap/objload/internal/objectmanager"
	"github.com/tigrawap/objload/internal/reqsupplier"
	"github.com/tigrawap/objload/internal/request"
	"github.com/tigrawap/objload/internal/supplier"
)

// mixSupplier selects among a weighted set of operation suppliers on
// each call, then delegates Get to whichever was chosen.
type mixSupplier struct {
	weighted *supplier.WeightedRandom[driver.RequestSupplier]
}

func (m *mixSupplier) Get() (*request.Request, error) {
	return m.weighted.Get(supplier.Context{}).Get()
}

// mrandRng adapts math/rand/v2 to the supplier.Rng interface.
type mrandRng struct{ r *mrand.Rand }

func (m *mrandRng) Int63n(n int64) int64 { return m.r.Int64N(n) }

func newRng(seed int64) *mrandRng {
	s1, s2 := uint64(seed), uint64(seed)^0x9e3779b9
	if seed == notSet {
		s1, s2 = cryptoSeed(), cryptoSeed()
	}
	return &mrandRng{r: mrand.New(mrand.NewPCG(s1, s2))}
}

func cryptoSeed() uint64 {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(^uint64(0)))
	if err != nil {
		return 1
	}
	return n.Uint64()
}

func newOpSupplier(
	scheme httpx.Scheme,
	host string,
	port int,
	objects *objectmanager.Manager,
	mp *multipart.Manager,
	bodySize, minSize, maxSize int64,
	requestID func(ctx map[string]string) string,
) driver.RequestSupplier {
	hostFn := func(ctx map[string]string) string { return host }
	containerFn := func(ctx map[string]string) string { return config.bucket }
	sizeFn := newSizeFn(bodySize, minSize, maxSize)
	bodyFn := func(ctx map[string]string) body.Body {
		size, _ := strconv.ParseInt(ctx[request.XOGObjectSize], 10, 64)
		if config.randomData {
			return body.Random(size, 0)
		}
		return body.Zeroes(size)
	}

	choices := make([]supplier.WeightedChoice[driver.RequestSupplier], 0, 5)

	writeSupplier := reqsupplier.New(reqsupplier.Config{
		ID:          requestID,
		Method:      request.MethodPut,
		Operation:   request.OperationWrite,
		Scheme:      scheme,
		Host:        hostFn,
		Port:        port,
		Container:   containerFn,
		Object:      newObjectNameFn,
		ContextFuncs: []reqsupplier.ContextFunc{sizeFn},
		Body:        bodyFn,
		VirtualHost: config.virtualHost,
		ContentMD5:  true,
	})
	choices = append(choices, supplier.WeightedChoice[driver.RequestSupplier]{Value: writeSupplier, Weight: config.writeWeight})

	readSupplier := reqsupplier.New(reqsupplier.Config{
		ID:          requestID,
		Method:      request.MethodGet,
		Operation:   request.OperationRead,
		Scheme:      scheme,
		Host:        hostFn,
		Port:        port,
		Container:   containerFn,
		Object:      readObjectFn(objects),
		VirtualHost: config.virtualHost,
	})
	choices = append(choices, supplier.WeightedChoice[driver.RequestSupplier]{Value: readSupplier, Weight: config.readWeight})

	deleteSupplier := reqsupplier.New(reqsupplier.Config{
		ID:          requestID,
		Method:      request.MethodDelete,
		Operation:   request.OperationDelete,
		Scheme:      scheme,
		Host:        hostFn,
		Port:        port,
		Container:   containerFn,
		Object:      deleteObjectFn(objects),
		VirtualHost: config.virtualHost,
	})
	choices = append(choices, supplier.WeightedChoice[driver.RequestSupplier]{Value: deleteSupplier, Weight: config.deleteWeight})

	if config.overwriteWeight > 0 {
		overwriteSupplier := reqsupplier.New(reqsupplier.Config{
			ID:          requestID,
			Method:      request.MethodPut,
			Operation:   request.OperationOverwrite,
			Scheme:      scheme,
			Host:        hostFn,
			Port:        port,
			Container:   containerFn,
			Object:      overwriteObjectFn(objects),
			ContextFuncs: []reqsupplier.ContextFunc{sizeFn},
			Body:        bodyFn,
			VirtualHost: config.virtualHost,
			ContentMD5:  true,
		})
		choices = append(choices, supplier.WeightedChoice[driver.RequestSupplier]{Value: overwriteSupplier, Weight: config.overwriteWeight})
	}

	if mp != nil {
		choices = append(choices, supplier.WeightedChoice[driver.RequestSupplier]{Value: mp, Weight: config.multipartWeight})
	}

	weighted := supplier.NewWeightedRandom(choices, newRng(config.seed))
	return &mixSupplier{weighted: weighted}
}

// newObjectNameFn generates a fresh random object name for a write.
func newObjectNameFn(ctx map[string]string) string {
	raw := objectmanager.GenerateName()
	return hex.EncodeToString(raw[:])
}

func readObjectFn(objects *objectmanager.Manager) reqsupplier.ContextFunc {
	return func(ctx map[string]string) string {
		name, ok := objects.GetNameForRead()
		if !ok {
			return ""
		}
		return name
	}
}

func deleteObjectFn(objects *objectmanager.Manager) reqsupplier.ContextFunc {
	return func(ctx map[string]string) string {
		name, ok := objects.GetNameForDelete()
		if !ok {
			return ""
		}
		return name
	}
}

// overwriteObjectFn picks an existing name the same way a read would,
// but releases the borrow immediately: an overwrite only needs the
// object's identity, not protection against a concurrent delete, since
// the new PUT will simply recreate whatever a racing delete removed.
func overwriteObjectFn(objects *objectmanager.Manager) reqsupplier.ContextFunc {
	return func(ctx map[string]string) string {
		name, ok := objects.GetNameForRead()
		if !ok {
			return ""
		}
		objects.ReleaseNameFromRead(name)
		return name
	}
}

// newSizeFn returns a ContextFunc that picks a body size (fixed, or
// uniformly within [minSize, maxSize] when maxSize > 0) and records it
// under x-og-object-size so a later Body func and the object manager's
// Update subscriber agree on what was written.
func newSizeFn(fixed, minSize, maxSize int64) reqsupplier.ContextFunc {
	if maxSize <= 0 {
		return func(ctx map[string]string) string {
			s := strconv.FormatInt(fixed, 10)
			ctx[request.XOGObjectSize] = s
			return s
		}
	}
	ranged := supplier.NewRanged(minSize, maxSize, supplier.RangedRandom, newRng(config.seed))
	return func(ctx map[string]string) string {
		size := ranged.Get(ctx)
		s := strconv.FormatInt(size, 10)
		ctx[request.XOGObjectSize] = s
		return s
	}
}

func newMultipartManager(scheme httpx.Scheme, host string, port int, partSize uint64) *multipart.Manager {
	hostFn := func(ctx map[string]string) string { return host }
	containerFn := func(ctx map[string]string) string { return config.bucket }
	size := fixedOrMidpointSize()
	bodyFn := func(ctx map[string]string) body.Body {
		if config.randomData {
			return body.Random(size, 0)
		}
		return body.Zeroes(size)
	}

	return multipart.New(multipart.Config{
		Scheme:         scheme,
		Host:           hostFn,
		Port:           port,
		Container:      containerFn,
		Object:         newObjectNameFn,
		PartSize:       func(ctx map[string]string) int64 { return int64(partSize) },
		MaxParts:       func(ctx map[string]string) int { return config.multipartMaxParts },
		TargetSessions: config.multipartTargetSessions,
		Body:           bodyFn,
		VirtualHost:    config.virtualHost,
	})
}

// fixedOrMidpointSize resolves the object size a multipart session's
// INITIATE body declares, since multipart sessions don't share the
// per-request size negotiation single-step operations use.
func fixedOrMidpointSize() int64 {
	size, err := humanize.ParseBytes(config.bodySizeInput)
	if err == nil && size > 0 {
		return int64(size)
	}
	return 8 << 20 // 8MiB fallback
}
