// Package random generates fresh seeds for runs that have no explicit,
// environment-supplied or persisted seed.
//
// Seeds come from crypto/rand so that two runs started in the same instant
// still diverge.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// NewSeed generates a random seed in [1, math.MaxInt64].
func NewSeed() (int64, error) {
	return NewSeedFrom(crand.Reader)
}

// NewSeedFrom draws a seed in [1, math.MaxInt64] from r.
func NewSeedFrom(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	// Clear the sign bit, then map 0 onto the top of the range so zero never
	// reaches callers that treat it as "no seed".
	seed := int64(binary.LittleEndian.Uint64(b[:]) & math.MaxInt64)
	if seed == 0 {
		seed = math.MaxInt64
	}
	return seed, nil
}
