package appointment

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"
)

// ReferencePattern matches booking references: APT + YYMMDD + 4 random digits.
var ReferencePattern = regexp.MustCompile(`^APT\d{10}$`)

// ReferenceGenerator mints booking references. It never touches storage; collision
// handling belongs to the caller.
type ReferenceGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewReferenceGenerator returns a deterministic generator for the given seed.
func NewReferenceGenerator(seed1, seed2 uint64) *ReferenceGenerator {
	return &ReferenceGenerator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// NewRandomReferenceGenerator seeds from crypto/rand.
func NewRandomReferenceGenerator() *ReferenceGenerator {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		seed := uint64(time.Now().UnixNano())
		return NewReferenceGenerator(seed, seed>>1)
	}
	return NewReferenceGenerator(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]))
}

func (g *ReferenceGenerator) Generate(now time.Time) string {
	g.mu.Lock()
	n := g.rng.IntN(10000)
	g.mu.Unlock()
	return fmt.Sprintf("APT%s%04d", now.Format("060102"), n)
}
