package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReferenceGeneratorFormat(t *testing.T) {
	gen := NewRandomReferenceGenerator()
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		ref := gen.Generate(now)
		assert.Regexp(t, ReferencePattern, ref)
		assert.Equal(t, "APT261014", ref[:9])
	}
}

func TestReferenceGeneratorDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	a := NewReferenceGenerator(7, 11)
	b := NewReferenceGenerator(7, 11)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Generate(now), b.Generate(now))
	}
}
