package metrics

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// AuditNumbers generates human-facing audit numbers. The stored uniqueness
// constraint is the real guarantee; callers regenerate on a collision.
type AuditNumbers struct {
	Now    func() time.Time
	Random func(n int) int
}

// NewAuditNumbers returns a generator backed by the wall clock and math/rand.
func NewAuditNumbers() *AuditNumbers {
	return &AuditNumbers{Now: time.Now, Random: rand.IntN}
}

// Next returns the last five digits of the Unix time in seconds followed by a
// random number in [100, 999].
func (g *AuditNumbers) Next() string {
	now := g.Now
	if now == nil {
		now = time.Now
	}
	random := g.Random
	if random == nil {
		random = rand.IntN
	}
	return fmt.Sprintf("%05d%d", now().Unix()%100000, 100+random(900))
}
