// Package delivery decides which campaign targets are marked as having
// received mail.
package delivery

import (
	"math/rand"
	"sync"
	"time"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

// RatePercent is the share of targets marked delivered.
const RatePercent = 90

// DeliverCount returns floor(n * RatePercent / 100).
func DeliverCount(n int) int {
	if n <= 0 {
		return 0
	}
	return n * RatePercent / 100
}

// Sampler marks a uniformly random subset of exactly DeliverCount(n) targets
// as delivered. Safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler seeds the sampler. A zero seed uses the current time.
func NewSampler(seed int64) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSamplerWithSource(rand.NewSource(seed))
}

func NewSamplerWithSource(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)} //nolint:gosec
}

// Sample returns a copy of targets in the original order with MailStatus set
// on every entry. Identity fields are never altered.
func (s *Sampler) Sample(targets []domain.Target) []domain.Target {
	out := make([]domain.Target, len(targets))
	copy(out, targets)

	delivered := s.pick(len(out), DeliverCount(len(out)))
	for i := range out {
		status := delivered[i]
		out[i].MailStatus = &status
	}
	return out
}

// pick chooses k of n indices with a partial Fisher-Yates shuffle.
func (s *Sampler) pick(n, k int) []bool {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	s.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	s.mu.Unlock()

	chosen := make([]bool, n)
	for _, i := range idx[:k] {
		chosen[i] = true
	}
	return chosen
}
