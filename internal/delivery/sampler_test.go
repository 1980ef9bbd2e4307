package delivery

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

func targets(n int) []domain.Target {
	out := make([]domain.Target, n)
	for i := range out {
		out[i] = domain.Target{
			CustomerID:    fmt.Sprintf("c%d", i),
			CustomerEmail: fmt.Sprintf("c%d@example.com", i),
		}
	}
	return out
}

func delivered(ts []domain.Target) int {
	n := 0
	for _, t := range ts {
		if t.MailStatus != nil && *t.MailStatus {
			n++
		}
	}
	return n
}

func TestDeliverCount(t *testing.T) {
	t.Parallel()

	for n, want := range map[int]int{-3: 0, 0: 0, 1: 0, 9: 8, 10: 9, 11: 9, 19: 17, 100: 90, 250: 225} {
		require.Equal(t, want, DeliverCount(n), "n=%d", n)
	}
}

func TestSampleSmallCases(t *testing.T) {
	t.Parallel()

	s := NewSampler(1)

	out := s.Sample(nil)
	require.Empty(t, out)

	one := s.Sample(targets(1))
	require.Len(t, one, 1)
	require.NotNil(t, one[0].MailStatus)
	require.False(t, *one[0].MailStatus)

	ten := s.Sample(targets(10))
	require.Equal(t, 9, delivered(ten))
}

func TestSampleExactCountAndIdentity(t *testing.T) {
	t.Parallel()

	s := NewSamplerWithSource(rand.NewSource(42))
	for n := 0; n <= 120; n++ {
		in := targets(n)
		out := s.Sample(in)

		require.Len(t, out, n)
		require.Equal(t, DeliverCount(n), delivered(out), "n=%d", n)
		for i := range out {
			require.NotNil(t, out[i].MailStatus)
			require.Equal(t, in[i].CustomerID, out[i].CustomerID)
			require.Equal(t, in[i].CustomerEmail, out[i].CustomerEmail)
			require.Nil(t, in[i].MailStatus, "input must not be mutated")
		}
	}
}

func TestSampleSeedIsReproducible(t *testing.T) {
	t.Parallel()

	a := NewSampler(7).Sample(targets(50))
	b := NewSampler(7).Sample(targets(50))
	require.Equal(t, a, b)
}

func TestSampleIsNotIdempotent(t *testing.T) {
	t.Parallel()

	s := NewSampler(3)
	first := s.Sample(targets(40))
	differs := false
	for i := 0; i < 20 && !differs; i++ {
		next := s.Sample(first)
		require.Equal(t, DeliverCount(40), delivered(next))
		for j := range next {
			if *next[j].MailStatus != *first[j].MailStatus {
				differs = true
				break
			}
		}
	}
	require.True(t, differs, "resampling should eventually pick another subset")
}

func TestSampleConcurrentUse(t *testing.T) {
	t.Parallel()

	s := NewSampler(11)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				out := s.Sample(targets(30))
				if delivered(out) != DeliverCount(30) {
					t.Errorf("delivered %d, want %d", delivered(out), DeliverCount(30))
				}
			}
		}()
	}
	wg.Wait()
}
