package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedSender flips a seeded coin instead of sending. Used in test mode.
type SimulatedSender struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSender seeds the coin with seed, or with the clock when seed
// is zero.
func NewSimulatedSender(seed int64) *SimulatedSender {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedSender{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedSender) Send(context.Context, Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(2) == 1
}

var _ Sender = (*SimulatedSender)(nil)
