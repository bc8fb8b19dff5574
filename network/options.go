package network

import (
	"log/slog"
	"math/rand"
)

type Option func(*Sim)

func WithSeed(seed int64) Option {
	return func(s *Sim) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithMaxDelay delays each delivery by up to ticks rounds.
func WithMaxDelay(ticks int) Option {
	return func(s *Sim) {
		s.maxDelay = max(ticks, 0)
	}
}

// WithDuplication delivers a second copy of a message with the given probability.
func WithDuplication(probability float64) Option {
	return func(s *Sim) {
		s.dupRate = probability
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sim) {
		s.logger = logger
	}
}
