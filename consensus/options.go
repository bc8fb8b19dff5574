package consensus

import (
	"log/slog"
	"time"

	b "finality/blockchain"
)

const (
	DefaultDifficulty = 13
	DefaultHashRate   = 5
)

type settings struct {
	pid          string
	logger       *slog.Logger
	difficulty   uint64
	hashRate     int
	clock        func() int64
	authorityKey *b.Identity
}

func defaultSettings(id *b.Identity) settings {
	return settings{
		pid:        id.Address.String(),
		logger:     slog.New(slog.DiscardHandler),
		difficulty: DefaultDifficulty,
		hashRate:   DefaultHashRate,
		clock:      func() int64 { return time.Now().Unix() },
	}
}

type Option func(*settings)

// WithPid overrides the process id, which defaults to the node's address.
func WithPid(pid string) Option {
	return func(s *settings) {
		s.pid = pid
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithDifficulty sets the leading zero bits a block hash needs.
func WithDifficulty(bits uint64) Option {
	return func(s *settings) {
		s.difficulty = bits
	}
}

// WithHashRate sets how many nonces a miner tries per tick.
func WithHashRate(attempts int) Option {
	return func(s *settings) {
		s.hashRate = max(attempts, 1)
	}
}

// WithClock replaces the block timestamp source.
func WithClock(clock func() int64) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithAuthority makes a PoA node the ordering authority. id must match the ledger's authority.
func WithAuthority(id *b.Identity) Option {
	return func(s *settings) {
		s.authorityKey = id
	}
}
