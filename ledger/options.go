package ledger

import (
	"log/slog"

	t "finality/types"
)

type Option func(*Ledger)

// WithGenesis seeds balances that exist before any transaction, and that Reset restores.
func WithGenesis(balances map[t.Address]uint64) Option {
	return func(l *Ledger) {
		for addr, balance := range balances {
			l.genesis[addr] = balance
		}
	}
}

// WithOperator routes cancellation fees to addr.
func WithOperator(addr t.Address) Option {
	return func(l *Ledger) {
		l.operator = addr
	}
}

func WithFeePolicy(policy FeePolicy) Option {
	return func(l *Ledger) {
		l.fee = policy
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}
