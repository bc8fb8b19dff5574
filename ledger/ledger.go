package ledger

import (
	"fmt"
	"log/slog"
	"math"

	b "finality/blockchain"
	t "finality/types"
)

// Disposition is what validation decided to do with a transaction that passed every check.
type Disposition int

const (
	// Apply means the nonce matches and the transaction can be applied now.
	Apply Disposition = iota
	// Buffer means the nonce is ahead of the account; the transaction waits in the pool.
	Buffer
	// Skip means the transaction is valid but has nothing to apply (a balance check).
	Skip
)

// Outcome is the result of processing one transaction.
type Outcome int

const (
	Applied Outcome = iota
	Buffered
	Skipped
	Duplicate
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Buffered:
		return "buffered"
	case Skipped:
		return "skipped"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Ledger is the per-node account table and the state machine that validates and applies transactions against it.
// It knows nothing about consensus; PoA and PoW nodes each own one.
type Ledger struct {
	authority t.Address
	operator  t.Address
	genesis   map[t.Address]uint64
	fee       FeePolicy
	logger    *slog.Logger

	state     *t.State
	pending   *Pool
	history   []*t.Transaction
	seen      map[t.Hash]struct{}
	applied   map[poolKey]*t.Transaction
	cancelled map[t.Hash]struct{}
}

// New creates a ledger in which only authority may mint. Cancellation fees go to authority unless WithOperator says otherwise.
func New(authority t.Address, opts ...Option) *Ledger {
	l := &Ledger{
		authority: authority,
		operator:  authority,
		genesis:   map[t.Address]uint64{},
		fee:       DefaultCancelFee,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.Reset()
	return l
}

// Reset discards every applied and buffered transaction and restores the genesis balances.
func (l *Ledger) Reset() {
	l.state = t.NewState()
	for addr, balance := range l.genesis {
		l.state.Materialize(addr).Balance = balance
	}
	l.pending = NewPool()
	l.history = nil
	l.seen = make(map[t.Hash]struct{})
	l.applied = make(map[poolKey]*t.Transaction)
	l.cancelled = make(map[t.Hash]struct{})
}

func (l *Ledger) Authority() t.Address { return l.authority }
func (l *Ledger) Operator() t.Address  { return l.operator }

// Validate runs the checks in order and stops at the first failure:
// signature, account materialization, type rules, then nonce ordering.
func (l *Ledger) Validate(txn *t.Transaction) (Disposition, error) {
	if err := b.CheckSig(txn); err != nil {
		return Skip, err
	}

	c := txn.Contents
	from := l.state.Materialize(c.From)
	to := l.state.Materialize(c.To)

	switch c.Type {
	case t.Mint:
		if c.From != l.authority {
			return Skip, fmt.Errorf("%w: %s is not the authority", t.ErrUnauthorizedMint, c.From.Short())
		}
		if to.Balance > math.MaxUint64-c.Amount {
			return Skip, t.ErrBalanceOverflow
		}
	case t.Check:
		return Skip, nil
	case t.Send:
		if from.Balance < c.Amount {
			return Skip, fmt.Errorf("%w: balance %d, sending %d", t.ErrInsufficientFunds, from.Balance, c.Amount)
		}
		if c.From != c.To && to.Balance > math.MaxUint64-c.Amount {
			return Skip, t.ErrBalanceOverflow
		}
	case t.Cancel:
		// A cancel names its target by nonce, so it is not nonce-gated itself.
		if _, err := l.cancelTarget(txn); err != nil {
			return Skip, err
		}
		return Apply, nil
	default:
		return Skip, fmt.Errorf("%w: %q", t.ErrInvalidTxType, c.Type)
	}

	switch {
	case c.Nonce > from.Nonce:
		return Buffer, nil
	case c.Nonce < from.Nonce:
		return Skip, fmt.Errorf("%w: got %d, account is at %d", t.ErrStaleNonce, c.Nonce, from.Nonce)
	}
	return Apply, nil
}

// Apply performs a validated transaction.
func (l *Ledger) Apply(txn *t.Transaction) {
	c := txn.Contents
	switch c.Type {
	case t.Cancel:
		l.applyCancel(txn)
	case t.Mint:
		l.state.Materialize(c.To).Balance += c.Amount
		l.state.Materialize(c.From).Nonce++
		l.applied[poolKey{c.From, c.Nonce}] = txn
	case t.Send:
		l.transfer(c.From, c.To, c.Amount)
		l.state.Materialize(c.From).Nonce++
		l.applied[poolKey{c.From, c.Nonce}] = txn
	default:
		return
	}
	l.record(txn)
}

// Process dedups, validates and applies txn, buffering it if its nonce is ahead. Every successful apply
// replays whatever the sender had waiting in the pool.
func (l *Ledger) Process(txn *t.Transaction) (Outcome, error) {
	outcome, err := l.processOne(txn)
	if outcome == Applied {
		l.drain(txn.Contents.From)
	}
	return outcome, err
}

func (l *Ledger) processOne(txn *t.Transaction) (Outcome, error) {
	id := b.TxID(txn)
	if l.Seen(id) {
		return Duplicate, nil
	}

	disposition, err := l.Validate(txn)
	if err != nil {
		l.logger.Debug("transaction rejected", "tx", id.Short(), "type", txn.Contents.Type, "err", err)
		return Rejected, err
	}

	switch disposition {
	case Skip:
		account, _ := l.state.Get(txn.Contents.From)
		l.logger.Info("balance check", "account", txn.Contents.From.Short(), "balance", account.Balance)
		return Skipped, nil
	case Buffer:
		l.pending.Put(txn)
		l.logger.Debug("transaction buffered", "tx", id.Short(), "nonce", txn.Contents.Nonce)
		return Buffered, nil
	}

	l.Apply(txn)
	l.logger.Debug("transaction applied", "tx", id.Short(), "type", txn.Contents.Type, "amount", txn.Contents.Amount)
	return Applied, nil
}

// drain replays buffered transactions for addr as long as the next one in nonce order is waiting.
func (l *Ledger) drain(addr t.Address) {
	for {
		next, ok := l.pending.Take(addr, l.state.Materialize(addr).Nonce)
		if !ok {
			return
		}
		if outcome, err := l.processOne(next); outcome != Applied {
			l.logger.Debug("buffered transaction dropped", "tx", b.TxID(next).Short(), "outcome", outcome, "err", err)
			return
		}
	}
}

// Commit applies a send whose order was decided elsewhere. Signature and ordering checks are the caller's.
func (l *Ledger) Commit(txn *t.Transaction) error {
	c := txn.Contents
	if c.Type != t.Send {
		return fmt.Errorf("%w: %q", t.ErrInvalidTxType, c.Type)
	}
	from := l.state.Materialize(c.From)
	to := l.state.Materialize(c.To)
	if from.Balance < c.Amount {
		return fmt.Errorf("%w: balance %d, sending %d", t.ErrInsufficientFunds, from.Balance, c.Amount)
	}
	if c.From != c.To && to.Balance > math.MaxUint64-c.Amount {
		return t.ErrBalanceOverflow
	}
	l.transfer(c.From, c.To, c.Amount)
	from.Nonce++
	l.record(txn)
	return nil
}

// Touch materializes addr with a zero balance if it has never been referenced.
func (l *Ledger) Touch(addr t.Address) {
	l.state.Materialize(addr)
}

func (l *Ledger) transfer(from, to t.Address, amount uint64) {
	l.state.Materialize(from).Balance -= amount
	l.state.Materialize(to).Balance += amount
}

func (l *Ledger) record(txn *t.Transaction) {
	l.history = append(l.history, txn)
	l.seen[b.TxID(txn)] = struct{}{}
}

func (l *Ledger) Seen(id t.Hash) bool {
	_, exists := l.seen[id]
	return exists
}

func (l *Ledger) Balance(addr t.Address) uint64 {
	account, _ := l.state.Get(addr)
	return account.Balance
}

func (l *Ledger) Nonce(addr t.Address) uint64 {
	account, _ := l.state.Get(addr)
	return account.Nonce
}

func (l *Ledger) Account(addr t.Address) (t.Account, bool) {
	return l.state.Get(addr)
}

// State returns a copy of the account table.
func (l *Ledger) State() *t.State {
	return l.state.Clone()
}

func (l *Ledger) TotalSupply() uint64 {
	return l.state.TotalSupply()
}

func (l *Ledger) History() []*t.Transaction {
	return append([]*t.Transaction{}, l.history...)
}

func (l *Ledger) Pending() *Pool {
	return l.pending
}
