package consensus

import (
	"fmt"

	b "finality/blockchain"
	"finality/ledger"
	"finality/network"
	t "finality/types"
)

// PoA applies transactions in the order fixed by a single trusted authority.
type PoA struct {
	settings
	id     *b.Identity
	ledger *ledger.Ledger
	net    network.Broadcaster

	authority       t.Address
	orderer         *Authority
	orderNonce      uint64
	invalidNonceTxs map[uint64]*t.Transaction
	transactions    map[t.Hash]struct{}
	settled         map[t.Hash]struct{}
	nextNonce       uint64
}

// NewPoA creates a node that trusts the ledger's authority address for ordering.
func NewPoA(id *b.Identity, l *ledger.Ledger, net network.Broadcaster, opts ...Option) (*PoA, error) {
	s := defaultSettings(id)
	for _, opt := range opts {
		opt(&s)
	}
	p := &PoA{
		settings:        s,
		id:              id,
		ledger:          l,
		net:             net,
		authority:       l.Authority(),
		invalidNonceTxs: make(map[uint64]*t.Transaction),
		transactions:    make(map[t.Hash]struct{}),
		settled:         make(map[t.Hash]struct{}),
	}
	if s.authorityKey != nil {
		if s.authorityKey.Address != p.authority {
			return nil, fmt.Errorf("authority key %s does not match ledger authority %s", s.authorityKey.Address.Short(), p.authority.Short())
		}
		p.orderer = NewAuthority(s.authorityKey)
	}
	return p, nil
}

func (p *PoA) Pid() string            { return p.pid }
func (p *PoA) Address() t.Address     { return p.id.Address }
func (p *PoA) Ledger() *ledger.Ledger { return p.ledger }
func (p *PoA) OrderNonce() uint64     { return p.orderNonce }
func (p *PoA) Balance() uint64        { return p.ledger.Balance(p.id.Address) }
func (p *PoA) IsAuthority() bool      { return p.orderer != nil }
func (p *PoA) Buffered() int          { return len(p.invalidNonceTxs) }
func (p *PoA) Tick()                  {}
func (p *PoA) SelectCanonical() error { return nil }
func (p *PoA) String() string         { return "poa:" + p.id.Address.Short() }

// Settled reports whether txn has passed through its order slot, whether or not its transfer succeeded.
func (p *PoA) Settled(txn *t.Transaction) bool {
	_, done := p.settled[b.SenderDigest(txn)]
	return done
}

// GenerateTx builds a send signed by this node. The authority adds the order number and second signature.
// Commits do not gate on the account nonce, so the counter only has to keep this node's transactions distinct.
func (p *PoA) GenerateTx(to t.Address, amount uint64) *t.Transaction {
	nonce := max(p.ledger.Nonce(p.id.Address), p.nextNonce)
	p.nextNonce = nonce + 1
	return b.NewTx(p.id, t.Send, to, amount, nonce)
}

// Send generates a transaction and hands it to the network, or orders it directly when this node is the authority.
func (p *PoA) Send(to t.Address, amount uint64) (*t.Transaction, error) {
	txn := p.GenerateTx(to, amount)
	if err := p.receive(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (p *PoA) OnReceive(unit t.Unit) {
	if err := p.receive(unit); err != nil {
		p.logger.Warn("rejected message", "pid", p.pid, "type", unit.UnitType(), "err", err)
	}
}

func (p *PoA) receive(unit t.Unit) error {
	txn, ok := unit.(*t.Transaction)
	if !ok {
		return fmt.Errorf("%w: PoA only carries transactions", t.ErrInvalidTxType)
	}

	// Only a transaction that passed its signature checks is remembered, so a forged copy
	// cannot shadow the genuine one.
	id := b.TxID(txn)
	if _, seen := p.transactions[id]; seen {
		return nil
	}

	if txn.Contents.OrderNonce == nil {
		if err := b.CheckSig(txn); err != nil {
			return err
		}
		p.transactions[id] = struct{}{}
		if p.orderer == nil {
			// Gossip unordered transactions until they reach the authority.
			p.net.Broadcast(p.pid, txn)
			return nil
		}
		ordered, err := p.orderer.Order(txn)
		if err != nil {
			return err
		}
		p.logger.Debug("ordered transaction", "pid", p.pid, "tx", id.Short(), "order", *ordered.Contents.OrderNonce)
		return p.receive(ordered)
	}

	// Anything correctly ordered is forwarded, even if its transfer fails: the slot it fills is
	// needed by every node's cursor.
	if err := p.validate(txn); err != nil {
		return err
	}
	p.transactions[id] = struct{}{}
	p.net.Broadcast(p.pid, txn)
	_, err := p.ApplyTransaction(txn)
	return err
}

func (p *PoA) ApplyUnit(unit t.Unit) error {
	txn, ok := unit.(*t.Transaction)
	if !ok {
		return fmt.Errorf("%w: PoA only carries transactions", t.ErrInvalidTxType)
	}
	_, err := p.ApplyTransaction(txn)
	return err
}

func (p *PoA) ValidateUnit(unit t.Unit) error {
	txn, ok := unit.(*t.Transaction)
	if !ok {
		return fmt.Errorf("%w: PoA only carries transactions", t.ErrInvalidTxType)
	}
	return p.validate(txn)
}

func (p *PoA) validate(txn *t.Transaction) error {
	if err := b.CheckSig(txn); err != nil {
		return err
	}
	if txn.Contents.OrderNonce == nil {
		return fmt.Errorf("%w: no order number", t.ErrUnauthorizedOrdering)
	}
	return b.CheckOrdering(txn, p.authority)
}

// ApplyTransaction verifies both signatures and applies txn if it is next in the authority's order.
// A transaction ahead of the local cursor is held until the gap closes; one behind it is dropped.
func (p *PoA) ApplyTransaction(txn *t.Transaction) (ledger.Outcome, error) {
	if err := p.validate(txn); err != nil {
		return ledger.Rejected, err
	}
	p.ledger.Touch(txn.Contents.To)

	order := *txn.Contents.OrderNonce
	switch {
	case order > p.orderNonce:
		if _, exists := p.invalidNonceTxs[order]; !exists {
			p.invalidNonceTxs[order] = txn
		}
		p.logger.Debug("transaction waiting for order", "pid", p.pid, "order", order, "cursor", p.orderNonce)
		return ledger.Buffered, nil
	case order < p.orderNonce:
		p.logger.Debug("order already passed", "pid", p.pid, "order", order, "cursor", p.orderNonce)
		return ledger.Duplicate, nil
	}

	err := p.commit(txn)
	p.replay()
	if err != nil {
		return ledger.Rejected, err
	}
	return ledger.Applied, nil
}

// commit applies the transaction at the cursor. The slot is consumed even if the transfer fails,
// so every node skips the same failed slot and later transactions are not stranded.
func (p *PoA) commit(txn *t.Transaction) error {
	err := p.ledger.Commit(txn)
	p.orderNonce++
	p.settled[b.SenderDigest(txn)] = struct{}{}
	if err != nil {
		p.logger.Debug("ordered transaction failed", "pid", p.pid, "order", p.orderNonce-1, "err", err)
		return err
	}
	return nil
}

// replay applies buffered transactions for as long as the next order number is waiting.
func (p *PoA) replay() {
	for {
		next, ok := p.invalidNonceTxs[p.orderNonce]
		if !ok {
			return
		}
		delete(p.invalidNonceTxs, p.orderNonce)
		_ = p.commit(next)
	}
}
