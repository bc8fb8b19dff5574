package ledger

import (
	"fmt"

	b "finality/blockchain"
	t "finality/types"
)

// cancellation is where a cancel's target was found: still pending, or already applied.
type cancellation struct {
	pending *t.Transaction
	applied *t.Transaction
	fee     uint64
}

// cancelTarget resolves the transaction a cancel refers to. The cancel is signed by the target's sender and
// names the target by its nonce; its own amount and recipient are ignored.
func (l *Ledger) cancelTarget(txn *t.Transaction) (cancellation, error) {
	from, nonce := txn.Contents.From, txn.Contents.Nonce

	if pending, ok := l.pending.Peek(from, nonce); ok {
		return cancellation{pending: pending}, nil
	}

	target, ok := l.applied[poolKey{from, nonce}]
	if !ok || target.Contents.Type != t.Send {
		return cancellation{}, fmt.Errorf("%w: %s has no send at nonce %d", t.ErrNothingToCancel, from.Short(), nonce)
	}
	if _, done := l.cancelled[b.TxID(target)]; done {
		return cancellation{}, fmt.Errorf("%w: nonce %d already cancelled", t.ErrNothingToCancel, nonce)
	}

	amount := target.Contents.Amount
	if l.Balance(target.Contents.To) < amount {
		return cancellation{}, fmt.Errorf("%w: recipient cannot return %d", t.ErrInsufficientFunds, amount)
	}
	return cancellation{applied: target, fee: min(l.fee.Fee(amount), amount)}, nil
}

// applyCancel drops a pending target for free, or reverses an applied one minus the operator's fee.
func (l *Ledger) applyCancel(txn *t.Transaction) {
	target, err := l.cancelTarget(txn)
	if err != nil {
		return
	}

	if target.pending != nil {
		l.pending.Take(target.pending.Contents.From, target.pending.Contents.Nonce)
		l.logger.Debug("pending transaction cancelled", "tx", b.TxID(target.pending).Short())
		return
	}

	c := target.applied.Contents
	l.state.Materialize(c.To).Balance -= c.Amount
	l.state.Materialize(c.From).Balance += c.Amount - target.fee
	l.state.Materialize(l.operator).Balance += target.fee
	l.cancelled[b.TxID(target.applied)] = struct{}{}
	l.logger.Debug("applied transaction reversed", "tx", b.TxID(target.applied).Short(), "fee", target.fee)
}
