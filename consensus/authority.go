package consensus

import (
	"fmt"

	b "finality/blockchain"
	t "finality/types"
)

// Authority assigns the global order. It co-signs each sender-signed transaction with the next order number.
type Authority struct {
	id      *b.Identity
	next    uint64
	ordered map[t.Hash]*t.Transaction
}

func NewAuthority(id *b.Identity) *Authority {
	return &Authority{
		id:      id,
		ordered: make(map[t.Hash]*t.Transaction),
	}
}

func (a *Authority) Address() t.Address { return a.id.Address }

// Next is the order number the next new transaction will receive.
func (a *Authority) Next() uint64 { return a.next }

// Order returns txn co-signed with its order number. Ordering the same transaction twice
// returns the first ordering, so resubmission cannot claim a second slot.
func (a *Authority) Order(txn *t.Transaction) (*t.Transaction, error) {
	if txn.Contents.OrderNonce != nil {
		return nil, fmt.Errorf("%w: transaction already carries order %d", t.ErrUnauthorizedOrdering, *txn.Contents.OrderNonce)
	}
	if txn.Contents.Type != t.Send {
		return nil, fmt.Errorf("%w: %q", t.ErrInvalidTxType, txn.Contents.Type)
	}
	if err := b.CheckSig(txn); err != nil {
		return nil, err
	}

	id := b.TxID(txn)
	if ordered, exists := a.ordered[id]; exists {
		return ordered, nil
	}
	ordered := b.CoSign(a.id, txn, a.next)
	a.ordered[id] = ordered
	a.next++
	return ordered, nil
}
