package ledger

import t "finality/types"

type poolKey struct {
	from  t.Address
	nonce uint64
}

// Pool holds transactions whose nonce is ahead of their sender's account, keyed by the nonce that unblocks them.
type Pool struct {
	entries map[poolKey]*t.Transaction
}

func NewPool() *Pool {
	return &Pool{entries: make(map[poolKey]*t.Transaction)}
}

// Put buffers txn unless a transaction for the same sender and nonce is already waiting.
func (p *Pool) Put(txn *t.Transaction) bool {
	key := poolKey{txn.Contents.From, txn.Contents.Nonce}
	if _, exists := p.entries[key]; exists {
		return false
	}
	p.entries[key] = txn
	return true
}

func (p *Pool) Peek(from t.Address, nonce uint64) (*t.Transaction, bool) {
	txn, exists := p.entries[poolKey{from, nonce}]
	return txn, exists
}

// Take removes and returns the transaction waiting on (from, nonce).
func (p *Pool) Take(from t.Address, nonce uint64) (*t.Transaction, bool) {
	key := poolKey{from, nonce}
	txn, exists := p.entries[key]
	if exists {
		delete(p.entries, key)
	}
	return txn, exists
}

func (p *Pool) Len() int {
	return len(p.entries)
}

// Waiting lists the buffered transactions of one sender.
func (p *Pool) Waiting(from t.Address) []*t.Transaction {
	var out []*t.Transaction
	for key, txn := range p.entries {
		if key.from == from {
			out = append(out, txn)
		}
	}
	return out
}
