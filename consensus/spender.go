package consensus

import (
	"math/rand"

	"finality/ledger"
	"finality/network"
	t "finality/types"
)

// Wallet is a node that holds a balance and can pay other addresses. *PoA, *Client and *Miner all qualify.
type Wallet interface {
	network.Node
	Address() t.Address
	Balance() uint64
	Ledger() *ledger.Ledger
	Send(to t.Address, amount uint64) (*t.Transaction, error)
	// Settled reports whether a sent transaction has been decided, applied or not.
	Settled(txn *t.Transaction) bool
}

// Spender drives a wallet with random traffic: whenever it has funds and no payment in flight,
// it pays one unit to a randomly chosen peer.
type Spender struct {
	Wallet
	peers    []t.Address
	rng      *rand.Rand
	inFlight *t.Transaction
	sent     int
}

func NewSpender(w Wallet, peers []t.Address, seed int64) *Spender {
	others := make([]t.Address, 0, len(peers))
	for _, p := range peers {
		if p != w.Address() {
			others = append(others, p)
		}
	}
	return &Spender{Wallet: w, peers: others, rng: rand.New(rand.NewSource(seed))}
}

func (s *Spender) Sent() int { return s.sent }

func (s *Spender) Tick() {
	s.Wallet.Tick()
	if s.inFlight != nil && !s.Settled(s.inFlight) {
		return
	}
	s.inFlight = nil
	if len(s.peers) == 0 || s.Balance() == 0 {
		return
	}
	to := s.peers[s.rng.Intn(len(s.peers))]
	txn, err := s.Send(to, 1)
	if err != nil {
		return
	}
	s.inFlight = txn
	s.sent++
}

var (
	_ Wallet = (*PoA)(nil)
	_ Wallet = (*Client)(nil)
	_ Wallet = (*Miner)(nil)
)
