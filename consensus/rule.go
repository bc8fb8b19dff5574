// Package consensus layers finality rules over the ledger state machine.
//
// Two rules are provided. PoA trusts a single authority key: the authority co-signs each
// transaction with a global order number and every node applies transactions strictly in
// that order, buffering any that arrive early. PoW has miners search for block nonces that
// meet a difficulty target, and every node follows the longest gap-free chain it has seen,
// rebuilding its ledger from genesis whenever it switches branches.
//
// Nodes are single threaded. The network layer calls OnReceive and Tick; nothing here blocks
// or spawns goroutines.
package consensus

import (
	t "finality/types"
)

// Rule is a finality mechanism. The ledger it drives is injected at construction.
type Rule interface {
	// ValidateUnit checks a transaction or block without changing any state.
	ValidateUnit(unit t.Unit) error
	// ApplyUnit validates and applies a unit, buffering it if its ordering predecessor is missing.
	ApplyUnit(unit t.Unit) error
	// SelectCanonical reconciles the node's view with everything it has received.
	SelectCanonical() error
}

var (
	_ Rule = (*PoA)(nil)
	_ Rule = (*Client)(nil)
	_ Rule = (*Miner)(nil)
)
