package consensus

import (
	"testing"

	b "finality/blockchain"
	"finality/ledger"
	"finality/types"
)

const genesisSupply = 1_000_000

type capture struct {
	units []types.Unit
}

func (c *capture) Broadcast(from string, unit types.Unit) {
	c.units = append(c.units, unit)
}

func (c *capture) blocks() []*types.Block {
	var blocks []*types.Block
	for _, u := range c.units {
		if block, ok := u.(*types.Block); ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

type actors struct {
	authority *b.Identity
	alice     *b.Identity
	bob       *b.Identity
	carol     *b.Identity
}

func newActors() actors {
	return actors{
		authority: b.IdentityFromSeed("authority"),
		alice:     b.IdentityFromSeed("alice"),
		bob:       b.IdentityFromSeed("bob"),
		carol:     b.IdentityFromSeed("carol"),
	}
}

func (a actors) ledger() *ledger.Ledger {
	return ledger.New(a.authority.Address, ledger.WithGenesis(map[types.Address]uint64{a.authority.Address: genesisSupply}))
}

// mine brute-forces a block on parent at the given difficulty.
func mine(tb testing.TB, parent *types.Block, coinbase types.Address, difficulty uint64, txs ...*types.Transaction) *types.Block {
	tb.Helper()
	block := &types.Block{
		Number:     parent.Number + 1,
		Coinbase:   coinbase,
		Difficulty: difficulty,
		ParentHash: b.BlockHash(parent),
		Timestamp:  int64(parent.Number + 1),
		Contents: types.BlockContents{
			Type:   types.BlockType,
			TxList: append([]*types.Transaction{}, txs...),
		},
	}
	for !b.IsValidBlockHash(block, difficulty) {
		block.Nonce++
	}
	return block
}

func expectBalance(tb testing.TB, l *ledger.Ledger, who string, addr types.Address, want uint64) {
	tb.Helper()
	if got := l.Balance(addr); got != want {
		tb.Fatalf("expected %s to hold %d, got %d", who, want, got)
	}
}
