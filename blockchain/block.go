package blockchain

import (
	t "finality/types"
	"math/bits"
)

// GenesisDifficulty is a sentinel: the genesis block is fixed, never mined or validated.
const GenesisDifficulty = 9000

func Genesis() *t.Block {
	return &t.Block{
		Nonce:      0,
		Number:     0,
		Coinbase:   t.Address{},
		Difficulty: GenesisDifficulty,
		ParentHash: t.Hash{},
		Timestamp:  0,
		Contents: t.BlockContents{
			Type:   t.BlockType,
			TxList: []*t.Transaction{},
		},
	}
}

// BlockHash covers the whole block, nonce included, so mining is a search over nonce.
func BlockHash(block *t.Block) t.Hash {
	return ContentHash(block)
}

func LeadingZeroBits(hash t.Hash) uint64 {
	var zeros uint64
	for _, b := range hash {
		if b != 0 {
			return zeros + uint64(bits.LeadingZeros8(b))
		}
		zeros += 8
	}
	return zeros
}

func IsValidBlockHash(block *t.Block, difficulty uint64) bool {
	return LeadingZeroBits(BlockHash(block)) >= difficulty
}
