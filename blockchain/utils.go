package blockchain

import (
	t "finality/types"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AddrFromKey takes the last 20 bytes of the keccak256 of the uncompressed key, minus its 0x04 prefix.
func AddrFromKey(key *secp256k1.PublicKey) t.Address {
	digest := keccak256(key.SerializeUncompressed()[1:])
	var addr t.Address
	copy(addr[:], digest[12:])
	return addr
}

func uint64Ptr(n uint64) *uint64 {
	return &n
}
