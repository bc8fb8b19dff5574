package blockchain

import (
	"encoding/json"
	"fmt"
	t "finality/types"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Identity is a key pair plus the address derived from its public half.
type Identity struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
	Address    t.Address
}

func NewIdentity() (*Identity, error) {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return IdentityFromKey(privKey), nil
}

func IdentityFromKey(privKey *secp256k1.PrivateKey) *Identity {
	pubKey := privKey.PubKey()
	return &Identity{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Address:    AddrFromKey(pubKey),
	}
}

// IdentityFromSeed derives a deterministic identity. Only meant for fixtures and demos.
func IdentityFromSeed(seed string) *Identity {
	digest := keccak256([]byte(seed))
	return IdentityFromKey(secp256k1.PrivKeyFromBytes(digest[:]))
}

// ContentHash is the keccak256 digest of the JSON encoding of v.
func ContentHash(v any) t.Hash {
	// Every wire type here marshals without error.
	data, _ := json.Marshal(v)
	return keccak256(data)
}

func Sign(privKey *secp256k1.PrivateKey, digest t.Hash) t.Signature {
	var sig t.Signature
	copy(sig[:], ecdsa.SignCompact(privKey, digest[:], false))
	return sig
}

// RecoverAddress returns the address whose key produced sig over digest.
func RecoverAddress(sig t.Signature, digest t.Hash) (t.Address, error) {
	pubKey, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return t.Address{}, fmt.Errorf("%w: %v", t.ErrInvalidSignature, err)
	}
	return AddrFromKey(pubKey), nil
}

func keccak256(data ...[]byte) t.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out t.Hash
	copy(out[:], h.Sum(nil))
	return out
}
