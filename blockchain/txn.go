package blockchain

import (
	"fmt"
	t "finality/types"
)

// NewTx builds a transaction and attaches the sender's signature.
func NewTx(id *Identity, txType t.TxType, to t.Address, amount uint64, nonce uint64) *t.Transaction {
	txn := &t.Transaction{
		Contents: t.TxContents{
			Type:   txType,
			Amount: amount,
			From:   id.Address,
			To:     to,
			Nonce:  nonce,
		},
		Signatures: []t.Signature{},
	}
	txn.Signatures = append(txn.Signatures, Sign(id.PrivateKey, SenderDigest(txn)))
	return txn
}

// TxID identifies a transaction for deduplication: the hash of its contents.
func TxID(txn *t.Transaction) t.Hash {
	return ContentHash(txn.Contents)
}

// SenderDigest is what the sender signs: the transaction with no order number and no signatures.
func SenderDigest(txn *t.Transaction) t.Hash {
	contents := txn.Contents
	contents.OrderNonce = nil
	return ContentHash(t.Transaction{Contents: contents, Signatures: []t.Signature{}})
}

// AuthorityDigest is what the ordering authority signs: the ordered transaction carrying only the sender's signature.
func AuthorityDigest(txn *t.Transaction) t.Hash {
	sigs := []t.Signature{}
	if len(txn.Signatures) > 0 {
		sigs = append(sigs, txn.Signatures[0])
	}
	return ContentHash(t.Transaction{Contents: txn.Contents, Signatures: sigs})
}

// Signer recovers the address behind signature[0].
func Signer(txn *t.Transaction) (t.Address, error) {
	if len(txn.Signatures) < 1 {
		return t.Address{}, t.ErrMissingSignature
	}
	return RecoverAddress(txn.Signatures[0], SenderDigest(txn))
}

// CheckSig fails with ErrInvalidSignature unless signature[0] was made by contents.from.
func CheckSig(txn *t.Transaction) error {
	signer, err := Signer(txn)
	if err != nil {
		return fmt.Errorf("%w: %v", t.ErrInvalidSignature, err)
	}
	if signer != txn.Contents.From {
		return fmt.Errorf("%w: signed by %s, sent from %s", t.ErrInvalidSignature, signer.Short(), txn.Contents.From.Short())
	}
	return nil
}

// Orderer recovers the address behind signature[1].
func Orderer(txn *t.Transaction) (t.Address, error) {
	if len(txn.Signatures) < 2 {
		return t.Address{}, t.ErrMissingSignature
	}
	return RecoverAddress(txn.Signatures[1], AuthorityDigest(txn))
}

// CheckOrdering fails with ErrUnauthorizedOrdering unless signature[1] was made by authority.
func CheckOrdering(txn *t.Transaction, authority t.Address) error {
	orderer, err := Orderer(txn)
	if err != nil {
		return fmt.Errorf("%w: %v", t.ErrUnauthorizedOrdering, err)
	}
	if orderer != authority {
		return fmt.Errorf("%w: ordered by %s", t.ErrUnauthorizedOrdering, orderer.Short())
	}
	return nil
}

// CoSign returns a copy of txn carrying orderNonce and the authority's signature.
func CoSign(authority *Identity, txn *t.Transaction, orderNonce uint64) *t.Transaction {
	ordered := txn.Clone()
	ordered.Signatures = ordered.Signatures[:min(len(ordered.Signatures), 1)]
	ordered.Contents.OrderNonce = uint64Ptr(orderNonce)
	ordered.Signatures = append(ordered.Signatures, Sign(authority.PrivateKey, AuthorityDigest(ordered)))
	return ordered
}
