package types

import "errors"

// Rejections. None of these are fatal to a node: the offending unit is dropped and state is left unchanged.
var (
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrMissingSignature     = errors.New("missing signature")
	ErrUnauthorizedMint     = errors.New("unauthorized mint")
	ErrUnauthorizedOrdering = errors.New("unauthorized ordering")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBalanceOverflow      = errors.New("balance overflow")
	ErrStaleNonce           = errors.New("stale nonce")
	ErrInvalidTxType        = errors.New("invalid transaction type")
	ErrNothingToCancel      = errors.New("no transaction to cancel")

	ErrInvalidBlockType   = errors.New("invalid block type")
	ErrInvalidBlockHash   = errors.New("block hash does not meet difficulty")
	ErrInvalidBlockNumber = errors.New("block number does not follow parent")
	ErrUnresolvedFork     = errors.New("unresolved fork")
)
