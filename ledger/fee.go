package ledger

import "math/bits"

// FeePolicy prices the cancellation of an already applied transfer.
type FeePolicy interface {
	Fee(amount uint64) uint64
}

// BasisPoints charges amount*bps/10000, rounded down. 300 is a 3% fee.
type BasisPoints uint64

const maxBasisPoints = 10_000

// DefaultCancelFee is the 3% cancellation fee.
const DefaultCancelFee = BasisPoints(300)

func (bp BasisPoints) Fee(amount uint64) uint64 {
	rate := min(uint64(bp), maxBasisPoints)
	hi, lo := bits.Mul64(amount, rate)
	fee, _ := bits.Div64(hi, lo, maxBasisPoints)
	return fee
}

// FeeFunc adapts a plain function to a FeePolicy.
type FeeFunc func(amount uint64) uint64

func (f FeeFunc) Fee(amount uint64) uint64 { return f(amount) }
