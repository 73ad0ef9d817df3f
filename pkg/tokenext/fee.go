package tokenext

import (
	"math/bits"

	"github.com/code-payments/token-extensions/pkg/solana/token2022"
)

const (
	// feeBasisPointDenominator is the divisor applied to transfer fee basis
	// points, matching the on-chain calculation.
	feeBasisPointDenominator = 10_000

	maxFeeBasisPoints = feeBasisPointDenominator
)

// CalculateTransferFee returns the fee withheld from a transfer of amount
// under the provided fee parameters. The calculation is ceiling division in
// 128 bit space, capped at the maximum fee, matching the program exactly so
// a caller-declared expected fee never drifts from what the chain computes.
func CalculateTransferFee(fee token2022.TransferFee, amount uint64) (uint64, error) {
	if fee.TransferFeeBasisPoints > maxFeeBasisPoints {
		return 0, ErrInvalidTransferFeeConfig
	}
	if fee.TransferFeeBasisPoints == 0 || amount == 0 {
		return 0, nil
	}

	hi, lo := bits.Mul64(amount, uint64(fee.TransferFeeBasisPoints))
	lo, carry := bits.Add64(lo, feeBasisPointDenominator-1, 0)
	hi += carry

	// hi < denominator always holds for basis points <= the denominator,
	// so the division cannot trap.
	raw, _ := bits.Div64(hi, lo, feeBasisPointDenominator)

	if raw > fee.MaximumFee {
		return fee.MaximumFee, nil
	}
	return raw, nil
}
