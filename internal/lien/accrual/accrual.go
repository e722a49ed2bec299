// Package accrual computes the issuance service fee and the pro-rated
// redemption payout.
//
// All money arithmetic runs on 256-bit intermediates (holiman/uint256) so no
// product of in-range operands can wrap, and every division is floor
// division, so rounding favors the pool rather than the investor.
package accrual

import (
	"github.com/holiman/uint256"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

// SecondsPerYear pro-rates interest linearly over a 365-day year.
const SecondsPerYear uint64 = 31_536_000

// aprDivisor converts the scaled basis-point APR to a fraction.
const aprDivisor uint64 = 10_000

// ServiceFee returns floor(faceAmount * 3 / 100).
func ServiceFee(faceAmount uint64) uint64 {
	fee := uint256.NewInt(faceAmount)
	fee.Mul(fee, uint256.NewInt(models.ServiceFeePercent))
	fee.Div(fee, uint256.NewInt(100))
	// faceAmount is bounded by MaxFaceAmount, so the quotient fits.
	return fee.Uint64()
}

// RequiredPayment returns faceAmount plus the service fee.
func RequiredPayment(faceAmount uint64) uint64 {
	return faceAmount + ServiceFee(faceAmount)
}

// Payout computes the redemption payout for a lien held durationSeconds.
//
//	annualReturn = floor(faceAmount * apr / 10000)
//	returns      = floor(annualReturn * durationSeconds / SecondsPerYear)
//	payout       = faceAmount + returns
//
// A negative duration indicates a data-integrity fault and fails rather than
// producing a negative payout. A payout exceeding the ledger unit width fails
// with an overflow error.
func Payout(faceAmount uint64, apr uint16, durationSeconds int64) (payout, returns uint64, err error) {
	if durationSeconds < 0 {
		return 0, 0, dErrors.New(dErrors.CodeInvalidState, "redemption precedes issue date")
	}

	annual := uint256.NewInt(faceAmount)
	annual.Mul(annual, uint256.NewInt(uint64(apr)))
	annual.Div(annual, uint256.NewInt(aprDivisor))

	accrued := new(uint256.Int).Mul(annual, uint256.NewInt(uint64(durationSeconds)))
	accrued.Div(accrued, uint256.NewInt(SecondsPerYear))

	total := new(uint256.Int).Add(accrued, uint256.NewInt(faceAmount))
	if !total.IsUint64() {
		return 0, 0, dErrors.New(dErrors.CodeOverflow, "payout exceeds ledger unit width")
	}
	if !accrued.IsUint64() {
		return 0, 0, dErrors.New(dErrors.CodeOverflow, "accrued returns exceed ledger unit width")
	}
	return total.Uint64(), accrued.Uint64(), nil
}
