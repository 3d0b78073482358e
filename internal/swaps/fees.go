package swaps

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/enums"
)

// FeeSchedule prices swaps. Percentages are applied with decimal arithmetic
// and floored to whole points.
type FeeSchedule struct {
	pointsPrice   int64
	pointsFeeRate decimal.Decimal
	directFee     int64
	directFeeRate decimal.Decimal
	minAdminFee   int64
	multiplier    int64
}

// Settlement lists the balance movements of one completed swap. Debits are
// only applied when the holder can cover them.
type Settlement struct {
	SwapType       enums.SwapType
	RequesterDebit int64
	OwnerDebit     int64
	OwnerCredit    int64
	PlatformCredit int64
}

func NewFeeSchedule(cfg config.SwapConfig) FeeSchedule {
	return FeeSchedule{
		pointsPrice:   cfg.PointsPrice,
		pointsFeeRate: cfg.PointsFeeRate,
		directFee:     cfg.DirectFee,
		directFeeRate: cfg.DirectFeeRate,
		minAdminFee:   cfg.MinAdminFee,
		multiplier:    cfg.FeeMultiplier,
	}
}

// CreationCharge is debited from the requester when the swap request is made.
func (f FeeSchedule) CreationCharge(swapType enums.SwapType) int64 {
	if swapType == enums.SwapTypePoints {
		return f.pointsPrice
	}
	return 0
}

// Settle returns the movements applied when a swap of the given type completes.
func (f FeeSchedule) Settle(swapType enums.SwapType) (Settlement, error) {
	switch swapType {
	case enums.SwapTypePoints:
		fee := floorRate(f.pointsPrice, f.pointsFeeRate)
		return Settlement{
			SwapType:       swapType,
			RequesterDebit: f.pointsPrice,
			OwnerCredit:    f.pointsPrice - fee,
			PlatformCredit: fee * f.multiplier,
		}, nil
	case enums.SwapTypeDirect:
		adminFee := max(f.minAdminFee, floorRate(f.directFee, f.directFeeRate))
		return Settlement{
			SwapType:       swapType,
			RequesterDebit: f.directFee,
			OwnerDebit:     f.directFee,
			PlatformCredit: adminFee * f.multiplier,
		}, nil
	default:
		return Settlement{}, fmt.Errorf("unknown swap type %q", swapType)
	}
}

func floorRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}
