package domain

import (
	"fmt"
	"math/big"

	"github.com/fd1az/liquidity-bot/internal/apperror"
)

// LiquidityResult summarizes how much of an asset is buyable from a batch
// of sell orders and what filling all of it would cost in the quote asset.
type LiquidityResult struct {
	// TokensAvailable is the exact sum of the remaining fillable maker
	// amounts, in maker base units.
	TokensAvailable *big.Int

	// QuoteValueAvailable is the total quote cost in taker base units,
	// with each order's partial cost floored before summing. Flooring
	// per order keeps the total conservative: rounding never inflates
	// what a taker would be charged.
	QuoteValueAvailable *big.Int

	// QuoteValueExact is the same total with no truncation, as an exact
	// rational. Callers presenting sub-unit precision read this one.
	QuoteValueExact *big.Rat
}

// ZeroLiquidityResult returns a result with all totals at zero.
func ZeroLiquidityResult() LiquidityResult {
	return LiquidityResult{
		TokensAvailable:     new(big.Int),
		QuoteValueAvailable: new(big.Int),
		QuoteValueExact:     new(big.Rat),
	}
}

// DegenerateOrderWarning reports an order with a zero maker amount that
// was skipped during aggregation. It is a diagnostic, not a failure.
type DegenerateOrderWarning struct {
	OrderIndex int
}

func (w DegenerateOrderWarning) String() string {
	return fmt.Sprintf("order %d has zero maker amount, skipped", w.OrderIndex)
}

// ComputeLiquidity values a batch of sell orders: the total maker tokens
// still fillable and the proportional quote cost of filling them.
//
// Each order contributes fillable*taker/maker to the quote total, computed
// with exact big-integer and rational arithmetic. Orders with a zero maker
// amount are skipped and reported through the returned warnings so one
// degenerate order never aborts an otherwise valid query.
//
// The function is pure: it never mutates the batch and is safe to call
// concurrently.
func ComputeLiquidity(batch OrderBatch) (LiquidityResult, []DegenerateOrderWarning, error) {
	if len(batch.Orders) != len(batch.RemainingFillableMakerAmounts) {
		return LiquidityResult{}, nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("orders and fillable amounts length mismatch: %d orders, %d fillable amounts",
				len(batch.Orders), len(batch.RemainingFillableMakerAmounts)))
	}

	if err := validateAmounts(batch); err != nil {
		return LiquidityResult{}, nil, err
	}

	result := ZeroLiquidityResult()
	var warnings []DegenerateOrderWarning

	for i, order := range batch.Orders {
		fillable := batch.RemainingFillableMakerAmounts[i]

		if order.MakerAssetAmount.Sign() == 0 {
			warnings = append(warnings, DegenerateOrderWarning{OrderIndex: i})
			continue
		}

		result.TokensAvailable.Add(result.TokensAvailable, fillable)

		// partial cost = fillable * taker / maker
		numerator := new(big.Int).Mul(fillable, order.TakerAssetAmount)
		floored := new(big.Int).Quo(numerator, order.MakerAssetAmount)
		result.QuoteValueAvailable.Add(result.QuoteValueAvailable, floored)

		exact := new(big.Rat).SetFrac(numerator, order.MakerAssetAmount)
		result.QuoteValueExact.Add(result.QuoteValueExact, exact)
	}

	return result, warnings, nil
}

// validateAmounts rejects nil or negative amounts anywhere in the batch,
// identifying the offending index and field.
func validateAmounts(batch OrderBatch) error {
	for i, order := range batch.Orders {
		if err := checkAmount(order.MakerAssetAmount, i, "makerAssetAmount"); err != nil {
			return err
		}
		if err := checkAmount(order.TakerAssetAmount, i, "takerAssetAmount"); err != nil {
			return err
		}
		if err := checkAmount(batch.RemainingFillableMakerAmounts[i], i, "remainingFillableMakerAmount"); err != nil {
			return err
		}
	}
	return nil
}

func checkAmount(amount *big.Int, index int, field string) error {
	if amount == nil {
		return apperror.Validation(apperror.CodeInvalidAmount,
			fmt.Sprintf("%s is nil at order %d", field, index))
	}
	if amount.Sign() < 0 {
		return apperror.Validation(apperror.CodeInvalidAmount,
			fmt.Sprintf("%s is negative at order %d: %s", field, index, amount))
	}
	return nil
}
