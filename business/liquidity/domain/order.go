// Package domain contains the core domain types for the liquidity context.
package domain

import "math/big"

// Order is an immutable sell order offering a fixed amount of the maker
// asset in exchange for a fixed amount of the taker (quote) asset. Both
// amounts are token base units. Orders are opaque beyond these two fields
// for liquidity valuation.
type Order struct {
	MakerAssetAmount *big.Int
	TakerAssetAmount *big.Int
}

// NewOrder creates an order with defensive copies of both amounts.
func NewOrder(makerAssetAmount, takerAssetAmount *big.Int) Order {
	return Order{
		MakerAssetAmount: new(big.Int).Set(makerAssetAmount),
		TakerAssetAmount: new(big.Int).Set(takerAssetAmount),
	}
}

// OrderBatch pairs a set of orders with each order's remaining fillable
// maker amount, aligned by index. Both slices must have the same length;
// an empty batch values to zero liquidity.
type OrderBatch struct {
	Orders                        []Order
	RemainingFillableMakerAmounts []*big.Int
}

// Len returns the number of orders in the batch.
func (b OrderBatch) Len() int {
	return len(b.Orders)
}
