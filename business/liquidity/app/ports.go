// Package app contains application services and port definitions for the liquidity context.
package app

import (
	"context"

	"github.com/fd1az/liquidity-bot/business/liquidity/domain"
	"github.com/fd1az/liquidity-bot/internal/asset"
)

// OrderSource provides the current sell orders for a maker asset together
// with each order's remaining fillable maker amount.
type OrderSource interface {
	FetchOrders(ctx context.Context, assetID asset.AssetID) (domain.OrderBatch, error)
}

// AssetChecker reports whether an asset is currently tradable. Untradable
// assets short-circuit liquidity queries to a zero result.
type AssetChecker interface {
	IsTradable(ctx context.Context, assetID asset.AssetID) (bool, error)
}
