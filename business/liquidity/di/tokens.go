// Package di contains dependency injection tokens for the liquidity context.
package di

import (
	"github.com/fd1az/liquidity-bot/business/liquidity/app"
	"github.com/fd1az/liquidity-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	LiquidityService = di.NewToken[*app.LiquidityService]("liquidity.LiquidityService")
)

// Private dependency tokens - internal to liquidity module
var (
	OrderSource  = di.NewToken[app.OrderSource]("liquidity:orderSource")
	AssetChecker = di.NewToken[app.AssetChecker]("liquidity:assetChecker")
)

// Helper functions for type-safe access
func GetLiquidityService(c di.ServiceRegistry) *app.LiquidityService {
	return di.GetToken(c, LiquidityService)
}

func GetOrderSource(c di.ServiceRegistry) app.OrderSource {
	return di.GetToken(c, OrderSource)
}

func GetAssetChecker(c di.ServiceRegistry) app.AssetChecker {
	return di.GetToken(c, AssetChecker)
}
