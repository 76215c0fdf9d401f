// Package liquidity implements the liquidity bounded context for orderbook aggregation.
package liquidity

import (
	"context"
	"time"

	blockchainDI "github.com/fd1az/liquidity-bot/business/blockchain/di"
	"github.com/fd1az/liquidity-bot/business/liquidity/app"
	liquidityDI "github.com/fd1az/liquidity-bot/business/liquidity/di"
	"github.com/fd1az/liquidity-bot/business/liquidity/infra/relayer"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/config"
	"github.com/fd1az/liquidity-bot/internal/di"
	"github.com/fd1az/liquidity-bot/internal/logger"
	"github.com/fd1az/liquidity-bot/internal/monolith"
)

// Module implements the liquidity bounded context.
type Module struct{}

// RegisterServices registers all liquidity services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register OrderSource (relayer) - private dependency
	di.RegisterToken(c, liquidityDI.OrderSource, func(sr di.ServiceRegistry) app.OrderSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		quote, ok := registry.GetBySymbolAndChain(cfg.Relayer.QuoteAsset, asset.ChainIDEthereum)
		if !ok {
			panic("unknown quote asset: " + cfg.Relayer.QuoteAsset)
		}

		assetIDs := make([]asset.AssetID, 0, len(cfg.Liquidity.Assets))
		for _, sym := range cfg.Liquidity.Assets {
			a, ok := registry.GetBySymbolAndChain(sym, asset.ChainIDEthereum)
			if !ok {
				panic("unknown tracked asset: " + sym)
			}
			assetIDs = append(assetIDs, a.ID())
		}

		providerCfg := relayer.ProviderConfig{
			WebSocketURL:   cfg.Relayer.WebSocketURL,
			HTTPURL:        cfg.Relayer.HTTPURL,
			QuoteAsset:     quote,
			Assets:         assetIDs,
			OrderbookDepth: cfg.Relayer.OrderbookDepth,
			RequestsPerMin: cfg.Relayer.RequestsPerMin,
			StaleTimeout:   cfg.Relayer.StaleTimeout,
			EnableFallback: true,
		}

		provider, err := relayer.NewProvider(providerCfg, log)
		if err != nil {
			panic("failed to create relayer provider: " + err.Error())
		}
		return provider
	})

	// Register AssetChecker - backed by the blockchain context's inspector
	di.RegisterToken(c, liquidityDI.AssetChecker, func(sr di.ServiceRegistry) app.AssetChecker {
		return blockchainDI.GetTokenInspector(sr)
	})

	// Register LiquidityService (public - exposed to other modules)
	di.RegisterToken(c, liquidityDI.LiquidityService, func(sr di.ServiceRegistry) *app.LiquidityService {
		log := sr.Get("logger").(logger.LoggerInterface)
		source := liquidityDI.GetOrderSource(sr)
		checker := liquidityDI.GetAssetChecker(sr)

		svc, err := app.NewLiquidityService(source, checker, log)
		if err != nil {
			panic("failed to create liquidity service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup initializes the liquidity module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Connect the relayer feed (don't fail if connection fails - will retry)
	source := liquidityDI.GetOrderSource(mono.Services())
	if connector, ok := source.(interface{ Connect(context.Context) error }); ok {
		// Try to connect with a short timeout - don't block startup
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := connector.Connect(connectCtx); err != nil {
			log.Warn(ctx, "relayer connection failed, will retry in background", "error", err)
			// Start background connection retry
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-time.After(5 * time.Second):
						if err := connector.Connect(ctx); err != nil {
							log.Warn(ctx, "relayer retry failed", "error", err)
						} else {
							log.Info(ctx, "relayer connected successfully")
							return
						}
					}
				}
			}()
		}
	}

	log.Info(ctx, "liquidity module started")
	return nil
}
