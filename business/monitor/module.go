// Package monitor implements the monitor bounded context for liquidity reporting.
package monitor

import (
	"context"

	blockchainDI "github.com/fd1az/liquidity-bot/business/blockchain/di"
	liquidityDI "github.com/fd1az/liquidity-bot/business/liquidity/di"
	"github.com/fd1az/liquidity-bot/business/monitor/app"
	monitorDI "github.com/fd1az/liquidity-bot/business/monitor/di"
	"github.com/fd1az/liquidity-bot/business/monitor/infra"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/config"
	"github.com/fd1az/liquidity-bot/internal/di"
	"github.com/fd1az/liquidity-bot/internal/logger"
	"github.com/fd1az/liquidity-bot/internal/monolith"
)

// Module implements the monitor bounded context.
type Module struct{}

// RegisterServices registers all monitor services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Reporter - TUI or console depending on run mode
	di.RegisterToken(c, monitorDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Liquidity.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	// Register Watcher (public - started by the cmd layer)
	di.RegisterToken(c, monitorDI.Watcher, func(sr di.ServiceRegistry) *app.Watcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		quote, ok := registry.GetBySymbolAndChain(cfg.Relayer.QuoteAsset, asset.ChainIDEthereum)
		if !ok {
			panic("unknown quote asset: " + cfg.Relayer.QuoteAsset)
		}

		assets := make([]*asset.Asset, 0, len(cfg.Liquidity.Assets))
		for _, sym := range cfg.Liquidity.Assets {
			a, ok := registry.GetBySymbolAndChain(sym, asset.ChainIDEthereum)
			if !ok {
				panic("unknown tracked asset: " + sym)
			}
			assets = append(assets, a)
		}

		watcherCfg := app.WatcherConfig{
			Assets:          assets,
			Quote:           quote,
			RefreshInterval: cfg.Liquidity.RefreshInterval,
		}

		watcher, err := app.NewWatcher(
			blockchainDI.GetBlockchainService(sr),
			liquidityDI.GetLiquidityService(sr),
			monitorDI.GetReporter(sr),
			watcherCfg,
			log,
		)
		if err != nil {
			panic("failed to create watcher: " + err.Error())
		}
		return watcher
	})

	return nil
}

// Startup initializes the monitor module. The watch loop itself is
// started by the cmd layer once all modules are up.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "monitor module started")
	return nil
}
