// Package blockchain implements the blockchain bounded context for Ethereum integration.
package blockchain

import (
	"context"

	"github.com/fd1az/liquidity-bot/business/blockchain/app"
	blockchainDI "github.com/fd1az/liquidity-bot/business/blockchain/di"
	"github.com/fd1az/liquidity-bot/business/blockchain/infra/ethereum"
	"github.com/fd1az/liquidity-bot/internal/config"
	"github.com/fd1az/liquidity-bot/internal/di"
	"github.com/fd1az/liquidity-bot/internal/logger"
	"github.com/fd1az/liquidity-bot/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register BlockSubscriber (private - internal dependency)
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	// Register TokenInspector (public - backs liquidity asset checks)
	di.RegisterToken(c, blockchainDI.TokenInspector, func(sr di.ServiceRegistry) app.TokenInspector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		checkerCfg := ethereum.DefaultTokenCheckerConfig(cfg.Ethereum.HTTPURL)
		checker, err := ethereum.NewTokenChecker(checkerCfg, log)
		if err != nil {
			panic("failed to create token checker: " + err.Error())
		}
		return checker
	})

	// Register BlockchainService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		sub := blockchainDI.GetBlockSubscriber(sr)
		inspector := blockchainDI.GetTokenInspector(sr)
		return app.NewBlockchainService(sub, inspector)
	})

	return nil
}

// Startup initializes the blockchain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Connect services
	sub := blockchainDI.GetBlockSubscriber(mono.Services())
	inspector := blockchainDI.GetTokenInspector(mono.Services())

	// Connect subscriber (type assertion to access Connect method)
	if connector, ok := sub.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect block subscriber", "error", err)
			// Don't fail - will retry on Subscribe
		}
	}

	// Connect token checker
	if connector, ok := inspector.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect token checker", "error", err)
		}
	}

	log.Info(ctx, "blockchain module started")
	return nil
}
