// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/liquidity-bot/business/blockchain/app"
	"github.com/fd1az/liquidity-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")

	// TokenInspector backs the liquidity module's asset checks.
	TokenInspector = di.NewToken[app.TokenInspector]("blockchain.TokenInspector")
)

// Private dependency tokens - internal to blockchain module
var (
	BlockSubscriber = di.NewToken[app.BlockSubscriber]("blockchain:blockSubscriber")
)

// Helper functions for type-safe access
func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetBlockSubscriber(c di.ServiceRegistry) app.BlockSubscriber {
	return di.GetToken(c, BlockSubscriber)
}

func GetTokenInspector(c di.ServiceRegistry) app.TokenInspector {
	return di.GetToken(c, TokenInspector)
}
