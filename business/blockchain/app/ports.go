// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/liquidity-bot/business/blockchain/domain"
	"github.com/fd1az/liquidity-bot/internal/asset"
)

// BlockSubscriber defines the interface for subscribing to new blocks.
type BlockSubscriber interface {
	// Subscribe starts listening for new blocks and returns a channel of blocks.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// State returns the current connection state.
	State() domain.ConnectionState
}

// TokenInspector defines the interface for on-chain token checks.
type TokenInspector interface {
	// IsTradable reports whether the asset is a live token contract.
	IsTradable(ctx context.Context, assetID asset.AssetID) (bool, error)

	// TokenStatus retrieves the on-chain status of a token contract.
	TokenStatus(ctx context.Context, address common.Address) (*domain.TokenStatus, error)
}
