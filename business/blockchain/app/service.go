// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/liquidity-bot/business/blockchain/domain"
	"github.com/fd1az/liquidity-bot/internal/asset"
)

// BlockchainService coordinates blockchain interactions.
type BlockchainService struct {
	subscriber BlockSubscriber
	inspector  TokenInspector
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(subscriber BlockSubscriber, inspector TokenInspector) *BlockchainService {
	return &BlockchainService{
		subscriber: subscriber,
		inspector:  inspector,
	}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock retrieves the most recent block.
func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// IsTokenTradable reports whether the asset is a live token contract.
func (s *BlockchainService) IsTokenTradable(ctx context.Context, assetID asset.AssetID) (bool, error) {
	return s.inspector.IsTradable(ctx, assetID)
}

// TokenStatus retrieves the on-chain status of a token contract.
func (s *BlockchainService) TokenStatus(ctx context.Context, address common.Address) (*domain.TokenStatus, error) {
	return s.inspector.TokenStatus(ctx, address)
}

// ConnectionState returns the current connection state.
func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}
