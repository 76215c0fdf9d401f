// Package domain contains the core domain types for the monitor context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/liquidity-bot/internal/asset"
)

// LiquiditySnapshot captures the buyable liquidity for one asset at a
// point in time, tagged with the block that triggered the refresh.
type LiquiditySnapshot struct {
	Asset       *asset.Asset
	Quote       *asset.Asset
	BlockNumber uint64
	Timestamp   time.Time

	// TokensAvailable is the total buyable amount in token base units.
	TokensAvailable *big.Int

	// QuoteValueAvailable is the total cost in quote base units.
	QuoteValueAvailable *big.Int

	// QuoteValueExact is the total cost with no truncation.
	QuoteValueExact *big.Rat
}

// NewLiquiditySnapshot creates a snapshot for the given asset and block.
func NewLiquiditySnapshot(
	a, quote *asset.Asset,
	blockNumber uint64,
	tokensAvailable, quoteValueAvailable *big.Int,
	quoteValueExact *big.Rat,
) *LiquiditySnapshot {
	return &LiquiditySnapshot{
		Asset:               a,
		Quote:               quote,
		BlockNumber:         blockNumber,
		Timestamp:           time.Now(),
		TokensAvailable:     tokensAvailable,
		QuoteValueAvailable: quoteValueAvailable,
		QuoteValueExact:     quoteValueExact,
	}
}

// Tokens returns the buyable amount as an asset Amount.
func (s *LiquiditySnapshot) Tokens() asset.Amount {
	return asset.NewAmount(s.Asset, s.TokensAvailable)
}

// QuoteValue returns the total cost as an asset Amount.
func (s *LiquiditySnapshot) QuoteValue() asset.Amount {
	return asset.NewAmount(s.Quote, s.QuoteValueAvailable)
}

// HasLiquidity reports whether any tokens are buyable.
func (s *LiquiditySnapshot) HasLiquidity() bool {
	return s.TokensAvailable != nil && s.TokensAvailable.Sign() > 0
}

// UnitPrice returns the average cost per display-unit token in quote
// display units. Display only, computed from the exact total.
func (s *LiquiditySnapshot) UnitPrice() decimal.Decimal {
	if !s.HasLiquidity() || s.QuoteValueExact == nil {
		return decimal.Zero
	}

	price := new(big.Rat).Quo(s.QuoteValueExact, new(big.Rat).SetInt(s.TokensAvailable))

	// Rebase from base-unit ratio to display-unit ratio.
	scale := new(big.Rat).SetFrac(
		new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.Asset.Decimals())), nil),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.Quote.Decimals())), nil),
	)
	price.Mul(price, scale)

	f, _ := price.Float64()
	return decimal.NewFromFloat(f)
}

// Price returns the average unit cost as an asset Price, timestamped
// with the snapshot.
func (s *LiquiditySnapshot) Price() asset.Price {
	return asset.NewPrice(s.Asset, s.Quote, s.UnitPrice(), s.Timestamp)
}

// Pair returns the display pair, e.g. "ZRX/WETH".
func (s *LiquiditySnapshot) Pair() string {
	return s.Asset.Symbol() + "/" + s.Quote.Symbol()
}
