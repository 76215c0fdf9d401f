package domain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/liquidity-bot/internal/asset"
)

func TestLiquiditySnapshot_UnitPrice(t *testing.T) {
	// 2 ZRX buyable for 1 WETH total, both 18-decimal assets.
	tokens := new(big.Int).Mul(big.NewInt(2), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	quote := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	s := NewLiquiditySnapshot(asset.ZRX, asset.WETH, 100, tokens, quote, new(big.Rat).SetInt(quote))

	if !s.HasLiquidity() {
		t.Fatal("expected HasLiquidity to be true")
	}
	if got := s.UnitPrice().String(); got != "0.5" {
		t.Errorf("UnitPrice = %s, want 0.5", got)
	}
	if got := s.Pair(); got != "ZRX/WETH" {
		t.Errorf("Pair = %s, want ZRX/WETH", got)
	}
	if got := s.Price().Rate(); !got.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Price rate = %s, want 0.5", got)
	}
}

func TestLiquiditySnapshot_Empty(t *testing.T) {
	s := NewLiquiditySnapshot(asset.ZRX, asset.WETH, 100, new(big.Int), new(big.Int), new(big.Rat))

	if s.HasLiquidity() {
		t.Error("expected no liquidity")
	}
	if !s.UnitPrice().IsZero() {
		t.Errorf("UnitPrice = %s, want 0", s.UnitPrice())
	}
}

func TestLiquiditySnapshot_Amounts(t *testing.T) {
	tokens := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	s := NewLiquiditySnapshot(asset.ZRX, asset.WETH, 7, tokens, big.NewInt(0), new(big.Rat))

	if got := s.Tokens().StringFixed(2); got != "1.00" {
		t.Errorf("Tokens = %s, want 1.00", got)
	}
	if s.Tokens().Asset() != asset.ZRX {
		t.Error("Tokens amount carries wrong asset")
	}
	if s.QuoteValue().Asset() != asset.WETH {
		t.Error("QuoteValue amount carries wrong asset")
	}
}
