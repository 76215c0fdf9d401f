package ethereum

import (
	"context"
	"io"
	"testing"

	"github.com/fd1az/liquidity-bot/business/blockchain/domain"
	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

func newTestChecker(t *testing.T) *TokenChecker {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	checker, err := NewTokenChecker(DefaultTokenCheckerConfig("http://localhost:8545"), log)
	if err != nil {
		t.Fatalf("NewTokenChecker failed: %v", err)
	}
	t.Cleanup(func() { checker.Close() })
	return checker
}

func TestTokenChecker_NativeAssetNeverTradable(t *testing.T) {
	checker := newTestChecker(t)

	// ETH is a native asset, not an ERC20. No RPC call is needed, so
	// this works without a connection.
	tradable, err := checker.IsTradable(context.Background(), asset.ETH.ID())
	if err != nil {
		t.Fatalf("IsTradable failed: %v", err)
	}
	if tradable {
		t.Error("native asset reported as tradable")
	}
}

func TestTokenChecker_NotConnected(t *testing.T) {
	checker := newTestChecker(t)

	_, err := checker.TokenStatus(context.Background(), asset.AddrZRXEthereum)
	if err == nil {
		t.Fatal("expected error when not connected")
	}
	if code := apperror.GetCode(err); code != apperror.CodeEthereumConnectionFailed {
		t.Errorf("error code = %s, want %s", code, apperror.CodeEthereumConnectionFailed)
	}
}

func TestNewTokenStatus(t *testing.T) {
	deployed := domain.NewTokenStatus(asset.AddrZRXEthereum, []byte{0x60, 0x80})
	if !deployed.Deployed {
		t.Error("contract with bytecode reported as not deployed")
	}
	if deployed.BytecodeSize != 2 {
		t.Errorf("BytecodeSize = %d, want 2", deployed.BytecodeSize)
	}

	empty := domain.NewTokenStatus(asset.AddrZRXEthereum, nil)
	if empty.Deployed {
		t.Error("address with no bytecode reported as deployed")
	}
}
