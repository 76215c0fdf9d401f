package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/fd1az/liquidity-bot/business/liquidity/domain"
	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

type fakeOrderSource struct {
	batch domain.OrderBatch
	err   error
	calls int
}

func (f *fakeOrderSource) FetchOrders(ctx context.Context, assetID asset.AssetID) (domain.OrderBatch, error) {
	f.calls++
	return f.batch, f.err
}

type fakeAssetChecker struct {
	tradable bool
	err      error
}

func (f *fakeAssetChecker) IsTradable(ctx context.Context, assetID asset.AssetID) (bool, error) {
	return f.tradable, f.err
}

func newTestService(t *testing.T, source OrderSource, checker AssetChecker) *LiquidityService {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	svc, err := NewLiquidityService(source, checker, log)
	if err != nil {
		t.Fatalf("NewLiquidityService failed: %v", err)
	}
	return svc
}

func TestGetLiquidity_AggregatesOrders(t *testing.T) {
	source := &fakeOrderSource{
		batch: domain.OrderBatch{
			Orders: []domain.Order{
				{MakerAssetAmount: big.NewInt(2), TakerAssetAmount: big.NewInt(1)},
				{MakerAssetAmount: big.NewInt(10), TakerAssetAmount: big.NewInt(10)},
			},
			RemainingFillableMakerAmounts: []*big.Int{big.NewInt(2), big.NewInt(10)},
		},
	}
	svc := newTestService(t, source, &fakeAssetChecker{tradable: true})

	result, err := svc.GetLiquidity(context.Background(), asset.ZRX.ID())
	if err != nil {
		t.Fatalf("GetLiquidity failed: %v", err)
	}

	if got := result.TokensAvailable; got.Cmp(big.NewInt(12)) != 0 {
		t.Errorf("TokensAvailable = %s, want 12", got)
	}
	if got := result.QuoteValueAvailable; got.Cmp(big.NewInt(11)) != 0 {
		t.Errorf("QuoteValueAvailable = %s, want 11", got)
	}
}

func TestGetLiquidity_UntradableAssetShortCircuits(t *testing.T) {
	source := &fakeOrderSource{}
	svc := newTestService(t, source, &fakeAssetChecker{tradable: false})

	result, err := svc.GetLiquidity(context.Background(), asset.ZRX.ID())
	if err != nil {
		t.Fatalf("GetLiquidity failed: %v", err)
	}

	if result.TokensAvailable.Sign() != 0 || result.QuoteValueAvailable.Sign() != 0 {
		t.Errorf("expected zero result, got tokens=%s quote=%s",
			result.TokensAvailable, result.QuoteValueAvailable)
	}
	if source.calls != 0 {
		t.Errorf("order source called %d times, want 0", source.calls)
	}
}

func TestGetLiquidity_CheckerErrorPropagates(t *testing.T) {
	source := &fakeOrderSource{}
	svc := newTestService(t, source, &fakeAssetChecker{err: errors.New("rpc down")})

	_, err := svc.GetLiquidity(context.Background(), asset.ZRX.ID())
	if err == nil {
		t.Fatal("expected error")
	}
	if source.calls != 0 {
		t.Errorf("order source called %d times, want 0", source.calls)
	}
}

func TestGetLiquidity_SourceErrorPropagates(t *testing.T) {
	source := &fakeOrderSource{err: errors.New("relayer unavailable")}
	svc := newTestService(t, source, &fakeAssetChecker{tradable: true})

	_, err := svc.GetLiquidity(context.Background(), asset.ZRX.ID())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apperror.GetCode(err); code != apperror.CodeOrderbookFetchFailed {
		t.Errorf("error code = %s, want %s", code, apperror.CodeOrderbookFetchFailed)
	}
}

func TestGetLiquidity_InvalidBatchFailsQuery(t *testing.T) {
	source := &fakeOrderSource{
		batch: domain.OrderBatch{
			Orders: []domain.Order{
				{MakerAssetAmount: big.NewInt(2), TakerAssetAmount: big.NewInt(1)},
			},
			RemainingFillableMakerAmounts: nil,
		},
	}
	svc := newTestService(t, source, &fakeAssetChecker{tradable: true})

	_, err := svc.GetLiquidity(context.Background(), asset.ZRX.ID())
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apperror.GetCode(err); code != apperror.CodeInvalidInput {
		t.Errorf("error code = %s, want %s", code, apperror.CodeInvalidInput)
	}
}

func TestGetLiquidity_DegenerateOrdersDoNotFail(t *testing.T) {
	source := &fakeOrderSource{
		batch: domain.OrderBatch{
			Orders: []domain.Order{
				{MakerAssetAmount: big.NewInt(0), TakerAssetAmount: big.NewInt(5)},
				{MakerAssetAmount: big.NewInt(10), TakerAssetAmount: big.NewInt(10)},
			},
			RemainingFillableMakerAmounts: []*big.Int{big.NewInt(3), big.NewInt(10)},
		},
	}
	svc := newTestService(t, source, &fakeAssetChecker{tradable: true})

	result, err := svc.GetLiquidity(context.Background(), asset.ZRX.ID())
	if err != nil {
		t.Fatalf("GetLiquidity failed: %v", err)
	}
	if got := result.TokensAvailable; got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("TokensAvailable = %s, want 10", got)
	}
}
