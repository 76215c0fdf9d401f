package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	blockchainApp "github.com/fd1az/liquidity-bot/business/blockchain/app"
	blockchainDomain "github.com/fd1az/liquidity-bot/business/blockchain/domain"
	liquidityApp "github.com/fd1az/liquidity-bot/business/liquidity/app"
	liquidityDomain "github.com/fd1az/liquidity-bot/business/liquidity/domain"
	"github.com/fd1az/liquidity-bot/business/monitor/domain"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

type fakeSubscriber struct {
	blocks chan *blockchainDomain.Block
}

func (f *fakeSubscriber) Subscribe(ctx context.Context) (<-chan *blockchainDomain.Block, error) {
	return f.blocks, nil
}

func (f *fakeSubscriber) LatestBlock(ctx context.Context) (*blockchainDomain.Block, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSubscriber) State() blockchainDomain.ConnectionState {
	return blockchainDomain.StateConnected
}

type fakeInspector struct{}

func (f *fakeInspector) IsTradable(ctx context.Context, assetID asset.AssetID) (bool, error) {
	return true, nil
}

func (f *fakeInspector) TokenStatus(ctx context.Context, address common.Address) (*blockchainDomain.TokenStatus, error) {
	return nil, errors.New("not implemented")
}

type fakeOrderSource struct {
	batch liquidityDomain.OrderBatch
	err   error
}

func (f *fakeOrderSource) FetchOrders(ctx context.Context, assetID asset.AssetID) (liquidityDomain.OrderBatch, error) {
	return f.batch, f.err
}

type fakeChecker struct{}

func (f *fakeChecker) IsTradable(ctx context.Context, assetID asset.AssetID) (bool, error) {
	return true, nil
}

type fakeReporter struct {
	mu        sync.Mutex
	started   bool
	stopped   bool
	snapshots []*domain.LiquiditySnapshot
	blocks    []uint64
	statuses  map[string]bool
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{statuses: make(map[string]bool)}
}

func (f *fakeReporter) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeReporter) Report(s *domain.LiquiditySnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
}

func (f *fakeReporter) ReportBlock(number uint64, timestamp time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, number)
}

func (f *fakeReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[name] = connected
}

func (f *fakeReporter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeReporter) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func (f *fakeReporter) waitForSnapshots(t *testing.T, n int) []*domain.LiquiditySnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.snapshots) >= n {
			out := append([]*domain.LiquiditySnapshot(nil), f.snapshots...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d snapshots, got %d", n, f.snapshotCount())
	return nil
}

func newTestWatcher(t *testing.T, source liquidityApp.OrderSource, sub *fakeSubscriber, reporter Reporter, cfg WatcherConfig) *Watcher {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	liquiditySvc, err := liquidityApp.NewLiquidityService(source, &fakeChecker{}, log)
	if err != nil {
		t.Fatalf("NewLiquidityService failed: %v", err)
	}
	blockchainSvc := blockchainApp.NewBlockchainService(sub, &fakeInspector{})

	w, err := NewWatcher(blockchainSvc, liquiditySvc, reporter, cfg, log)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	return w
}

func testBatch() liquidityDomain.OrderBatch {
	return liquidityDomain.OrderBatch{
		Orders: []liquidityDomain.Order{
			{MakerAssetAmount: big.NewInt(2), TakerAssetAmount: big.NewInt(1)},
			{MakerAssetAmount: big.NewInt(10), TakerAssetAmount: big.NewInt(10)},
		},
		RemainingFillableMakerAmounts: []*big.Int{big.NewInt(2), big.NewInt(10)},
	}
}

func TestWatcher_SnapshotOnNewBlock(t *testing.T) {
	sub := &fakeSubscriber{blocks: make(chan *blockchainDomain.Block, 1)}
	reporter := newFakeReporter()
	w := newTestWatcher(t, &fakeOrderSource{batch: testBatch()}, sub, reporter, WatcherConfig{
		Assets: []*asset.Asset{asset.ZRX},
		Quote:  asset.WETH,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sub.blocks <- &blockchainDomain.Block{Number: 12345, Timestamp: time.Now()}

	snapshots := reporter.waitForSnapshots(t, 1)
	s := snapshots[0]

	if s.BlockNumber != 12345 {
		t.Errorf("BlockNumber = %d, want 12345", s.BlockNumber)
	}
	if s.Pair() != "ZRX/WETH" {
		t.Errorf("Pair = %s, want ZRX/WETH", s.Pair())
	}
	if s.TokensAvailable.Cmp(big.NewInt(12)) != 0 {
		t.Errorf("TokensAvailable = %s, want 12", s.TokensAvailable)
	}
	if s.QuoteValueAvailable.Cmp(big.NewInt(11)) != 0 {
		t.Errorf("QuoteValueAvailable = %s, want 11", s.QuoteValueAvailable)
	}

	reporter.mu.Lock()
	started := reporter.started
	blocks := append([]uint64(nil), reporter.blocks...)
	reporter.mu.Unlock()

	if !started {
		t.Error("reporter was not started")
	}
	if len(blocks) != 1 || blocks[0] != 12345 {
		t.Errorf("reported blocks = %v, want [12345]", blocks)
	}
}

func TestWatcher_FailedAssetSkipped(t *testing.T) {
	sub := &fakeSubscriber{blocks: make(chan *blockchainDomain.Block, 2)}
	reporter := newFakeReporter()
	source := &fakeOrderSource{err: errors.New("relayer down")}
	w := newTestWatcher(t, source, sub, reporter, WatcherConfig{
		Assets: []*asset.Asset{asset.ZRX},
		Quote:  asset.WETH,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sub.blocks <- &blockchainDomain.Block{Number: 100, Timestamp: time.Now()}

	// The block announcement still goes out even though the refresh fails.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reporter.mu.Lock()
		n := len(reporter.blocks)
		reporter.mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := reporter.snapshotCount(); got != 0 {
		t.Errorf("snapshots = %d, want 0 for failing asset", got)
	}
}

func TestWatcher_TimerRefresh(t *testing.T) {
	sub := &fakeSubscriber{blocks: make(chan *blockchainDomain.Block)}
	reporter := newFakeReporter()
	w := newTestWatcher(t, &fakeOrderSource{batch: testBatch()}, sub, reporter, WatcherConfig{
		Assets:          []*asset.Asset{asset.ZRX},
		Quote:           asset.WETH,
		RefreshInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// No blocks arrive; the timer alone drives refreshes.
	reporter.waitForSnapshots(t, 2)

	reporter.mu.Lock()
	connected, ok := reporter.statuses["ethereum"]
	reporter.mu.Unlock()
	if !ok || !connected {
		t.Error("expected ethereum connection status to be reported as connected")
	}
}

func TestWatcher_Stop(t *testing.T) {
	sub := &fakeSubscriber{blocks: make(chan *blockchainDomain.Block)}
	reporter := newFakeReporter()
	w := newTestWatcher(t, &fakeOrderSource{batch: testBatch()}, sub, reporter, WatcherConfig{
		Assets: []*asset.Asset{asset.ZRX},
		Quote:  asset.WETH,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	reporter.mu.Lock()
	stopped := reporter.stopped
	reporter.mu.Unlock()
	if !stopped {
		t.Error("reporter was not stopped")
	}
}

func TestWatcher_RequiresAssets(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	_, err := NewWatcher(nil, nil, newFakeReporter(), WatcherConfig{Quote: asset.WETH}, log)
	if err == nil {
		t.Fatal("expected error for empty asset list")
	}
}
