package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/fd1az/liquidity-bot/business/blockchain/app"
	blockchainDomain "github.com/fd1az/liquidity-bot/business/blockchain/domain"
	liquidityApp "github.com/fd1az/liquidity-bot/business/liquidity/app"
	"github.com/fd1az/liquidity-bot/business/monitor/domain"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/liquidity-bot/business/monitor/app"
	meterName  = "github.com/fd1az/liquidity-bot/business/monitor/app"
)

// WatcherConfig holds configuration for the liquidity watcher.
type WatcherConfig struct {
	// Assets are the maker assets to track.
	Assets []*asset.Asset

	// Quote is the asset liquidity is valued in.
	Quote *asset.Asset

	// RefreshInterval re-runs the refresh when no block has arrived for
	// this long. Zero disables the timer and refreshes on blocks only.
	RefreshInterval time.Duration
}

// watcherMetrics holds OTEL metric instruments.
type watcherMetrics struct {
	refreshesTotal  metric.Int64Counter
	refreshErrors   metric.Int64Counter
	refreshDuration metric.Float64Histogram
}

// Watcher drives liquidity refreshes off new blocks and publishes
// snapshots through a Reporter.
type Watcher struct {
	blockchain *blockchainApp.BlockchainService
	liquidity  *liquidityApp.LiquidityService
	reporter   Reporter
	config     WatcherConfig
	logger     logger.LoggerInterface

	tracer  trace.Tracer
	metrics *watcherMetrics
}

// NewWatcher creates a liquidity Watcher.
func NewWatcher(
	blockchain *blockchainApp.BlockchainService,
	liquidity *liquidityApp.LiquidityService,
	reporter Reporter,
	config WatcherConfig,
	log logger.LoggerInterface,
) (*Watcher, error) {
	if len(config.Assets) == 0 {
		return nil, fmt.Errorf("watcher requires at least one tracked asset")
	}
	if config.Quote == nil {
		return nil, fmt.Errorf("watcher requires a quote asset")
	}

	w := &Watcher{
		blockchain: blockchain,
		liquidity:  liquidity,
		reporter:   reporter,
		config:     config,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}

	if err := w.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return w, nil
}

func (w *Watcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	w.metrics = &watcherMetrics{}

	w.metrics.refreshesTotal, err = meter.Int64Counter(
		"monitor_refreshes_total",
		metric.WithDescription("Total liquidity refresh cycles"),
	)
	if err != nil {
		return err
	}

	w.metrics.refreshErrors, err = meter.Int64Counter(
		"monitor_refresh_errors_total",
		metric.WithDescription("Per-asset refresh failures"),
	)
	if err != nil {
		return err
	}

	w.metrics.refreshDuration, err = meter.Float64Histogram(
		"monitor_refresh_duration_ms",
		metric.WithDescription("Liquidity refresh cycle duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Start begins the watch loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "starting liquidity watcher",
		"assets", len(w.config.Assets),
		"quote", w.config.Quote.Symbol())

	blocks, err := w.blockchain.SubscribeBlocks(ctx)
	if err != nil {
		return err
	}

	if err := w.reporter.Start(ctx); err != nil {
		return err
	}

	go w.run(ctx, blocks)

	return nil
}

func (w *Watcher) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	var tick <-chan time.Time
	if w.config.RefreshInterval > 0 {
		ticker := time.NewTicker(w.config.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var lastBlock uint64

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "watcher stopping", "reason", ctx.Err())
			return
		case block := <-blocks:
			if block == nil {
				continue
			}
			lastBlock = block.Number
			w.reporter.ReportBlock(block.Number, block.Timestamp)
			w.refresh(ctx, block.Number)
		case <-tick:
			w.publishConnectionStatus()
			w.refresh(ctx, lastBlock)
		}
	}
}

func (w *Watcher) publishConnectionStatus() {
	state := w.blockchain.ConnectionState()
	w.reporter.UpdateConnectionStatus("ethereum", state == blockchainDomain.StateConnected, 0)
}

// refresh queries liquidity for every tracked asset and publishes one
// snapshot per asset. A failing asset is logged and skipped so the
// remaining assets still refresh.
func (w *Watcher) refresh(ctx context.Context, blockNumber uint64) {
	ctx, span := w.tracer.Start(ctx, "monitor.refresh",
		trace.WithAttributes(attribute.Int64("block_number", int64(blockNumber))),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		w.metrics.refreshDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	w.metrics.refreshesTotal.Add(ctx, 1)

	var failed int
	for _, a := range w.config.Assets {
		result, err := w.liquidity.GetLiquidity(ctx, a.ID())
		if err != nil {
			failed++
			w.metrics.refreshErrors.Add(ctx, 1)
			w.logger.Error(ctx, "liquidity refresh failed",
				"asset", a.Symbol(),
				"block", blockNumber,
				"error", err)
			continue
		}

		snapshot := domain.NewLiquiditySnapshot(
			a, w.config.Quote, blockNumber,
			result.TokensAvailable,
			result.QuoteValueAvailable,
			result.QuoteValueExact,
		)
		w.reporter.Report(snapshot)

		w.logger.Debug(ctx, "snapshot published",
			"pair", snapshot.Pair(),
			"block", blockNumber,
			"tokens_available", snapshot.Tokens().String(),
			"quote_value", snapshot.QuoteValue().String())
	}

	span.SetAttributes(
		attribute.Int("assets", len(w.config.Assets)),
		attribute.Int("failed", failed),
	)
	if failed == len(w.config.Assets) {
		span.SetStatus(codes.Error, "all assets failed")
		return
	}
	span.SetStatus(codes.Ok, "refreshed")
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.logger.Info(context.Background(), "stopping liquidity watcher")
	return w.reporter.Stop()
}
