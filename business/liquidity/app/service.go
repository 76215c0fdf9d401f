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

	"github.com/fd1az/liquidity-bot/business/liquidity/domain"
	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/liquidity-bot/business/liquidity/app"
	meterName  = "github.com/fd1az/liquidity-bot/business/liquidity/app"
)

// serviceMetrics holds OTEL metric instruments.
type serviceMetrics struct {
	queriesTotal     metric.Int64Counter
	shortCircuits    metric.Int64Counter
	degenerateOrders metric.Int64Counter
	ordersValued     metric.Int64Histogram
	queryDuration    metric.Float64Histogram
}

// LiquidityService answers liquidity queries: given a maker asset, how much
// of it is buyable right now and at what total quote cost.
type LiquidityService struct {
	source  OrderSource
	checker AssetChecker
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *serviceMetrics
}

// NewLiquidityService creates a liquidity service over the given ports.
func NewLiquidityService(source OrderSource, checker AssetChecker, log logger.LoggerInterface) (*LiquidityService, error) {
	s := &LiquidityService{
		source:  source,
		checker: checker,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

func (s *LiquidityService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.queriesTotal, err = meter.Int64Counter(
		"liquidity_queries_total",
		metric.WithDescription("Total liquidity queries"),
	)
	if err != nil {
		return err
	}

	s.metrics.shortCircuits, err = meter.Int64Counter(
		"liquidity_short_circuits_total",
		metric.WithDescription("Queries short-circuited for untradable assets"),
	)
	if err != nil {
		return err
	}

	s.metrics.degenerateOrders, err = meter.Int64Counter(
		"liquidity_degenerate_orders_total",
		metric.WithDescription("Orders skipped for zero maker amount"),
	)
	if err != nil {
		return err
	}

	s.metrics.ordersValued, err = meter.Int64Histogram(
		"liquidity_orders_valued",
		metric.WithDescription("Orders valued per query"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return err
	}

	s.metrics.queryDuration, err = meter.Float64Histogram(
		"liquidity_query_duration_ms",
		metric.WithDescription("Liquidity query duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GetLiquidity computes the available liquidity for the given maker asset.
// Untradable assets return a zero result without consulting the order
// source.
func (s *LiquidityService) GetLiquidity(ctx context.Context, assetID asset.AssetID) (domain.LiquidityResult, error) {
	ctx, span := s.tracer.Start(ctx, "liquidity.get",
		trace.WithAttributes(attribute.String("asset_id", assetID.String())),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.queryDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	s.metrics.queriesTotal.Add(ctx, 1)

	tradable, err := s.checker.IsTradable(ctx, assetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tradability check failed")
		return domain.LiquidityResult{}, apperror.Wrap(err, apperror.CodeTokenLookupFailed,
			fmt.Sprintf("tradability check for %s", assetID))
	}

	if !tradable {
		span.AddEvent("asset_not_tradable")
		span.SetStatus(codes.Ok, "short-circuited")
		s.metrics.shortCircuits.Add(ctx, 1)
		s.logger.Debug(ctx, "asset not tradable, returning zero liquidity", "asset", assetID.String())
		return domain.ZeroLiquidityResult(), nil
	}

	batch, err := s.source.FetchOrders(ctx, assetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order fetch failed")
		return domain.LiquidityResult{}, apperror.Wrap(err, apperror.CodeOrderbookFetchFailed,
			fmt.Sprintf("fetch orders for %s", assetID))
	}

	result, warnings, err := domain.ComputeLiquidity(batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		return domain.LiquidityResult{}, err
	}

	for _, w := range warnings {
		s.metrics.degenerateOrders.Add(ctx, 1)
		s.logger.Warn(ctx, "degenerate order skipped",
			"asset", assetID.String(),
			"order_index", w.OrderIndex)
	}

	s.metrics.ordersValued.Record(ctx, int64(batch.Len()))

	span.SetAttributes(
		attribute.Int("orders", batch.Len()),
		attribute.Int("degenerate_orders", len(warnings)),
		attribute.String("tokens_available", result.TokensAvailable.String()),
		attribute.String("quote_value", result.QuoteValueAvailable.String()),
	)
	span.SetStatus(codes.Ok, "computed")

	s.logger.Debug(ctx, "liquidity computed",
		"asset", assetID.String(),
		"orders", batch.Len(),
		"tokens_available", result.TokensAvailable.String(),
		"quote_value", result.QuoteValueAvailable.String())

	return result, nil
}
