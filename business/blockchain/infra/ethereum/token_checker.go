package ethereum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-bot/business/blockchain/domain"
	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/cache"
	"github.com/fd1az/liquidity-bot/internal/circuitbreaker"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

// decimalsSelector is the 4-byte selector of the ERC20 decimals() call.
var decimalsSelector = []byte{0x31, 0x3c, 0xe5, 0x67}

// TokenCheckerConfig holds configuration for the token checker.
type TokenCheckerConfig struct {
	RPCURL   string        // Ethereum RPC endpoint
	CacheTTL time.Duration // How long to cache token status
}

// DefaultTokenCheckerConfig returns sensible defaults. Deployed bytecode
// rarely changes, so status is cached aggressively.
func DefaultTokenCheckerConfig(rpcURL string) TokenCheckerConfig {
	return TokenCheckerConfig{
		RPCURL:   rpcURL,
		CacheTTL: 10 * time.Minute,
	}
}

// tokenCheckerMetrics holds OTEL metric instruments.
type tokenCheckerMetrics struct {
	statusChecks     metric.Int64Counter
	untradableAssets metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
}

// TokenChecker answers whether an asset is a live ERC20 contract on chain.
type TokenChecker struct {
	config TokenCheckerConfig
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	// Caching
	statusCache    *cache.Cache[common.Address, *domain.TokenStatus]
	statusCacheTTL time.Duration

	// Circuit breaker
	cb *circuitbreaker.CircuitBreaker[[]byte]

	// Observability
	tracer  trace.Tracer
	metrics *tokenCheckerMetrics
}

// NewTokenChecker creates a new token checker instance.
func NewTokenChecker(cfg TokenCheckerConfig, log logger.LoggerInterface) (*TokenChecker, error) {
	t := &TokenChecker{
		config:         cfg,
		logger:         log,
		statusCache:    cache.New[common.Address, *domain.TokenStatus](5 * time.Minute),
		statusCacheTTL: cfg.CacheTTL,
		tracer:         otel.Tracer(tracerName),
	}

	if err := t.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	t.initCircuitBreaker()

	return t, nil
}

// initMetrics initializes OTEL metric instruments.
func (t *TokenChecker) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	t.metrics = &tokenCheckerMetrics{}

	t.metrics.statusChecks, err = meter.Int64Counter(
		"token_status_checks_total",
		metric.WithDescription("Total token status checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return err
	}

	t.metrics.untradableAssets, err = meter.Int64Counter(
		"token_untradable_total",
		metric.WithDescription("Tradability checks that found no contract"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return err
	}

	t.metrics.cacheHits, err = meter.Int64Counter(
		"token_cache_hits_total",
		metric.WithDescription("Token status cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	t.metrics.cacheMisses, err = meter.Int64Counter(
		"token_cache_misses_total",
		metric.WithDescription("Token status cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// initCircuitBreaker initializes the circuit breaker.
func (t *TokenChecker) initCircuitBreaker() {
	cfg := circuitbreaker.DefaultConfig("token-checker")
	t.cb = circuitbreaker.New[[]byte](cfg)
}

// Connect establishes connection to the Ethereum node.
func (t *TokenChecker) Connect(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "token.connect",
		trace.WithAttributes(attribute.String("url", t.config.RPCURL)),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, t.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect token checker"))
	}

	t.clientMu.Lock()
	t.client = client
	t.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	t.logger.Info(ctx, "token checker connected", "url", t.config.RPCURL)

	return nil
}

// IsTradable reports whether the asset is an ERC20 contract deployed on
// chain. Non-token assets are never tradable on the relayer.
func (t *TokenChecker) IsTradable(ctx context.Context, assetID asset.AssetID) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "token.is_tradable",
		trace.WithAttributes(attribute.String("asset_id", assetID.String())),
	)
	defer span.End()

	if !assetID.IsToken() {
		span.AddEvent("not_a_token")
		t.metrics.untradableAssets.Add(ctx, 1)
		return false, nil
	}

	status, err := t.TokenStatus(ctx, assetID.Address())
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	if !status.Deployed {
		t.metrics.untradableAssets.Add(ctx, 1)
	}

	span.SetAttributes(attribute.Bool("deployed", status.Deployed))
	return status.Deployed, nil
}

// TokenStatus retrieves the on-chain status of a token contract with caching.
func (t *TokenChecker) TokenStatus(ctx context.Context, address common.Address) (*domain.TokenStatus, error) {
	ctx, span := t.tracer.Start(ctx, "token.status",
		trace.WithAttributes(attribute.String("address", address.Hex())),
	)
	defer span.End()

	// Check cache first
	if status, found := t.statusCache.Get(ctx, address); found {
		t.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return status, nil
	}

	t.metrics.cacheMisses.Add(ctx, 1)
	t.metrics.statusChecks.Add(ctx, 1)

	t.clientMu.RLock()
	client := t.client
	t.clientMu.RUnlock()

	if client == nil {
		err := apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("token checker not connected"))
		span.RecordError(err)
		return nil, err
	}

	// Fetch bytecode through circuit breaker
	code, err := t.cb.Execute(func() ([]byte, error) {
		return client.CodeAt(ctx, address, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to fetch code at %s", address.Hex())))
	}

	status := domain.NewTokenStatus(address, code)

	if status.Deployed {
		if decimals, err := t.fetchDecimals(ctx, client, address); err == nil {
			status.Decimals = decimals
		} else {
			span.AddEvent("decimals_call_failed",
				trace.WithAttributes(attribute.String("error", err.Error())))
		}
	}

	// Update cache
	t.statusCache.Set(ctx, address, status, t.statusCacheTTL)

	span.SetAttributes(
		attribute.Bool("deployed", status.Deployed),
		attribute.Int("bytecode_size", status.BytecodeSize),
	)
	span.SetStatus(codes.Ok, "checked")

	t.logger.Debug(ctx, "token status checked",
		"address", address.Hex(),
		"deployed", status.Deployed,
		"bytecode_size", status.BytecodeSize)

	return status, nil
}

// fetchDecimals calls decimals() on the contract. The return value is a
// single uint8 right-aligned in a 32-byte word.
func (t *TokenChecker) fetchDecimals(ctx context.Context, client *ethclient.Client, address common.Address) (uint8, error) {
	msg := ethereum.CallMsg{
		To:   &address,
		Data: decimalsSelector,
	}

	ret, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("decimals() call to %s", address.Hex())))
	}
	if len(ret) != 32 {
		return 0, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("decimals() returned %d bytes", len(ret))))
	}

	return ret[31], nil
}

// Close closes the token checker.
func (t *TokenChecker) Close() error {
	t.clientMu.Lock()
	defer t.clientMu.Unlock()

	if t.client != nil {
		t.client.Close()
		t.client = nil
	}

	t.statusCache.Close()

	return nil
}
