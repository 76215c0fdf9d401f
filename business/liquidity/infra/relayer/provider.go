package relayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-bot/business/liquidity/app"
	"github.com/fd1az/liquidity-bot/business/liquidity/domain"
	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

// Ensure Provider implements OrderSource.
var _ app.OrderSource = (*Provider)(nil)

// ProviderConfig holds configuration for the relayer order source.
type ProviderConfig struct {
	WebSocketURL   string          // WebSocket URL (empty = default)
	HTTPURL        string          // REST API base URL (empty = default)
	QuoteAsset     *asset.Asset    // Asset orders are priced in (e.g. WETH)
	Assets         []asset.AssetID // Maker assets to track over the feed
	OrderbookDepth int             // Records requested per REST snapshot
	RequestsPerMin int             // REST rate limit
	StaleTimeout   time.Duration   // How long before feed data is considered stale
	EnableFallback bool            // Enable REST fallback when feed data is stale
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig(assets []asset.AssetID) ProviderConfig {
	return ProviderConfig{
		QuoteAsset:     asset.WETH,
		Assets:         assets,
		OrderbookDepth: 100,
		RequestsPerMin: defaultRequestsPerMin,
		StaleTimeout:   10 * time.Second,
		EnableFallback: true,
	}
}

// orderbookState holds the current sell orders for one maker asset.
type orderbookState struct {
	records    map[string]OrderRecord // keyed by order hash
	lastUpdate time.Time
	mu         sync.RWMutex
}

// Provider implements OrderSource over an SRA relayer. The WebSocket orders
// channel keeps per-asset order sets fresh; REST snapshots cover cold starts
// and feed gaps.
type Provider struct {
	config     ProviderConfig
	logger     logger.LoggerInterface
	client     *Client     // WebSocket client
	httpClient *HTTPClient // REST client for snapshots and fallback

	quoteAssetData string

	// Order state per maker asset data
	books   map[string]*orderbookState
	booksMu sync.RWMutex

	// Subscription request id -> maker asset data
	subsByID map[int64]string
	subsMu   sync.RWMutex

	tracer trace.Tracer
}

// NewProvider creates a new relayer order source.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.QuoteAsset == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("quote asset is required"))
	}
	if !cfg.QuoteAsset.IsToken() {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("quote asset %s is not an ERC20 token", cfg.QuoteAsset.Symbol())))
	}

	wsURL := cfg.WebSocketURL
	if wsURL == "" {
		wsURL = BaseWSURL
	}

	clientCfg := DefaultClientConfig()
	clientCfg.URL = wsURL

	client, err := NewClient(clientCfg, log)
	if err != nil {
		return nil, err
	}

	var httpClient *HTTPClient
	if cfg.EnableFallback {
		httpCfg := HTTPClientConfig{
			BaseURL:        cfg.HTTPURL,
			RequestsPerMin: cfg.RequestsPerMin,
		}
		httpClient, err = NewHTTPClient(httpCfg, log)
		if err != nil {
			log.Warn(context.Background(), "failed to create HTTP fallback client", "error", err)
			// Continue without REST fallback
		}
	}

	p := &Provider{
		config:         cfg,
		logger:         log,
		client:         client,
		httpClient:     httpClient,
		quoteAssetData: EncodeERC20AssetData(cfg.QuoteAsset.ID().Address()),
		books:          make(map[string]*orderbookState),
		subsByID:       make(map[int64]string),
		tracer:         otel.Tracer(tracerName),
	}

	for _, id := range cfg.Assets {
		if !id.IsToken() {
			continue
		}
		p.books[EncodeERC20AssetData(id.Address())] = &orderbookState{
			records: make(map[string]OrderRecord),
		}
	}

	client.OnOrderUpdate(p.handleOrderUpdate)

	return p, nil
}

// Connect establishes the feed connection and subscribes to the orders
// channel for each tracked asset.
func (p *Provider) Connect(ctx context.Context) error {
	if err := p.client.Connect(ctx); err != nil {
		return err
	}

	p.booksMu.RLock()
	makerData := make([]string, 0, len(p.books))
	for data := range p.books {
		makerData = append(makerData, data)
	}
	p.booksMu.RUnlock()

	for _, data := range makerData {
		id, err := p.client.Subscribe(ctx, data, p.quoteAssetData)
		if err != nil {
			return err
		}
		p.subsMu.Lock()
		p.subsByID[id] = data
		p.subsMu.Unlock()
	}

	return nil
}

// Close closes the provider.
func (p *Provider) Close() error {
	return p.client.Close()
}

// FetchOrders returns the current sell orders for the given maker asset,
// priced in the configured quote asset.
func (p *Provider) FetchOrders(ctx context.Context, assetID asset.AssetID) (domain.OrderBatch, error) {
	ctx, span := p.tracer.Start(ctx, "relayer.fetch_orders",
		trace.WithAttributes(attribute.String("asset_id", assetID.String())),
	)
	defer span.End()

	if !assetID.IsToken() {
		return domain.OrderBatch{}, apperror.New(apperror.CodeAssetNotSupported,
			apperror.WithContext(fmt.Sprintf("asset %s is not an ERC20 token", assetID)))
	}

	makerAssetData := EncodeERC20AssetData(assetID.Address())

	p.booksMu.RLock()
	state, ok := p.books[makerAssetData]
	p.booksMu.RUnlock()

	if ok {
		state.mu.RLock()
		isStale := time.Since(state.lastUpdate) > p.config.StaleTimeout
		hasData := len(state.records) > 0 || !state.lastUpdate.IsZero()
		var records []OrderRecord
		if !isStale && hasData {
			records = make([]OrderRecord, 0, len(state.records))
			for _, rec := range state.records {
				records = append(records, rec)
			}
		}
		state.mu.RUnlock()

		if records != nil {
			span.SetAttributes(
				attribute.Int("orders", len(records)),
				attribute.String("source", "websocket"),
			)
			return p.toBatch(records)
		}
		span.SetAttributes(attribute.Bool("stale", isStale))
	}

	if p.httpClient == nil {
		if !ok {
			return domain.OrderBatch{}, apperror.New(apperror.CodeNotFound,
				apperror.WithContext(fmt.Sprintf("asset %s not tracked and no REST fallback", assetID)))
		}
		return domain.OrderBatch{}, apperror.New(apperror.CodeCacheExpired,
			apperror.WithContext(fmt.Sprintf("orders stale for %s", assetID)))
	}

	p.logger.Debug(ctx, "fetching orderbook snapshot via REST",
		"asset", assetID.String())
	return p.fetchViaHTTP(ctx, makerAssetData, span)
}

// fetchViaHTTP takes a REST snapshot and refreshes the cached state.
func (p *Provider) fetchViaHTTP(ctx context.Context, makerAssetData string, span trace.Span) (domain.OrderBatch, error) {
	resp, err := p.httpClient.GetOrderbook(ctx, makerAssetData, p.quoteAssetData, p.config.OrderbookDepth)
	if err != nil {
		return domain.OrderBatch{}, err
	}

	// Asks sell the base asset, which is the side a buyer consumes.
	records := resp.Asks.Records

	p.booksMu.Lock()
	state, ok := p.books[makerAssetData]
	if !ok {
		state = &orderbookState{records: make(map[string]OrderRecord)}
		p.books[makerAssetData] = state
	}
	p.booksMu.Unlock()

	state.mu.Lock()
	state.records = make(map[string]OrderRecord, len(records))
	for _, rec := range records {
		state.records[rec.MetaData.OrderHash] = rec
	}
	state.lastUpdate = time.Now()
	state.mu.Unlock()

	span.SetAttributes(
		attribute.Int("orders", len(records)),
		attribute.String("source", "http_fallback"),
	)

	p.logger.Info(ctx, "orderbook snapshot via REST",
		"maker_asset_data", makerAssetData,
		"orders", len(records))

	return p.toBatch(records)
}

// toBatch converts wire records to a domain batch, dropping expired orders.
func (p *Provider) toBatch(records []OrderRecord) (domain.OrderBatch, error) {
	now := time.Now()
	live := make([]OrderRecord, 0, len(records))
	for _, rec := range records {
		if exp := rec.Order.Expiration(); !exp.After(now) {
			continue
		}
		live = append(live, rec)
	}
	return ParseOrderBatch(live)
}

// handleOrderUpdate merges feed updates into the per-asset order state.
// Fully filled or cancelled orders arrive with a zero remaining amount and
// are dropped from the book.
func (p *Provider) handleOrderUpdate(requestID int64, records []OrderRecord) {
	ctx := context.Background()

	p.subsMu.RLock()
	makerAssetData, ok := p.subsByID[requestID]
	p.subsMu.RUnlock()

	if !ok {
		p.logger.Debug(ctx, "order update for unknown subscription", "request_id", requestID)
		return
	}

	p.booksMu.RLock()
	state, found := p.books[makerAssetData]
	p.booksMu.RUnlock()

	if !found {
		p.logger.Debug(ctx, "order update for untracked asset", "maker_asset_data", makerAssetData)
		return
	}

	state.mu.Lock()
	for _, rec := range records {
		if rec.MetaData.RemainingFillableMakerAssetAmount == "0" {
			delete(state.records, rec.MetaData.OrderHash)
			continue
		}
		state.records[rec.MetaData.OrderHash] = rec
	}
	state.lastUpdate = time.Now()
	state.mu.Unlock()

	p.logger.Debug(ctx, "order update applied",
		"maker_asset_data", makerAssetData,
		"records", len(records))
}
