package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/httpclient"
	"github.com/fd1az/liquidity-bot/internal/logger"
	"github.com/fd1az/liquidity-bot/internal/ratelimit"
)

const (
	// Standard Relayer API (SRA v3) endpoints
	BaseAPIURL = "https://api.0x.org/sra/v3"

	orderbookEndpoint  = "/orderbook"
	assetPairsEndpoint = "/asset_pairs"

	httpTimeout = 10 * time.Second

	// Public SRA relayers typically allow 3 requests per second.
	defaultRequestsPerMin = 180
)

// HTTPClientConfig holds configuration for the relayer REST client.
type HTTPClientConfig struct {
	BaseURL        string        // API base URL (empty = default)
	Timeout        time.Duration // Request timeout
	RequestsPerMin int           // Client-side rate limit
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:        BaseAPIURL,
		Timeout:        httpTimeout,
		RequestsPerMin: defaultRequestsPerMin,
	}
}

// HTTPClient provides SRA REST access for orderbook snapshots.
type HTTPClient struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
	config  HTTPClientConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewHTTPClient creates a new relayer REST client.
func NewHTTPClient(cfg HTTPClientConfig, log logger.LoggerInterface) (*HTTPClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = defaultRequestsPerMin
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("relayer"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &HTTPClient{
		client:  client,
		limiter: ratelimit.New(rpm),
		config:  cfg,
		logger:  log,
		tracer:  tracer,
	}, nil
}

// GetOrderbook fetches the orderbook for a base/quote asset data pair. Asks
// are orders selling the base asset.
func (c *HTTPClient) GetOrderbook(ctx context.Context, baseAssetData, quoteAssetData string, perPage int) (*OrderbookResponse, error) {
	ctx, span := c.tracer.Start(ctx, "relayer.http.get_orderbook",
		trace.WithAttributes(
			attribute.String("base_asset_data", baseAssetData),
			attribute.Int("per_page", perPage),
		),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRelayerRateLimited,
			apperror.WithCause(err),
			apperror.WithContext("rate limit wait cancelled"))
	}

	if perPage <= 0 {
		perPage = 100
	}

	var result OrderbookResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "orderbook"),
		),
		httpclient.WithResponseErrorHandler(relayerErrorHandler),
	).
		SetQueryParam("baseAssetData", baseAssetData).
		SetQueryParam("quoteAssetData", quoteAssetData).
		SetQueryParam("perPage", strconv.Itoa(perPage)).
		SetResult(&result).
		Get(ctx, orderbookEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeRelayerConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch orderbook from REST API"))
	}

	if resp.IsError() {
		return nil, apperror.New(apperror.CodeRelayerAPIError,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	span.SetAttributes(
		attribute.Int("bids", len(result.Bids.Records)),
		attribute.Int("asks", len(result.Asks.Records)),
	)

	c.logger.Debug(ctx, "fetched orderbook via HTTP",
		"base_asset_data", baseAssetData,
		"bids", len(result.Bids.Records),
		"asks", len(result.Asks.Records))

	return &result, nil
}

// AssetPairsResponse is the GET /asset_pairs response.
type AssetPairsResponse struct {
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"perPage"`
	Records []AssetPair `json:"records"`
}

// AssetPair describes one tradable asset pairing.
type AssetPair struct {
	AssetDataA AssetPairSide `json:"assetDataA"`
	AssetDataB AssetPairSide `json:"assetDataB"`
}

// AssetPairSide is one side of an asset pair.
type AssetPairSide struct {
	AssetData string `json:"assetData"`
	MinAmount string `json:"minAmount"`
	MaxAmount string `json:"maxAmount"`
	Precision int    `json:"precision"`
}

// GetAssetPairs fetches the pairs the relayer trades for the given asset
// data. An empty result means the relayer does not carry the asset.
func (c *HTTPClient) GetAssetPairs(ctx context.Context, assetData string) (*AssetPairsResponse, error) {
	ctx, span := c.tracer.Start(ctx, "relayer.http.get_asset_pairs",
		trace.WithAttributes(attribute.String("asset_data", assetData)),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRelayerRateLimited,
			apperror.WithCause(err),
			apperror.WithContext("rate limit wait cancelled"))
	}

	var result AssetPairsResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "asset_pairs"),
		),
		httpclient.WithResponseErrorHandler(relayerErrorHandler),
	).
		SetQueryParam("assetDataA", assetData).
		SetResult(&result).
		Get(ctx, assetPairsEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeRelayerConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch asset pairs from REST API"))
	}

	if resp.IsError() {
		return nil, apperror.New(apperror.CodeRelayerAPIError,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	span.SetAttributes(attribute.Int("pairs", len(result.Records)))

	return &result, nil
}

// RelayerAPIError is an SRA error response.
type RelayerAPIError struct {
	Code             int    `json:"code"`
	Reason           string `json:"reason"`
	ValidationErrors []struct {
		Field  string `json:"field"`
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	} `json:"validationErrors"`
}

func (e *RelayerAPIError) Error() string {
	return fmt.Sprintf("relayer API error %d: %s", e.Code, e.Reason)
}

// relayerErrorHandler parses SRA error responses.
func relayerErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr RelayerAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
