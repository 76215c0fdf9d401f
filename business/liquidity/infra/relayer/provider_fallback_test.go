package relayer

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/asset"
	"github.com/fd1az/liquidity-bot/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

// Far-future expiration so fixture orders never age out during a test run.
const testExpiration = "33120938496"

func testRecord(hash, maker, taker, remaining string) OrderRecord {
	return OrderRecord{
		Order: SignedOrder{
			MakerAssetAmount:      maker,
			TakerAssetAmount:      taker,
			ExpirationTimeSeconds: testExpiration,
			MakerAssetData:        EncodeERC20AssetData(asset.AddrZRXEthereum),
			TakerAssetData:        EncodeERC20AssetData(asset.AddrWETHEthereum),
		},
		MetaData: OrderMetadata{
			OrderHash:                         hash,
			RemainingFillableMakerAssetAmount: remaining,
		},
	}
}

// TestProvider_FallbackToHTTP tests that the provider falls back to REST
// when feed data is stale or unavailable.
func TestProvider_FallbackToHTTP(t *testing.T) {
	mockResponse := OrderbookResponse{
		Asks: PaginatedRecords{
			Total:   2,
			Page:    1,
			PerPage: 100,
			Records: []OrderRecord{
				testRecord("0xaa01", "2", "1", "2"),
				testRecord("0xaa02", "10", "10", "10"),
			},
		},
	}

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++

		base := r.URL.Query().Get("baseAssetData")
		if base != EncodeERC20AssetData(asset.AddrZRXEthereum) {
			t.Errorf("unexpected baseAssetData: %s", base)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResponse)
	}))
	defer server.Close()

	cfg := ProviderConfig{
		HTTPURL:        server.URL,
		QuoteAsset:     asset.WETH,
		Assets:         []asset.AssetID{asset.ZRX.ID()},
		OrderbookDepth: 100,
		StaleTimeout:   100 * time.Millisecond, // Very short for testing
		EnableFallback: true,
	}

	provider, err := NewProvider(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	// The feed is never connected, so the order state stays empty and
	// every query goes through the REST snapshot path first.

	ctx := context.Background()
	zrxAssetData := EncodeERC20AssetData(asset.AddrZRXEthereum)

	t.Run("fallback_when_no_feed_data", func(t *testing.T) {
		batch, err := provider.FetchOrders(ctx, asset.ZRX.ID())
		if err != nil {
			t.Fatalf("expected REST fallback to succeed, got error: %v", err)
		}

		if batch.Len() != 2 {
			t.Fatalf("batch length = %d, want 2", batch.Len())
		}

		total := new(big.Int)
		for _, f := range batch.RemainingFillableMakerAmounts {
			total.Add(total, f)
		}
		if total.Cmp(big.NewInt(12)) != 0 {
			t.Errorf("total fillable = %s, want 12", total)
		}
	})

	t.Run("fallback_when_feed_stale", func(t *testing.T) {
		provider.booksMu.RLock()
		state := provider.books[zrxAssetData]
		provider.booksMu.RUnlock()

		state.mu.Lock()
		state.records = map[string]OrderRecord{
			"0xold": testRecord("0xold", "999", "999", "999"),
		}
		state.lastUpdate = time.Now().Add(-1 * time.Hour) // Very stale
		state.mu.Unlock()

		batch, err := provider.FetchOrders(ctx, asset.ZRX.ID())
		if err != nil {
			t.Fatalf("expected REST fallback on stale data, got error: %v", err)
		}

		// Should get fresh REST data, not the stale feed data.
		for _, f := range batch.RemainingFillableMakerAmounts {
			if f.Cmp(big.NewInt(999)) == 0 {
				t.Error("stale feed record returned instead of REST snapshot")
			}
		}
	})

	t.Run("no_fallback_when_feed_fresh", func(t *testing.T) {
		provider.booksMu.RLock()
		state := provider.books[zrxAssetData]
		provider.booksMu.RUnlock()

		state.mu.Lock()
		state.records = map[string]OrderRecord{
			"0xfresh": testRecord("0xfresh", "7", "3", "5"),
		}
		state.lastUpdate = time.Now() // Fresh!
		state.mu.Unlock()

		before := requestCount
		batch, err := provider.FetchOrders(ctx, asset.ZRX.ID())
		if err != nil {
			t.Fatalf("expected success with fresh feed data, got error: %v", err)
		}

		if requestCount != before {
			t.Errorf("REST fallback used with fresh feed data: %d extra requests", requestCount-before)
		}
		if batch.Len() != 1 {
			t.Fatalf("batch length = %d, want 1", batch.Len())
		}
		if batch.RemainingFillableMakerAmounts[0].Cmp(big.NewInt(5)) != 0 {
			t.Errorf("fillable = %s, want 5", batch.RemainingFillableMakerAmounts[0])
		}
	})
}

// TestProvider_FallbackDisabled tests that REST fallback is not used when disabled.
func TestProvider_FallbackDisabled(t *testing.T) {
	cfg := ProviderConfig{
		QuoteAsset:     asset.WETH,
		Assets:         []asset.AssetID{asset.ZRX.ID()},
		StaleTimeout:   100 * time.Millisecond,
		EnableFallback: false, // Disabled!
	}

	provider, err := NewProvider(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = provider.FetchOrders(context.Background(), asset.ZRX.ID())
	if err == nil {
		t.Error("expected error when no feed data and fallback disabled, got nil")
	}
}

// TestProvider_NonTokenAsset tests that non-ERC20 assets are rejected.
func TestProvider_NonTokenAsset(t *testing.T) {
	cfg := DefaultProviderConfig([]asset.AssetID{asset.ZRX.ID()})
	provider, err := NewProvider(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = provider.FetchOrders(context.Background(), asset.ETH.ID())
	if err == nil {
		t.Fatal("expected error for native asset")
	}
	if code := apperror.GetCode(err); code != apperror.CodeAssetNotSupported {
		t.Errorf("error code = %s, want %s", code, apperror.CodeAssetNotSupported)
	}
}

// TestProvider_ExpiredOrdersDropped tests that expired orders never reach the batch.
func TestProvider_ExpiredOrdersDropped(t *testing.T) {
	cfg := ProviderConfig{
		QuoteAsset:     asset.WETH,
		Assets:         []asset.AssetID{asset.ZRX.ID()},
		StaleTimeout:   time.Minute,
		EnableFallback: false,
	}

	provider, err := NewProvider(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	expired := testRecord("0xdead", "100", "50", "100")
	expired.Order.ExpirationTimeSeconds = "1000000000" // Long past

	zrxAssetData := EncodeERC20AssetData(asset.AddrZRXEthereum)
	provider.booksMu.RLock()
	state := provider.books[zrxAssetData]
	provider.booksMu.RUnlock()

	state.mu.Lock()
	state.records = map[string]OrderRecord{
		"0xdead": expired,
		"0xlive": testRecord("0xlive", "4", "2", "4"),
	}
	state.lastUpdate = time.Now()
	state.mu.Unlock()

	batch, err := provider.FetchOrders(context.Background(), asset.ZRX.ID())
	if err != nil {
		t.Fatalf("FetchOrders failed: %v", err)
	}
	if batch.Len() != 1 {
		t.Fatalf("batch length = %d, want 1 (expired order should be dropped)", batch.Len())
	}
	if batch.Orders[0].MakerAssetAmount.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("surviving order maker = %s, want 4", batch.Orders[0].MakerAssetAmount)
	}
}

// TestProvider_OrderUpdateMerging tests feed updates merging into order state.
func TestProvider_OrderUpdateMerging(t *testing.T) {
	cfg := ProviderConfig{
		QuoteAsset:     asset.WETH,
		Assets:         []asset.AssetID{asset.ZRX.ID()},
		StaleTimeout:   time.Minute,
		EnableFallback: false,
	}

	provider, err := NewProvider(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	zrxAssetData := EncodeERC20AssetData(asset.AddrZRXEthereum)
	provider.subsMu.Lock()
	provider.subsByID[7] = zrxAssetData
	provider.subsMu.Unlock()

	// First update adds two orders.
	provider.handleOrderUpdate(7, []OrderRecord{
		testRecord("0xaa01", "2", "1", "2"),
		testRecord("0xaa02", "10", "10", "10"),
	})

	// Second update fills one order partially and removes the other.
	provider.handleOrderUpdate(7, []OrderRecord{
		testRecord("0xaa01", "2", "1", "1"),
		testRecord("0xaa02", "10", "10", "0"),
	})

	batch, err := provider.FetchOrders(context.Background(), asset.ZRX.ID())
	if err != nil {
		t.Fatalf("FetchOrders failed: %v", err)
	}
	if batch.Len() != 1 {
		t.Fatalf("batch length = %d, want 1", batch.Len())
	}
	if batch.RemainingFillableMakerAmounts[0].Cmp(big.NewInt(1)) != 0 {
		t.Errorf("fillable = %s, want 1", batch.RemainingFillableMakerAmounts[0])
	}

	// Updates for unknown subscriptions are ignored.
	provider.handleOrderUpdate(99, []OrderRecord{
		testRecord("0xzz01", "5", "5", "5"),
	})
	batch, err = provider.FetchOrders(context.Background(), asset.ZRX.ID())
	if err != nil {
		t.Fatalf("FetchOrders failed: %v", err)
	}
	if batch.Len() != 1 {
		t.Errorf("batch length = %d after unknown subscription update, want 1", batch.Len())
	}
}

// TestHTTPClient_GetOrderbook tests the REST orderbook endpoint.
func TestHTTPClient_GetOrderbook(t *testing.T) {
	mockResponse := OrderbookResponse{
		Bids: PaginatedRecords{Total: 0, Page: 1, PerPage: 100},
		Asks: PaginatedRecords{
			Total:   1,
			Page:    1,
			PerPage: 100,
			Records: []OrderRecord{testRecord("0xcc03", "100", "50", "75")},
		},
	}

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++

		if r.URL.Path != "/orderbook" {
			t.Errorf("expected path /orderbook, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("perPage"); got != "100" {
			t.Errorf("expected perPage 100, got %s", got)
		}
		if got := r.URL.Query().Get("quoteAssetData"); got != EncodeERC20AssetData(asset.AddrWETHEthereum) {
			t.Errorf("unexpected quoteAssetData: %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResponse)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create HTTP client: %v", err)
	}

	ctx := context.Background()
	book, err := client.GetOrderbook(ctx,
		EncodeERC20AssetData(asset.AddrZRXEthereum),
		EncodeERC20AssetData(asset.AddrWETHEthereum),
		100)
	if err != nil {
		t.Fatalf("GetOrderbook failed: %v", err)
	}

	if len(book.Asks.Records) != 1 {
		t.Errorf("asks = %d, want 1", len(book.Asks.Records))
	}
	if book.Asks.Records[0].MetaData.OrderHash != "0xcc03" {
		t.Errorf("order hash = %s, want 0xcc03", book.Asks.Records[0].MetaData.OrderHash)
	}
	if requestCount != 1 {
		t.Errorf("expected 1 HTTP request, got %d", requestCount)
	}
}

// TestHTTPClient_GetOrderbook_Error tests SRA error handling.
func TestHTTPClient_GetOrderbook_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"code":   100,
			"reason": "Validation Failed",
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create HTTP client: %v", err)
	}

	_, err = client.GetOrderbook(context.Background(), "0xbad", "0xbad", 100)
	if err == nil {
		t.Error("expected error for bad request, got nil")
	}
}

// TestHTTPClient_GetAssetPairs tests the asset pairs endpoint.
func TestHTTPClient_GetAssetPairs(t *testing.T) {
	mockResponse := AssetPairsResponse{
		Total:   1,
		Page:    1,
		PerPage: 100,
		Records: []AssetPair{
			{
				AssetDataA: AssetPairSide{AssetData: EncodeERC20AssetData(asset.AddrZRXEthereum)},
				AssetDataB: AssetPairSide{AssetData: EncodeERC20AssetData(asset.AddrWETHEthereum)},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/asset_pairs" {
			t.Errorf("expected path /asset_pairs, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResponse)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create HTTP client: %v", err)
	}

	pairs, err := client.GetAssetPairs(context.Background(), EncodeERC20AssetData(asset.AddrZRXEthereum))
	if err != nil {
		t.Fatalf("GetAssetPairs failed: %v", err)
	}
	if pairs.Total != 1 || len(pairs.Records) != 1 {
		t.Errorf("pairs total = %d records = %d, want 1/1", pairs.Total, len(pairs.Records))
	}
}
