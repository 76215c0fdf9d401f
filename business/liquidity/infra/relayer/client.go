package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-bot/internal/apperror"
	"github.com/fd1az/liquidity-bot/internal/logger"
	"github.com/fd1az/liquidity-bot/internal/wsconn"
)

// Ensure interface compliance
var _ logger.LoggerInterface = (*logger.Logger)(nil)

const (
	tracerName = "relayer"
	meterName  = "relayer"

	// SRA WebSocket endpoint
	BaseWSURL = "wss://api.0x.org/sra/v3"
)

// ClientConfig holds configuration for the relayer WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL
	ReadTimeout  time.Duration // Read timeout
	WriteTimeout time.Duration // Write timeout
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:          BaseWSURL,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	messagesReceived metric.Int64Counter
	orderUpdates     metric.Int64Counter
	subscriptions    metric.Int64UpDownCounter
	parseErrors      metric.Int64Counter
}

// Client is an SRA orders channel WebSocket client.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	// Message handlers
	onOrderUpdate func(requestID int64, records []OrderRecord)
	handlersMu    sync.RWMutex

	// Subscription management: request id -> maker asset data filter
	subscriptions map[int64]string
	subsMu        sync.RWMutex
	nextID        atomic.Int64

	// Observability
	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a new relayer WebSocket client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = BaseWSURL
	}

	c := &Client{
		config:        cfg,
		logger:        log,
		subscriptions: make(map[int64]string),
		tracer:        otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"relayer_messages_total",
		metric.WithDescription("Total messages received"),
	)
	if err != nil {
		return err
	}

	c.metrics.orderUpdates, err = meter.Int64Counter(
		"relayer_order_updates_total",
		metric.WithDescription("Total order updates received"),
	)
	if err != nil {
		return err
	}

	c.metrics.subscriptions, err = meter.Int64UpDownCounter(
		"relayer_subscriptions",
		metric.WithDescription("Active orders channel subscriptions"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"relayer_parse_errors_total",
		metric.WithDescription("Message parse errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// OnOrderUpdate registers a handler for order update events. The request id
// identifies which subscription produced the records.
func (c *Client) OnOrderUpdate(handler func(requestID int64, records []OrderRecord)) {
	c.handlersMu.Lock()
	c.onOrderUpdate = handler
	c.handlersMu.Unlock()
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "relayer.connect",
		trace.WithAttributes(attribute.String("url", c.config.URL)),
	)
	defer span.End()

	wsCfg := wsconn.DefaultConfig(c.config.URL, "relayer")
	wsCfg.ReadTimeout = c.config.ReadTimeout
	wsCfg.WriteTimeout = c.config.WriteTimeout

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeRelayerConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}

	conn.OnMessage(c.handleMessage)
	conn.OnStateChange(c.handleStateChange)

	if err := conn.ConnectWithRetry(ctx); err != nil {
		return apperror.New(apperror.CodeRelayerConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to relayer"))
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info(ctx, "relayer client connected", "url", c.config.URL)

	return nil
}

// Subscribe opens an orders channel subscription filtered by maker asset
// data and returns the request id carried by matching updates.
func (c *Client) Subscribe(ctx context.Context, makerAssetData, takerAssetData string) (int64, error) {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return 0, apperror.New(apperror.CodeRelayerConnectionFailed,
			apperror.WithContext("not connected"))
	}

	id := c.nextID.Add(1)
	req := WSRequest{
		Type:      TypeSubscribe,
		Channel:   ChannelOrders,
		RequestID: id,
		Payload: WSRequestPayload{
			MakerAssetData: makerAssetData,
			TakerAssetData: takerAssetData,
		},
	}

	if err := conn.SendJSON(ctx, req); err != nil {
		return 0, apperror.New(apperror.CodeRelayerConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to subscribe"))
	}

	c.subsMu.Lock()
	c.subscriptions[id] = makerAssetData
	c.subsMu.Unlock()

	c.metrics.subscriptions.Add(ctx, 1)

	c.logger.Debug(ctx, "subscribed to orders channel",
		"request_id", id,
		"maker_asset_data", makerAssetData)

	return id, nil
}

// resubscribe replays all subscriptions after a reconnect.
func (c *Client) resubscribe(ctx context.Context) {
	c.subsMu.RLock()
	subs := make(map[int64]string, len(c.subscriptions))
	for id, data := range c.subscriptions {
		subs[id] = data
	}
	c.subsMu.RUnlock()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return
	}

	for id, makerAssetData := range subs {
		req := WSRequest{
			Type:      TypeSubscribe,
			Channel:   ChannelOrders,
			RequestID: id,
			Payload:   WSRequestPayload{MakerAssetData: makerAssetData},
		}
		if err := conn.SendJSON(ctx, req); err != nil {
			c.logger.Warn(ctx, "resubscribe failed", "request_id", id, "error", err)
		}
	}
}

// handleStateChange reacts to connection state transitions.
func (c *Client) handleStateChange(state wsconn.State, err error) {
	ctx := context.Background()
	if state == wsconn.StateConnected {
		c.resubscribe(ctx)
	}
	if err != nil {
		c.logger.Warn(ctx, "relayer connection state changed", "state", string(state), "error", err)
	}
}

// handleMessage processes incoming WebSocket messages.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse message", "error", err,
			"data", string(data[:min(len(data), 500)]))
		return
	}

	if msg.Channel != ChannelOrders || msg.Type != TypeUpdate {
		c.logger.Debug(ctx, "ignoring message", "channel", msg.Channel, "type", msg.Type)
		return
	}

	records, err := ParseOrderRecords(msg.Payload)
	if err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Warn(ctx, "failed to parse order update", "error", err)
		return
	}

	c.metrics.orderUpdates.Add(ctx, int64(len(records)))

	c.handlersMu.RLock()
	handler := c.onOrderUpdate
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(msg.RequestID, records)
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}
