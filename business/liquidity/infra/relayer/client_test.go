package relayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/liquidity-bot/internal/asset"
)

// TestClient_ResubscribeAfterReconnect drops the connection right after the
// first subscribe and verifies the subscription is replayed, with the same
// request id, once the feed comes back.
func TestClient_ResubscribeAfterReconnect(t *testing.T) {
	var accepts atomic.Int32
	replayed := make(chan WSRequest, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := accepts.Add(1)
		ctx := context.Background()

		_, data, err := conn.Read(ctx)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "")
			return
		}
		var req WSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			conn.Close(websocket.StatusInternalError, "")
			return
		}

		if n == 1 {
			// Kill the first connection right after the subscribe.
			conn.Close(websocket.StatusInternalError, "dropped")
			return
		}

		select {
		case replayed <- req:
		default:
		}

		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewClient(ClientConfig{
		URL:          wsURL,
		WriteTimeout: time.Second,
	}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	makerAssetData := EncodeERC20AssetData(asset.AddrZRXEthereum)
	id, err := client.Subscribe(ctx, makerAssetData, "")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	select {
	case req := <-replayed:
		if req.Type != TypeSubscribe || req.Channel != ChannelOrders {
			t.Errorf("replayed message = %s/%s, want %s/%s",
				req.Type, req.Channel, TypeSubscribe, ChannelOrders)
		}
		if req.RequestID != id {
			t.Errorf("replayed request id = %d, want %d", req.RequestID, id)
		}
		if req.Payload.MakerAssetData != makerAssetData {
			t.Errorf("replayed maker asset data = %s, want %s",
				req.Payload.MakerAssetData, makerAssetData)
		}
	case <-time.After(8 * time.Second):
		t.Fatalf("subscription was not replayed after reconnect (accepts=%d)", accepts.Load())
	}
}
