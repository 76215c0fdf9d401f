package infra

import (
	"context"
	"time"

	"github.com/fd1az/liquidity-bot/business/monitor/domain"
	"github.com/fd1az/liquidity-bot/pkg/ui"
)

// TUIReporter implements Reporter by forwarding events to the Bubble Tea
// dashboard. The UI program itself is owned by the cmd layer; this
// adapter only sends messages.
type TUIReporter struct{}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start signals the dashboard that monitoring is live.
func (r *TUIReporter) Start(ctx context.Context) error {
	ui.Send(ui.LogMsg{Level: "info", Message: "liquidity monitor started"})
	return nil
}

// Report forwards a liquidity snapshot to the dashboard.
func (r *TUIReporter) Report(s *domain.LiquiditySnapshot) {
	ui.Send(ui.LiquidityMsg{Snapshot: s})
}

// ReportBlock forwards a new block announcement to the dashboard.
func (r *TUIReporter) ReportBlock(number uint64, timestamp time.Time) {
	ui.Send(ui.BlockMsg{Number: number, Timestamp: timestamp})
}

// UpdateConnectionStatus forwards a connection status change to the dashboard.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	ui.Send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// Stop signals the dashboard that monitoring stopped.
func (r *TUIReporter) Stop() error {
	ui.Send(ui.LogMsg{Level: "info", Message: "liquidity monitor stopped"})
	return nil
}
