// Package app contains application services and port definitions for the monitor context.
package app

import (
	"context"
	"time"

	"github.com/fd1az/liquidity-bot/business/monitor/domain"
)

// Reporter defines the interface for publishing liquidity snapshots.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report publishes a liquidity snapshot to be displayed/logged.
	Report(snapshot *domain.LiquiditySnapshot)

	// ReportBlock announces a newly observed block.
	ReportBlock(number uint64, timestamp time.Time)

	// UpdateConnectionStatus updates a connection status display.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
