// Package infra contains infrastructure adapters for the monitor context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fd1az/liquidity-bot/business/monitor/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out: os.Stdout,
	}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Liquidity Monitor Started")
	fmt.Fprintln(r.out, "=========================")
	return nil
}

// Report outputs a liquidity snapshot to the console.
func (r *ConsoleReporter) Report(s *domain.LiquiditySnapshot) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "LIQUIDITY  %s  (block #%d, %s)\n", s.Pair(), s.BlockNumber, s.Timestamp.Format(time.RFC3339))
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	if !s.HasLiquidity() {
		fmt.Fprintln(r.out, "  No liquidity available")
		return
	}
	fmt.Fprintf(r.out, "  Tokens available:  %s\n", s.Tokens().StringFixed(4))
	fmt.Fprintf(r.out, "  Quote value:       %s\n", s.QuoteValue().StringFixed(6))
	fmt.Fprintf(r.out, "  Avg unit price:    %s\n", s.Price().String())
}

// ReportBlock outputs a new block announcement.
func (r *ConsoleReporter) ReportBlock(number uint64, timestamp time.Time) {
	fmt.Fprintf(r.out, "[%s] block #%d\n", timestamp.Format("15:04:05"), number)
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = "connected"
		if latency > 0 {
			status = fmt.Sprintf("connected (%s)", latency)
		}
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Liquidity Monitor Stopped")
	return nil
}
