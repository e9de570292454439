package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Simulation Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run Summary
	a := r.Aggregate
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Columns | %d |\n", a.Columns))
	sb.WriteString(fmt.Sprintf("| Total Orders | %d |\n", a.TotalOrders))
	sb.WriteString(fmt.Sprintf("| Filled | %d |\n", a.FilledOrders))
	sb.WriteString(fmt.Sprintf("| Partially Filled | %d |\n", a.PartialOrders))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", a.Rejected))
	sb.WriteString(fmt.Sprintf("| No-ops | %d |\n", a.NoOps))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", a.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Open Trades | %d |\n", a.OpenTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", a.WinRate))
	sb.WriteString(fmt.Sprintf("| Total PnL | %.6f |\n", a.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Total Fees | %.6f |\n", a.TotalFees))
	sb.WriteString(fmt.Sprintf("| Final Value | %.6f |\n", a.FinalValue))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", a.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", a.MaxConsecutiveLosses))
	sb.WriteString("\n")

	// PnL Distribution
	if a.TotalTrades > a.OpenTrades {
		sb.WriteString("## PnL Distribution (closed trades)\n\n")
		sb.WriteString("| Mean | Median | P10 | P90 | Min | Max | Stddev |\n")
		sb.WriteString("|------|--------|-----|-----|-----|-----|--------|\n")
		sb.WriteString(fmt.Sprintf("| %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f |\n",
			a.MeanPnL, a.MedianPnL, a.PnLP10, a.PnLP90, a.PnLMin, a.PnLMax, a.PnLStddev))
		sb.WriteString("\n")
	}

	// Per-Column Summary
	sb.WriteString("## Columns\n\n")
	sb.WriteString("| Column | Orders | Filled | Rejected | Trades | Closed PnL | Fees | Final Value |\n")
	sb.WriteString("|--------|--------|--------|----------|--------|------------|------|-------------|\n")
	for _, c := range r.ColumnSummaries {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %.6f | %.6f | %.6f |\n",
			c.Column, c.Orders, c.Filled, c.Rejected, c.Trades, c.ClosedPnL, c.FeesPaid, c.FinalValue))
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Trade | Column | Dir | Size | Entry Step | Entry Price | Exit Step | Exit Price | PnL | Return | Status | Exit Reason |\n")
		sb.WriteString("|-------|--------|-----|------|------------|-------------|-----------|------------|-----|--------|--------|-------------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %.6f | %d | %.6f | %d | %.6f | %.6f | %.4f | %s | %s |\n",
				shortID(t.TradeID), t.Column, t.Direction, t.Size,
				t.EntryStep, t.EntryPrice, t.ExitStep, t.ExitPrice,
				t.PnL, t.Return, t.Status, t.ExitReason))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// shortID truncates hash identifiers for readability.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
