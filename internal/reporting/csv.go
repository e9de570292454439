package reporting

import (
	"fmt"
	"strings"

	"quantsim/internal/domain"
)

// RenderOrdersCSV renders an order log as CSV string.
func RenderOrdersCSV(orders []*domain.OrderRecord) string {
	var sb strings.Builder

	sb.WriteString("run_id,step,column,attempt,side,requested_size,filled_size,")
	sb.WriteString("price,fill_price,fees,status,reason\n")

	for _, o := range orders {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%s,%.8f,%.8f,%.8f,%.8f,%.8f,%s,%s\n",
			o.RunID, o.Step, o.Column, o.Attempt, o.Side,
			o.RequestedSize, o.FilledSize, o.Price, o.FillPrice, o.Fees,
			o.Status, o.Reason,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders a trade log as CSV string.
func RenderTradesCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,column,direction,size,entry_step,entry_price,entry_fees,")
	sb.WriteString("exit_step,exit_price,exit_fees,pnl,return,status,exit_reason\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%.8f,%d,%.8f,%.8f,%d,%.8f,%.8f,%.8f,%.8f,%s,%s\n",
			t.TradeID, t.RunID, t.Column, t.Direction, t.Size,
			t.EntryStep, t.EntryPrice, t.EntryFees,
			t.ExitStep, t.ExitPrice, t.ExitFees,
			t.PnL, t.Return, t.Status, t.ExitReason,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders an equity curve as CSV string.
func RenderEquityCSV(points []*domain.EquityPoint) string {
	var sb strings.Builder

	sb.WriteString("run_id,step,column,price,cash,position,value\n")

	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%.8f,%.8f,%.8f,%.8f\n",
			p.RunID, p.Step, p.Column, p.Price, p.Cash, p.Position, p.Value,
		))
	}

	return sb.String()
}
