package reconcile

import (
	"math"

	"tradedash/src/fetcher"
	"tradedash/src/model"
)

// materializeTrade converts a stored open position that vanished from its
// broker into an immutable trade record. The P&L policy keys off the broker
// capability table: brokers that report accurate unrealized P&L get it
// carried over verbatim, everyone else gets it derived from prices.
func materializeTrade(pos model.Position) model.Trade {
	capability := fetcher.CapabilityFor(pos.Exchange)

	var pnlUSD float64
	if capability.ReportsAccurateUnrealizedPnL {
		pnlUSD = pos.UnrealizedPnlUSD
	} else {
		pnlUSD = derivePnlUSD(pos)
	}

	trade := model.Trade{
		UserID:            pos.UserID,
		Symbol:            pos.Symbol,
		Exchange:          pos.Exchange,
		AssetClass:        pos.AssetClass,
		Side:              pos.Side,
		Quantity:          pos.Quantity,
		PositionSizeUSD:   pos.PositionSizeUSD,
		EntryPrice:        pos.EntryPrice,
		ExitPrice:         exitPrice(pos),
		EntryTime:         pos.EntryTime,
		ExitTime:          pos.UpdatedAt,
		PnlUSD:            pnlUSD,
		PnlPercent:        pnlPercent(pnlUSD, pos),
		IsWinner:          pnlUSD > 0,
		ExitReason:        "Position closed (detected by sync)",
		StopLossPrice:     pos.StopLossPrice,
		TakeProfitPrice:   pos.TakeProfitPrice,
		StopLossPercent:   pos.StopLossPercent,
		TakeProfitPercent: pos.TakeProfitPercent,
		Notes:             pos.Notes,
	}

	return trade
}

// derivePnlUSD computes signed P&L from entry/exit prices. Shorts profit
// when price falls.
func derivePnlUSD(pos model.Position) float64 {
	diff := exitPrice(pos) - pos.EntryPrice
	if pos.Side == model.SideSell {
		diff = -diff
	}
	pnl := diff * pos.Quantity
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return 0
	}
	return pnl
}

// exitPrice uses the last observed price, falling back to entry when no
// quote was ever recorded.
func exitPrice(pos model.Position) float64 {
	if pos.CurrentPrice > 0 {
		return pos.CurrentPrice
	}
	return pos.EntryPrice
}

func pnlPercent(pnlUSD float64, pos model.Position) float64 {
	notional := pos.PositionSizeUSD
	if notional <= 0 {
		notional = math.Abs(pos.EntryPrice * pos.Quantity)
	}
	if notional <= 0 {
		return 0
	}
	pct := pnlUSD / notional * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}
