// =============================================
// File: internal/domain/intent.go
// =============================================
// Package domain holds the small value types shared by the classifier,
// the execution pipeline and the stop-loss monitor.
package domain

import "fmt"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// FullBalance is the AmountIn sentinel for a SELL: the quote service sells
// the whole token balance of the wallet.
const FullBalance uint64 = 0

// Direction is the side of a mirrored trade.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Reason tells who produced an intent.
type Reason string

const (
	ReasonCopy     Reason = "copy"
	ReasonStopLoss Reason = "stop_loss"
)

// TradeIntent is an ephemeral request to buy or sell one asset. It is
// produced by the classifier or the stop-loss monitor and consumed once
// by the execution pipeline.
type TradeIntent struct {
	Direction            Direction
	AssetID              string
	AmountIn             uint64 // lamports for BUY, FullBalance for SELL
	InitiatingAccount    string
	CorrelatedSourceTxID string
	Reason               Reason

	// WhaleLamports is the SOL value moved by the whale transaction,
	// zero for stop-loss intents.
	WhaleLamports uint64
}

// IsBuy reports whether the intent opens or grows a position.
func (t TradeIntent) IsBuy() bool {
	return t.Direction == Buy
}

// String is used in log lines.
func (t TradeIntent) String() string {
	return fmt.Sprintf("%s %s (%s, in=%d)", t.Direction, t.AssetID, t.Reason, t.AmountIn)
}
