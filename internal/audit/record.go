// internal/audit/record.go
package audit

import (
	"time"

	"github.com/rovshanmuradov/solana-copybot/internal/domain"
)

// Event names one terminal outcome of a trade.
type Event string

const (
	CopyBuy       Event = "COPY_BUY"
	CopyBuyError  Event = "COPY_BUY_ERROR"
	CopySell      Event = "COPY_SELL"
	CopySellError Event = "COPY_SELL_ERROR"
	StopLossSell  Event = "STOP_LOSS_SELL"
	StopLossError Event = "STOP_LOSS_ERROR"
)

// EventFor выбирает имя события по направлению, причине и исходу сделки.
func EventFor(intent domain.TradeIntent, failed bool) Event {
	if intent.Reason == domain.ReasonStopLoss {
		if failed {
			return StopLossError
		}
		return StopLossSell
	}
	switch {
	case intent.IsBuy() && failed:
		return CopyBuyError
	case intent.IsBuy():
		return CopyBuy
	case failed:
		return CopySellError
	default:
		return CopySell
	}
}

// Amounts carries the numbers of a trade. Decimal values are kept as strings
// so the log never loses precision.
type Amounts struct {
	InLamports    uint64 `json:"in_lamports"`
	WhaleLamports uint64 `json:"whale_lamports,omitempty"`
	Price         string `json:"price,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	EntryPrice    string `json:"entry_price,omitempty"`
}

// Record is one line of the audit trail.
type Record struct {
	ID                   string           `json:"id"`
	Event                Event            `json:"event"`
	Direction            domain.Direction `json:"direction"`
	TxID                 *string          `json:"txid"`
	CorrelatedSourceTxID *string          `json:"correlated_source_txid"`
	AssetID              string           `json:"asset_id"`
	Amounts              Amounts          `json:"amounts"`
	Actor                string           `json:"actor"`
	Error                *string          `json:"error"`
	Simulated            bool             `json:"simulated"`
	Timestamp            time.Time        `json:"timestamp"`
}

// NewRecord fills the fields every record derives from its intent.
func NewRecord(intent domain.TradeIntent, actor string, failed bool) Record {
	return Record{
		Event:                EventFor(intent, failed),
		Direction:            intent.Direction,
		CorrelatedSourceTxID: optional(intent.CorrelatedSourceTxID),
		AssetID:              intent.AssetID,
		Amounts: Amounts{
			InLamports:    intent.AmountIn,
			WhaleLamports: intent.WhaleLamports,
		},
		Actor: actor,
	}
}

// WithTx sets the transaction id.
func (r Record) WithTx(txID string) Record {
	r.TxID = optional(txID)
	return r
}

// WithError sets the error text.
func (r Record) WithError(err error) Record {
	if err != nil {
		msg := err.Error()
		r.Error = &msg
	}
	return r
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
