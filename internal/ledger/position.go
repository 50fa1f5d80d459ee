// internal/ledger/position.go
package ledger

import (
	"github.com/shopspring/decimal"
)

// Position описывает одну открытую позицию контролируемого кошелька.
// JSON-имена полей совпадают с форматом tokenMemory.json.
type Position struct {
	AverageEntryPrice decimal.Decimal `json:"buyPrice"`
	Quantity          decimal.Decimal `json:"amount"`
}

// Valid reports whether the position may be stored.
func (p Position) Valid() bool {
	return p.AverageEntryPrice.IsPositive() && p.Quantity.IsPositive()
}

// Merge возвращает позицию после докупки quantity по цене price:
// средняя цена входа взвешивается по объёму.
func (p Position) Merge(price, quantity decimal.Decimal) Position {
	total := p.Quantity.Add(quantity)
	cost := p.AverageEntryPrice.Mul(p.Quantity).Add(price.Mul(quantity))
	return Position{
		AverageEntryPrice: cost.Div(total),
		Quantity:          total,
	}
}

// StopLossThreshold returns entry price scaled by factor.
func (p Position) StopLossThreshold(factor decimal.Decimal) decimal.Decimal {
	return p.AverageEntryPrice.Mul(factor)
}
