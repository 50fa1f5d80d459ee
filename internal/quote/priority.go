// internal/quote/priority.go
package quote

import (
	"fmt"
	"strings"
)

// PriorityLevel: уровень приоритетной комиссии, который сервис котировок
// закладывает в транзакцию свапа.
type PriorityLevel string

const (
	PriorityLow      PriorityLevel = "low"
	PriorityMedium   PriorityLevel = "medium"
	PriorityHigh     PriorityLevel = "high"
	PriorityVeryHigh PriorityLevel = "veryHigh"
	PriorityExtreme  PriorityLevel = "extreme"
)

// DefaultPriorityLevel is used when none is configured.
const DefaultPriorityLevel = PriorityHigh

var priorityLevels = []PriorityLevel{PriorityLow, PriorityMedium, PriorityHigh, PriorityVeryHigh, PriorityExtreme}

// ParsePriorityLevel accepts any case ("HIGH", "veryhigh"); empty means default.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPriorityLevel, nil
	}
	for _, level := range priorityLevels {
		if strings.EqualFold(s, string(level)) {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown priority fee level: %s", s)
}

// MaxSlippageBps: 100%.
const MaxSlippageBps = 10_000

// ValidateSlippageBps checks the slippage tolerance in basis points.
func ValidateSlippageBps(bps int) error {
	if bps <= 0 || bps > MaxSlippageBps {
		return fmt.Errorf("slippage must be in (0, %d] bps, got %d", MaxSlippageBps, bps)
	}
	return nil
}
