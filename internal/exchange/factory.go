package exchange

import (
	"fmt"
	"strings"
)

// SupportedVenues - список поддерживаемых бирж
var SupportedVenues = []string{
	"binance",
	"bybit",
}

// NewClient создает привязку к бирже по имени.
// cfg применяется целиком при создании: ключи, таймауты и rate limiting
// фиксируются на время жизни привязки.
func NewClient(venue string, cfg RequestConfig) (Client, error) {
	venue = strings.ToLower(venue)

	switch venue {
	case "binance":
		return NewBinance(cfg), nil
	case "bybit":
		return NewBybit(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported venue: %s", venue)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(venue string) bool {
	venue = strings.ToLower(venue)
	for _, supported := range SupportedVenues {
		if venue == supported {
			return true
		}
	}
	return false
}
