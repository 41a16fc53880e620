// Package symbols конвертирует обозначения торговых пар между форматом
// торгового движка (BTCUSDT) и форматом биржи (BTC/USDT).
package symbols

import "strings"

// Delimiter - разделитель базовой и котируемой валюты в биржевом формате
const Delimiter = "/"

// knownQuotes - известные котируемые валюты в порядке приоритета.
// Порядок важен: USDT проверяется раньше USD, иначе BTCUSDT
// был бы ошибочно разбит как BTCUSD + T.
var knownQuotes = []string{"USDT", "USD", "BTC", "ETH", "BNB", "BUSD"}

// Format приводит символ к биржевому формату (BTCUSDT -> BTC/USDT).
//
// Правила:
// - Если разделитель уже есть, символ возвращается без изменений
// - Иначе перебираются известные котируемые валюты как суффиксы
// - Если ни одна не подошла, символ возвращается как есть
//   (best-effort: запрос к бирже с таким символом скорее всего упадёт)
func Format(symbol string) string {
	if strings.Contains(symbol, Delimiter) {
		return symbol
	}

	for _, quote := range knownQuotes {
		if len(symbol) > len(quote) && strings.HasSuffix(symbol, quote) {
			base := symbol[:len(symbol)-len(quote)]
			return base + Delimiter + quote
		}
	}

	return symbol
}

// Join выполняет обратное преобразование (BTC/USDT -> BTCUSDT)
func Join(symbol string) string {
	return strings.ReplaceAll(symbol, Delimiter, "")
}

// Base возвращает базовую валюту пары (BTC/USDT -> BTC).
// Для символа без разделителя возвращается пустая строка.
func Base(symbol string) string {
	base, _, ok := strings.Cut(symbol, Delimiter)
	if !ok {
		return ""
	}
	return base
}

// Quote возвращает котируемую валюту пары (BTC/USDT -> USDT).
// Для символа без разделителя возвращается пустая строка.
func Quote(symbol string) string {
	_, quote, ok := strings.Cut(symbol, Delimiter)
	if !ok {
		return ""
	}
	return quote
}
