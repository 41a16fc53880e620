package symbols

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		want   string
	}{
		{name: "flat USDT pair", symbol: "BTCUSDT", want: "BTC/USDT"},
		{name: "flat USD pair", symbol: "ETHUSD", want: "ETH/USD"},
		{name: "flat BTC pair", symbol: "ETHBTC", want: "ETH/BTC"},
		{name: "flat BNB pair", symbol: "SOLBNB", want: "SOL/BNB"},
		{name: "flat BUSD pair", symbol: "ADABUSD", want: "ADA/BUSD"},
		{name: "already formatted", symbol: "BTC/USDT", want: "BTC/USDT"},
		{name: "unknown quote returned as is", symbol: "BTCEUR", want: "BTCEUR"},
		{name: "bare quote currency returned as is", symbol: "USDT", want: "USDT"},
		{name: "empty string", symbol: "", want: ""},
		// USDT must win over USD even though both are suffix candidates
		{name: "USDT has priority over USD", symbol: "SOLUSDT", want: "SOL/USDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.symbol); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.symbol, got, tt.want)
			}
		})
	}
}

// TestFormatIdempotent verifies Format(Format(s)) == Format(s) for all inputs
func TestFormatIdempotent(t *testing.T) {
	symbols := []string{"BTCUSDT", "BTC/USDT", "ETHBTC", "BTCEUR", "", "USDT"}

	for _, s := range symbols {
		once := Format(s)
		twice := Format(once)
		if once != twice {
			t.Errorf("Format not idempotent for %q: first %q, second %q", s, once, twice)
		}
	}
}

// TestFormatRoundTrip verifies Join(Format(s)) recovers the original flat symbol
func TestFormatRoundTrip(t *testing.T) {
	symbols := []string{"BTCUSDT", "ETHUSD", "ETHBTC", "ADABUSD"}

	for _, s := range symbols {
		if got := Join(Format(s)); got != s {
			t.Errorf("Join(Format(%q)) = %q, want %q", s, got, s)
		}
	}
}

func TestBaseQuote(t *testing.T) {
	tests := []struct {
		symbol    string
		wantBase  string
		wantQuote string
	}{
		{symbol: "BTC/USDT", wantBase: "BTC", wantQuote: "USDT"},
		{symbol: "ETH/BTC", wantBase: "ETH", wantQuote: "BTC"},
		{symbol: "BTCUSDT", wantBase: "", wantQuote: ""},
	}

	for _, tt := range tests {
		if got := Base(tt.symbol); got != tt.wantBase {
			t.Errorf("Base(%q) = %q, want %q", tt.symbol, got, tt.wantBase)
		}
		if got := Quote(tt.symbol); got != tt.wantQuote {
			t.Errorf("Quote(%q) = %q, want %q", tt.symbol, got, tt.wantQuote)
		}
	}
}
