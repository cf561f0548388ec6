package interfaces

type OHLCV struct {
	Open   float64 `json:"open,float"`
	High   float64 `json:"high,float"`
	Low    float64 `json:"low,float"`
	Close  float64 `json:"close,float"`
	Volume float64 `json:"volume,float"`
}

// IMarketData supplies bars and quotes the exit level math runs on.
type IMarketData interface {
	GetBars(symbol string, lookback int) []OHLCV
	GetQuote(symbol string) float64
}
