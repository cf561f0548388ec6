package sources

import (
	"github.com/Taamir-Ransome/grodt/src/logging"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/sources/binance"
	"go.uber.org/zap"
)

// A MarketData facade routes quote and bar lookups to the exchange feed.
// Single venue today, the switch stays so another feed slots in beside it.
type MarketData struct {
	binanceFeed interfaces.IMarketData
}

var marketData *MarketData
var log interfaces.ILogger

func init() {
	logger, _ := logging.GetZapLogger()
	log = logger.With(zap.String("logger", "datafeed"))
}

func InitMarketData() interfaces.IMarketData {
	if marketData == nil {
		marketData = &MarketData{}
	}

	if marketData.binanceFeed == nil {
		marketData.binanceFeed = binance.InitMarketData()
	}

	return marketData
}

func (md *MarketData) GetQuote(symbol string) float64 {
	return md.binanceFeed.GetQuote(symbol)
}

func (md *MarketData) GetBars(symbol string, lookback int) []interfaces.OHLCV {
	return md.binanceFeed.GetBars(symbol, lookback)
}
