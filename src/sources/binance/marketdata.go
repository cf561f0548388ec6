package binance

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Cryptocurrencies-AI/go-binance"
	"github.com/Taamir-Ransome/grodt/src/logging"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// A MarketDataFeed serves quotes from the mini-ticker stream and bar history
// from the venue's klines endpoint.
type MarketDataFeed struct {
	QuoteMap sync.Map // <string: symbol, float64: last price>
	restURL  string
	interval string
}

var marketDataFeed *MarketDataFeed
var log interfaces.ILogger

func init() {
	logger, _ := logging.GetZapLogger()
	log = logger.With(zap.String("logger", "binanceMarketData"))
}

func InitMarketData() interfaces.IMarketData {
	if marketDataFeed == nil {
		restURL := os.Getenv("BINANCE_REST")
		if restURL == "" {
			restURL = "https://api.binance.com"
		}
		interval := os.Getenv("BAR_INTERVAL")
		if interval == "" {
			interval = "1h"
		}
		marketDataFeed = &MarketDataFeed{
			restURL:  restURL,
			interval: interval,
		}
		marketDataFeed.SubscribeToQuotes()
	}
	return marketDataFeed
}

type MiniTicker struct {
	Symbol string `json:"s"` // "BNBBTC"
	Close  string `json:"c"` // "0.0025"
}

func (md *MarketDataFeed) SubscribeToQuotes() {
	go ListenBinancePrice(func(data *binance.RawEvent, marketType int8) error {
		go md.UpdateQuotes(data.Data)
		return nil
	})
}

// UpdateQuotes decodes a raw all-market mini ticker batch and stores the
// last price per symbol.
func (md *MarketDataFeed) UpdateQuotes(data []byte) {
	var allMarketTickers []MiniTicker
	err := json.Unmarshal(data, &allMarketTickers)
	if err != nil {
		log.Debug("decode all market mini ticker while quote update",
			zap.Error(err),
		)
		return
	}
	for _, ticker := range allMarketTickers {
		price, err := strconv.ParseFloat(ticker.Close, 64)
		if err != nil {
			log.Debug("parse close price while quote update",
				zap.Error(err),
			)
			continue
		}
		md.QuoteMap.Store(ticker.Symbol, price)
	}
}

func (md *MarketDataFeed) GetQuote(symbol string) float64 {
	priceRaw, ok := md.QuoteMap.Load(strings.Replace(symbol, "_", "", -1))
	if ok {
		return priceRaw.(float64)
	}
	return 0
}

// GetBars fetches the most recent lookback klines for the symbol. Empty
// slice on any fetch or decode fault: bar consumers carry their own
// fallback.
func (md *MarketDataFeed) GetBars(symbol string, lookback int) []interfaces.OHLCV {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		md.restURL, strings.Replace(symbol, "_", "", -1), md.interval, lookback)
	statusCode, body, err := fasthttp.Get(nil, url)
	if err != nil || statusCode != fasthttp.StatusOK {
		log.Error("klines fetch",
			zap.String("url", url),
			zap.Int("status", statusCode),
			zap.Error(err),
		)
		return []interfaces.OHLCV{}
	}

	// a kline row mixes numbers and string-encoded decimals:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		log.Error("klines decode", zap.Error(err))
		return []interfaces.OHLCV{}
	}

	bars := make([]interfaces.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		bar, ok := parseKline(row)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return bars
}

func parseKline(row []interface{}) (interfaces.OHLCV, bool) {
	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		raw, ok := row[i+1].(string)
		if !ok {
			return interfaces.OHLCV{}, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return interfaces.OHLCV{}, false
		}
		fields[i] = v
	}
	return interfaces.OHLCV{
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, true
}
