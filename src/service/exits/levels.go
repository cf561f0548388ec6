package exits

import (
	"errors"
	"math"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"go.uber.org/zap"
)

// ErrInsufficientData signals that the bar history is too short for the ATR
// period requested. Callers fall back to a percentage stop, they do not fail.
var ErrInsufficientData = errors.New("insufficient bars for ATR period")

// ComputeATR returns the average true range over the last `period` bars and
// a confidence in [0, 1] that grows with history length, saturating at twice
// the period.
func ComputeATR(bars []interfaces.OHLCV, period int) (float64, float64, error) {
	if period < 1 || len(bars) < period {
		return 0, 0, ErrInsufficientData
	}

	trueRanges := make([]float64, len(bars))
	for i, bar := range bars {
		tr := bar.High - bar.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr = math.Max(tr, math.Abs(bar.High-prevClose))
			tr = math.Max(tr, math.Abs(bar.Low-prevClose))
		}
		trueRanges[i] = tr
	}

	sum := 0.0
	for _, tr := range trueRanges[len(trueRanges)-period:] {
		sum += tr
	}
	atr := sum / float64(period)

	confidence := float64(len(bars)) / float64(2*period)
	if confidence > 1 {
		confidence = 1
	}
	return atr, confidence, nil
}

// ComputeStopLoss places the stop on the loss side of entry at a distance of
// atr times multiplier.
func ComputeStopLoss(entryPrice, atr, multiplier float64, side string) float64 {
	distance := atr * multiplier
	if side == "sell" {
		return entryPrice + distance
	}
	return entryPrice - distance
}

// ComputeTakeProfit places the target on the profit side of entry at the
// risk distance scaled by the effective ratio.
func ComputeTakeProfit(entryPrice, stopLossPrice, effectiveRatio float64, side string) float64 {
	rewardDistance := math.Abs(entryPrice-stopLossPrice) * effectiveRatio
	if side == "sell" {
		return entryPrice - rewardDistance
	}
	return entryPrice + rewardDistance
}

// ExitLevels is what the calculator hands to the bracket manager.
type ExitLevels struct {
	StopLoss   float64
	TakeProfit float64
	ATR        float64
	Confidence float64
	// Degraded marks levels built from the fallback percentage instead of
	// ATR. Not an error: the bracket still goes out, just logged as such.
	Degraded bool
}

// A LevelCalculator derives stop-loss and take-profit prices from market
// data and the configured ATR parameters.
type LevelCalculator struct {
	MarketData      interfaces.IMarketData
	ATRPeriod       int
	ATRMultiplier   float64
	FallbackPercent float64
	Statsd          interfaces.IStatsClient
	Log             interfaces.ILogger
}

func NewLevelCalculator(marketData interfaces.IMarketData, atrPeriod int, atrMultiplier, fallbackPercent float64, statsd interfaces.IStatsClient, log interfaces.ILogger) *LevelCalculator {
	return &LevelCalculator{
		MarketData:      marketData,
		ATRPeriod:       atrPeriod,
		ATRMultiplier:   atrMultiplier,
		FallbackPercent: fallbackPercent,
		Statsd:          statsd,
		Log:             log,
	}
}

// Compute fetches bars for the symbol and produces both exit levels for an
// entry at entryPrice with the effective ratio given. Any ATR fault degrades
// to the percentage fallback with direction preserved.
func (lc *LevelCalculator) Compute(symbol string, side string, entryPrice float64, effectiveRatio float64) ExitLevels {
	bars := lc.MarketData.GetBars(symbol, 2*lc.ATRPeriod)
	atr, confidence, err := ComputeATR(bars, lc.ATRPeriod)
	if err != nil {
		return lc.fallbackLevels(symbol, side, entryPrice, effectiveRatio, err)
	}

	stop := ComputeStopLoss(entryPrice, atr, lc.ATRMultiplier, side)
	if stop <= 0 {
		// a huge ATR on a cheap instrument can push the stop through zero
		return lc.fallbackLevels(symbol, side, entryPrice, effectiveRatio, errors.New("ATR stop crossed zero"))
	}
	takeProfit := ComputeTakeProfit(entryPrice, stop, effectiveRatio, side)

	lc.Log.Info("computed exit levels",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("entry", entryPrice),
		zap.Float64("stopLoss", stop),
		zap.Float64("takeProfit", takeProfit),
		zap.Float64("atr", atr),
		zap.Float64("confidence", confidence),
	)
	return ExitLevels{
		StopLoss:   stop,
		TakeProfit: takeProfit,
		ATR:        atr,
		Confidence: confidence,
	}
}

// fallbackLevels substitutes FallbackPercent of the current quote for the
// stop distance when ATR cannot be computed.
func (lc *LevelCalculator) fallbackLevels(symbol string, side string, entryPrice float64, effectiveRatio float64, cause error) ExitLevels {
	quote := lc.MarketData.GetQuote(symbol)
	if quote <= 0 {
		quote = entryPrice
	}
	distance := quote * lc.FallbackPercent
	stop := entryPrice - distance
	if side == "sell" {
		stop = entryPrice + distance
	}
	takeProfit := ComputeTakeProfit(entryPrice, stop, effectiveRatio, side)

	lc.Statsd.Inc("levels.atr_fallback")
	lc.Log.Warn("ATR unavailable, using percentage fallback for stop distance",
		zap.String("symbol", symbol),
		zap.Error(cause),
		zap.Float64("fallbackPercent", lc.FallbackPercent),
		zap.Float64("stopLoss", stop),
		zap.Float64("takeProfit", takeProfit),
	)
	return ExitLevels{
		StopLoss:   stop,
		TakeProfit: takeProfit,
		Degraded:   true,
	}
}
