package exits

import (
	"math"
	"testing"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
)

func constantRangeBars(count int, trueRange float64) []interfaces.OHLCV {
	bars := make([]interfaces.OHLCV, count)
	for i := range bars {
		bars[i] = interfaces.OHLCV{
			Open:   150,
			High:   150 + trueRange/2,
			Low:    150 - trueRange/2,
			Close:  150,
			Volume: 30,
		}
	}
	return bars
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeATRConstantRange(t *testing.T) {
	bars := constantRangeBars(28, 2.0)
	atr, confidence, err := ComputeATR(bars, 14)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if !almostEqual(atr, 2.0) {
		t.Error("ATR should be 2.0 for constant 2-point ranges, got", atr)
	}
	if !almostEqual(confidence, 1.0) {
		t.Error("confidence should saturate at 1.0 with 2x period bars, got", confidence)
	}
}

func TestComputeATRGapCarriesPrevClose(t *testing.T) {
	// second bar gaps up, true range must stretch to the previous close
	bars := []interfaces.OHLCV{
		{Open: 100, High: 101, Low: 99, Close: 100},
		{Open: 110, High: 111, Low: 109, Close: 110},
	}
	atr, _, err := ComputeATR(bars, 2)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	// first TR = 2 (high-low), second TR = 11 (high-prevClose)
	if !almostEqual(atr, 6.5) {
		t.Error("ATR should include the gap to prev close, got", atr)
	}
}

func TestComputeATRInsufficientData(t *testing.T) {
	bars := constantRangeBars(5, 2.0)
	_, _, err := ComputeATR(bars, 14)
	if err != ErrInsufficientData {
		t.Error("5 bars for period 14 should report insufficient data, got", err)
	}
}

func TestComputeATRPartialConfidence(t *testing.T) {
	bars := constantRangeBars(14, 2.0)
	_, confidence, err := ComputeATR(bars, 14)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if !almostEqual(confidence, 0.5) {
		t.Error("14 bars for period 14 should give 0.5 confidence, got", confidence)
	}
}

func TestStopAndTargetBuySide(t *testing.T) {
	stop := ComputeStopLoss(150, 2.0, 2.0, "buy")
	if !almostEqual(stop, 146) {
		t.Error("buy stop for entry 150, ATR 2, multiplier 2 should be 146, got", stop)
	}
	target := ComputeTakeProfit(150, stop, 1.5, "buy")
	if !almostEqual(target, 156) {
		t.Error("buy target at ratio 1.5 should be 156, got", target)
	}
}

func TestStopAndTargetSellSide(t *testing.T) {
	stop := ComputeStopLoss(150, 2.0, 2.0, "sell")
	if !almostEqual(stop, 154) {
		t.Error("sell stop for entry 150, ATR 2, multiplier 2 should be 154, got", stop)
	}
	target := ComputeTakeProfit(150, stop, 1.5, "sell")
	if !almostEqual(target, 144) {
		t.Error("sell target at ratio 1.5 should be 144, got", target)
	}
}

func TestCalculatorComputesFromBars(t *testing.T) {
	logger, statsd := GetLoggerStatsd()
	md := &MockMarketData{Bars: constantRangeBars(28, 2.0), Quote: 150}
	calculator := NewLevelCalculator(md, 14, 2.0, 0.02, statsd, logger)

	levels := calculator.Compute("BTC_USDT", "buy", 150, 1.5)
	if levels.Degraded {
		t.Error("full bar history should not degrade")
	}
	if !almostEqual(levels.StopLoss, 146) || !almostEqual(levels.TakeProfit, 156) {
		t.Error("expected stop 146 and target 156, got", levels.StopLoss, levels.TakeProfit)
	}
	if !almostEqual(levels.Confidence, 1.0) {
		t.Error("confidence should be 1.0, got", levels.Confidence)
	}
}

func TestCalculatorFallbackOnShortHistory(t *testing.T) {
	logger, statsd := GetLoggerStatsd()
	md := &MockMarketData{Bars: constantRangeBars(5, 2.0), Quote: 150}
	calculator := NewLevelCalculator(md, 14, 2.0, 0.02, statsd, logger)

	levels := calculator.Compute("BTC_USDT", "buy", 150, 1.5)
	if !levels.Degraded {
		t.Error("short bar history should degrade to the percentage fallback")
	}
	// 2% of the 150 quote puts the stop 3 points under entry
	if !almostEqual(levels.StopLoss, 147) {
		t.Error("fallback stop should be 147, got", levels.StopLoss)
	}
	if !almostEqual(levels.TakeProfit, 154.5) {
		t.Error("fallback target at ratio 1.5 should be 154.5, got", levels.TakeProfit)
	}
}

func TestCalculatorFallbackUsesEntryWithoutQuote(t *testing.T) {
	logger, statsd := GetLoggerStatsd()
	md := &MockMarketData{Bars: nil, Quote: 0}
	calculator := NewLevelCalculator(md, 14, 2.0, 0.02, statsd, logger)

	levels := calculator.Compute("BTC_USDT", "sell", 200, 2.0)
	if !levels.Degraded {
		t.Error("no bars should degrade to the percentage fallback")
	}
	if !almostEqual(levels.StopLoss, 204) {
		t.Error("sell fallback stop from entry 200 should be 204, got", levels.StopLoss)
	}
}
