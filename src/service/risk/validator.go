package risk

import (
	"fmt"
	"math"

	"github.com/Taamir-Ransome/grodt/src/config"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"go.uber.org/zap"
)

// A Validator checks a proposed stop placement against the per-trade risk
// budget and the position size cap.
type Validator struct {
	AccountBalance          float64
	RiskPerTradeFraction    float64
	MaxPositionSizeFraction float64
	Statsd                  interfaces.IStatsClient
	Log                     interfaces.ILogger
}

func NewValidator(cfg *config.ExitConfig, statsd interfaces.IStatsClient, log interfaces.ILogger) *Validator {
	return &Validator{
		AccountBalance:          cfg.AccountBalance,
		RiskPerTradeFraction:    cfg.RiskPerTradeFraction,
		MaxPositionSizeFraction: cfg.MaxPositionSizeFraction,
		Statsd:                  statsd,
		Log:                     log,
	}
}

// budget is the quote-currency loss allowed on a single trade.
func (v *Validator) budget() float64 {
	return v.AccountBalance * v.RiskPerTradeFraction
}

// Validate decides accept, adjust or reject for a stop placement. Risk over
// budget gets the stop moved toward entry until the loss at stop equals the
// budget; an over-cap position value or a degenerate stop rejects outright.
// The adjusted stop only ever tightens, loosening would grow the risk.
func (v *Validator) Validate(symbol string, entryPrice float64, stopLossPrice float64, quantity float64) interfaces.RiskValidation {
	if quantity <= 0 || entryPrice <= 0 {
		v.Statsd.Inc("risk.reject")
		return interfaces.RiskValidation{
			Decision: interfaces.RiskReject,
			Reason:   "quantity and entry price must be positive",
		}
	}
	if stopLossPrice == entryPrice {
		v.Statsd.Inc("risk.reject")
		return interfaces.RiskValidation{
			Decision: interfaces.RiskReject,
			Reason:   "stop at entry carries no risk information",
		}
	}

	positionValue := entryPrice * quantity
	maxPositionValue := v.AccountBalance * v.MaxPositionSizeFraction
	if positionValue > maxPositionValue {
		v.Statsd.Inc("risk.reject")
		v.Log.Warn("position value over cap",
			zap.String("symbol", symbol),
			zap.Float64("positionValue", positionValue),
			zap.Float64("cap", maxPositionValue),
		)
		return interfaces.RiskValidation{
			Decision: interfaces.RiskReject,
			Reason:   fmt.Sprintf("position value %.2f over cap %.2f", positionValue, maxPositionValue),
		}
	}

	lossAtStop := math.Abs(entryPrice-stopLossPrice) * quantity
	budget := v.budget()
	if lossAtStop <= budget {
		v.Statsd.Inc("risk.accept")
		return interfaces.RiskValidation{
			Decision:      interfaces.RiskAccept,
			StopLossPrice: stopLossPrice,
		}
	}

	// tighten the stop so the loss at stop lands exactly on budget
	allowedDistance := budget / quantity
	adjusted := entryPrice - allowedDistance
	if stopLossPrice > entryPrice {
		adjusted = entryPrice + allowedDistance
	}
	v.Statsd.Inc("risk.adjust")
	v.Log.Info("stop tightened to risk budget",
		zap.String("symbol", symbol),
		zap.Float64("proposedStop", stopLossPrice),
		zap.Float64("adjustedStop", adjusted),
		zap.Float64("budget", budget),
	)
	return interfaces.RiskValidation{
		Decision:      interfaces.RiskAdjust,
		StopLossPrice: adjusted,
		Reason:        fmt.Sprintf("loss at stop %.2f over budget %.2f", lossAtStop, budget),
	}
}

// SuggestQuantity sizes a position so the loss at the proposed stop spends
// the whole per-trade budget, capped by the position value limit.
func (v *Validator) SuggestQuantity(entryPrice float64, stopLossPrice float64) float64 {
	distance := math.Abs(entryPrice - stopLossPrice)
	if distance == 0 || entryPrice <= 0 {
		return 0
	}
	qty := v.budget() / distance
	maxQty := v.AccountBalance * v.MaxPositionSizeFraction / entryPrice
	if qty > maxQty {
		qty = maxQty
	}
	return qty
}
