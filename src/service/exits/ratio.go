package exits

import (
	"github.com/Taamir-Ransome/grodt/src/config"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"go.uber.org/zap"
)

// ResolveEffectiveRatio derives the risk/reward ratio actually used for a
// bracket. The order matters: a symbol override replaces the base outright,
// the market-condition and volatility factors scale multiplicatively, and
// the [minRatio, maxRatio] clamp is applied last so bounds always hold.
func ResolveEffectiveRatio(baseRatio float64, symbolOverride *float64, marketConditionFactor, volatilityFactor, minRatio, maxRatio float64) float64 {
	ratio := baseRatio
	if symbolOverride != nil {
		ratio = *symbolOverride
	}
	ratio *= marketConditionFactor
	ratio *= volatilityFactor
	if ratio < minRatio {
		ratio = minRatio
	}
	if ratio > maxRatio {
		ratio = maxRatio
	}
	return ratio
}

// A RatioResolver looks up configuration for a symbol and market condition
// and delegates the arithmetic to ResolveEffectiveRatio.
type RatioResolver struct {
	Mode                   string
	BaseRatio              float64
	MinRatio               float64
	MaxRatio               float64
	SymbolOverrides        map[string]float64
	MarketConditionFactors map[string]float64
	VolatilityFactor       float64
	Log                    interfaces.ILogger
}

func NewRatioResolver(cfg *config.ExitConfig, log interfaces.ILogger) *RatioResolver {
	return &RatioResolver{
		Mode:                   cfg.RatioMode,
		BaseRatio:              cfg.BaseRatio,
		MinRatio:               cfg.MinRatio,
		MaxRatio:               cfg.MaxRatio,
		SymbolOverrides:        cfg.SymbolRatioOverrides,
		MarketConditionFactors: cfg.MarketConditionFactors,
		VolatilityFactor:       cfg.VolatilityFactor,
		Log:                    log,
	}
}

// Effective returns the ratio for a symbol under the market condition given.
// In "static" mode condition and volatility scaling are skipped and only the
// override and clamp apply.
func (rr *RatioResolver) Effective(symbol string, marketCondition string) float64 {
	var override *float64
	if v, ok := rr.SymbolOverrides[symbol]; ok {
		override = &v
	}

	conditionFactor := 1.0
	volatilityFactor := 1.0
	if rr.Mode == "adaptive" {
		if f, ok := rr.MarketConditionFactors[marketCondition]; ok {
			conditionFactor = f
		}
		if rr.VolatilityFactor > 0 {
			volatilityFactor = rr.VolatilityFactor
		}
	}

	ratio := ResolveEffectiveRatio(rr.BaseRatio, override, conditionFactor, volatilityFactor, rr.MinRatio, rr.MaxRatio)
	rr.Log.Debug("resolved effective ratio",
		zap.String("symbol", symbol),
		zap.String("marketCondition", marketCondition),
		zap.Float64("ratio", ratio),
	)
	return ratio
}
