package exits

import (
	"testing"

	"github.com/Taamir-Ransome/grodt/src/config"
)

func TestResolveEffectiveRatioBase(t *testing.T) {
	ratio := ResolveEffectiveRatio(1.5, nil, 1.0, 1.0, 1.0, 3.0)
	if ratio != 1.5 {
		t.Error("base ratio with neutral factors should pass through, got", ratio)
	}
}

func TestResolveEffectiveRatioOverrideReplacesBase(t *testing.T) {
	override := 2.5
	ratio := ResolveEffectiveRatio(1.5, &override, 1.0, 1.0, 1.0, 3.0)
	if ratio != 2.5 {
		t.Error("symbol override should replace the base outright, got", ratio)
	}
}

func TestResolveEffectiveRatioFactorsMultiply(t *testing.T) {
	ratio := ResolveEffectiveRatio(1.5, nil, 1.2, 1.1, 1.0, 3.0)
	expected := 1.5 * 1.2 * 1.1
	if ratio != expected {
		t.Error("factors should scale multiplicatively, got", ratio, "want", expected)
	}
}

func TestResolveEffectiveRatioClampIsLast(t *testing.T) {
	// scaling pushes past the ceiling, the clamp must win
	ratio := ResolveEffectiveRatio(2.8, nil, 1.5, 1.0, 1.0, 3.0)
	if ratio != 3.0 {
		t.Error("ratio should clamp to the ceiling after scaling, got", ratio)
	}
	ratio = ResolveEffectiveRatio(1.5, nil, 0.4, 1.0, 1.0, 3.0)
	if ratio != 1.0 {
		t.Error("ratio should clamp to the floor after scaling, got", ratio)
	}
}

func newRatioConfig() *config.ExitConfig {
	return &config.ExitConfig{
		RatioMode:              "adaptive",
		BaseRatio:              1.5,
		MinRatio:               1.0,
		MaxRatio:               3.0,
		VolatilityFactor:       1.0,
		MarketConditionFactors: map[string]float64{"trending": 1.2, "ranging": 0.8},
		SymbolRatioOverrides:   map[string]float64{"ETH_USDT": 2.0},
	}
}

func TestResolverAppliesConditionFactor(t *testing.T) {
	logger, _ := GetLoggerStatsd()
	resolver := NewRatioResolver(newRatioConfig(), logger)

	ratio := resolver.Effective("BTC_USDT", "trending")
	if ratio != 1.5*1.2 {
		t.Error("trending condition should scale the base by 1.2, got", ratio)
	}
}

func TestResolverUnknownConditionIsNeutral(t *testing.T) {
	logger, _ := GetLoggerStatsd()
	resolver := NewRatioResolver(newRatioConfig(), logger)

	ratio := resolver.Effective("BTC_USDT", "sideways-ish")
	if ratio != 1.5 {
		t.Error("unknown condition should not scale the ratio, got", ratio)
	}
}

func TestResolverSymbolOverride(t *testing.T) {
	logger, _ := GetLoggerStatsd()
	resolver := NewRatioResolver(newRatioConfig(), logger)

	ratio := resolver.Effective("ETH_USDT", "ranging")
	if ratio != 2.0*0.8 {
		t.Error("override should replace the base before scaling, got", ratio)
	}
}

func TestResolverStaticModeSkipsFactors(t *testing.T) {
	cfg := newRatioConfig()
	cfg.RatioMode = "static"
	logger, _ := GetLoggerStatsd()
	resolver := NewRatioResolver(cfg, logger)

	ratio := resolver.Effective("BTC_USDT", "trending")
	if ratio != 1.5 {
		t.Error("static mode should ignore condition factors, got", ratio)
	}
}
