package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	if err != nil {
		t.Fatal("defaults should load cleanly:", err)
	}
	if cfg.BaseRatio != 1.5 || cfg.MinRatio != 1.0 || cfg.MaxRatio != 3.0 {
		t.Error("unexpected ratio defaults", cfg.BaseRatio, cfg.MinRatio, cfg.MaxRatio)
	}
	if cfg.ATRPeriod != 14 || cfg.ATRMultiplier != 2.0 {
		t.Error("unexpected ATR defaults", cfg.ATRPeriod, cfg.ATRMultiplier)
	}
	if cfg.FallbackPercent != 0.02 {
		t.Error("unexpected fallback percent", cfg.FallbackPercent)
	}
	if cfg.BracketTimeoutSeconds != 3600 || cfg.CancelRetryAttempts != 5 {
		t.Error("unexpected coordination defaults", cfg.BracketTimeoutSeconds, cfg.CancelRetryAttempts)
	}
}

func TestLoadFactorMaps(t *testing.T) {
	os.Clearenv()
	os.Setenv("MARKET_CONDITION_FACTORS", `{"trending": 1.2, "ranging": "0.8"}`)
	os.Setenv("SYMBOL_RATIO_OVERRIDES", `{"ETH_USDT": 2.0}`)
	cfg, err := Load()
	if err != nil {
		t.Fatal("factor maps should load:", err)
	}
	if cfg.MarketConditionFactors["trending"] != 1.2 {
		t.Error("numeric factor lost", cfg.MarketConditionFactors)
	}
	if cfg.MarketConditionFactors["ranging"] != 0.8 {
		t.Error("string-encoded factor should decode weakly", cfg.MarketConditionFactors)
	}
	if cfg.SymbolRatioOverrides["ETH_USDT"] != 2.0 {
		t.Error("symbol override lost", cfg.SymbolRatioOverrides)
	}
}

func TestLoadRejectsBadFactorJSON(t *testing.T) {
	os.Clearenv()
	os.Setenv("MARKET_CONDITION_FACTORS", `not json`)
	if _, err := Load(); err == nil {
		t.Error("malformed factor map should fail the load")
	}
}

func TestLoadRejectsInvertedRatioBounds(t *testing.T) {
	os.Clearenv()
	os.Setenv("MIN_RATIO", "3.0")
	os.Setenv("MAX_RATIO", "1.0")
	if _, err := Load(); err == nil {
		t.Error("min ratio above max ratio should fail the load")
	}
}
