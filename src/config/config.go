package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// An ExitConfig carries every knob the trade exit service reads. Values come
// from the environment (optionally a .env file); map-shaped values are
// JSON-encoded in a single variable.
type ExitConfig struct {
	// ratio strategy
	RatioMode              string             // "static" or "adaptive"
	BaseRatio              float64            // default risk/reward ratio
	MinRatio               float64            // clamp floor
	MaxRatio               float64            // clamp ceiling
	MarketConditionFactors map[string]float64 // e.g. {"trending": 1.2, "ranging": 0.8}
	SymbolRatioOverrides   map[string]float64 // per-symbol replacement for BaseRatio
	VolatilityFactor       float64

	// stop distance
	ATRPeriod       int
	ATRMultiplier   float64
	FallbackPercent float64 // stop distance as a fraction of quote when ATR is unavailable

	// OCO coordination
	BracketTimeoutSeconds int
	SweepIntervalSeconds  int
	CancelRetryAttempts   int
	CancelRetryDelayMs    int
	MaxActiveBrackets     int

	// risk budget
	AccountBalance          float64
	RiskPerTradeFraction    float64
	MaxPositionSizeFraction float64
}

// Load reads the exit service configuration from the environment, applying
// defaults for anything unset.
func Load() (*ExitConfig, error) {
	_ = godotenv.Load()

	cfg := &ExitConfig{
		RatioMode:               getEnvString("RATIO_MODE", "static"),
		BaseRatio:               getEnvFloat("BASE_RATIO", 1.5),
		MinRatio:                getEnvFloat("MIN_RATIO", 1.0),
		MaxRatio:                getEnvFloat("MAX_RATIO", 3.0),
		VolatilityFactor:        getEnvFloat("VOLATILITY_FACTOR", 1.0),
		ATRPeriod:               getEnvInt("ATR_PERIOD", 14),
		ATRMultiplier:           getEnvFloat("ATR_MULTIPLIER", 2.0),
		FallbackPercent:         getEnvFloat("FALLBACK_PERCENT", 0.02),
		BracketTimeoutSeconds:   getEnvInt("BRACKET_TIMEOUT_SECONDS", 3600),
		SweepIntervalSeconds:    getEnvInt("SWEEP_INTERVAL_SECONDS", 60),
		CancelRetryAttempts:     getEnvInt("CANCEL_RETRY_ATTEMPTS", 5),
		CancelRetryDelayMs:      getEnvInt("CANCEL_RETRY_DELAY_MS", 200),
		MaxActiveBrackets:       getEnvInt("MAX_ACTIVE_BRACKETS", 20),
		AccountBalance:          getEnvFloat("ACCOUNT_BALANCE", 10000),
		RiskPerTradeFraction:    getEnvFloat("RISK_PER_TRADE_FRACTION", 0.0075),
		MaxPositionSizeFraction: getEnvFloat("MAX_POSITION_SIZE_FRACTION", 0.1),
	}

	var err error
	cfg.MarketConditionFactors, err = loadFactorMap("MARKET_CONDITION_FACTORS")
	if err != nil {
		return nil, err
	}
	cfg.SymbolRatioOverrides, err = loadFactorMap("SYMBOL_RATIO_OVERRIDES")
	if err != nil {
		return nil, err
	}

	if cfg.MinRatio > cfg.MaxRatio {
		return nil, fmt.Errorf("MIN_RATIO %v above MAX_RATIO %v", cfg.MinRatio, cfg.MaxRatio)
	}
	if cfg.ATRPeriod < 1 {
		return nil, fmt.Errorf("ATR_PERIOD must be positive, got %v", cfg.ATRPeriod)
	}
	return cfg, nil
}

// loadFactorMap reads a JSON object of numbers from the variable named,
// tolerating string-encoded numbers the way ops tend to write them.
func loadFactorMap(envName string) (map[string]float64, error) {
	out := map[string]float64{}
	raw := os.Getenv(envName)
	if raw == "" {
		return out, nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("%v is not a JSON object: %v", envName, err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, fmt.Errorf("decoding %v: %v", envName, err)
	}
	return out, nil
}

func getEnvString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
