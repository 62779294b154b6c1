// Package config loads application configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lettia/backoffice/internal/finance"
)

// Config holds all configuration values for the back-office server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DataDir holds the store and ledger databases. Defaults to "./data".
	DataDir string

	// CSVDir is watched for booking exports. Defaults to DataDir/exports.
	CSVDir string

	// VATRate applies to lodging revenue. Defaults to 0.06.
	VATRate float64

	// MarketplaceFeePct is the marketplace commission. Defaults to 0.03.
	MarketplaceFeePct float64

	// PlatformFeePct is the booking-platform commission on website
	// reservations. Defaults to 0.01.
	PlatformFeePct float64

	// ProcessorFees maps guest country, or the region keys "UK" and "EU",
	// to the card-processor fee applied to website reservations. Set
	// PROCESSOR_FEES to a JSON object {"UK": {"pct": 0.025, "fixed": 0.5},
	// ...} to override the defaults.
	ProcessorFees map[string]finance.ProcessorFee

	// ProcessorFeeDefault applies when the guest country has no entry.
	ProcessorFeeDefault finance.ProcessorFee

	// DynamicFee is the dated surcharge schedule on website reservations.
	// Set DYNAMIC_FEE_SCHEDULE to a JSON array
	// [{"from": "2024-11-12", "pct": 0.008}, ...] to override.
	DynamicFee finance.Schedule

	// TaxEffectiveFrom is the first check-in date the tourist tax applies
	// to. Defaults to 2025-01-01.
	TaxEffectiveFrom time.Time
}

// Load reads configuration from environment variables, falling back to the
// built-in defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Port:    getEnv("PORT", "8080"),
		DataDir: getEnv("DATA_DIR", "./data"),
		ProcessorFees: map[string]finance.ProcessorFee{
			finance.RegionUK: {Pct: 0.025, Fixed: 0.50},
			finance.RegionEU: {Pct: 0.015, Fixed: 0.50},
		},
		ProcessorFeeDefault: finance.ProcessorFee{Pct: 0.0325, Fixed: 0.50},
		DynamicFee: finance.Schedule{
			{From: time.Date(2024, time.November, 12, 0, 0, 0, 0, time.UTC), Pct: 0.008},
		},
	}
	cfg.CSVDir = getEnv("CSV_DIR", cfg.DataDir+"/exports")

	var err error
	if cfg.VATRate, err = getFloat("VAT_RATE", 0.06); err != nil {
		return Config{}, err
	}
	if cfg.MarketplaceFeePct, err = getFloat("MARKETPLACE_FEE_PCT", 0.03); err != nil {
		return Config{}, err
	}
	if cfg.PlatformFeePct, err = getFloat("PLATFORM_FEE_PCT", 0.01); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("PROCESSOR_FEES"); raw != "" {
		fees := map[string]finance.ProcessorFee{}
		if err := json.Unmarshal([]byte(raw), &fees); err != nil {
			return Config{}, fmt.Errorf("parsing PROCESSOR_FEES: %w", err)
		}
		cfg.ProcessorFees = fees
	}

	if raw := os.Getenv("DYNAMIC_FEE_SCHEDULE"); raw != "" {
		schedule, err := parseSchedule(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing DYNAMIC_FEE_SCHEDULE: %w", err)
		}
		cfg.DynamicFee = schedule
	}

	effectiveFrom := getEnv("TAX_EFFECTIVE_FROM", "2025-01-01")
	cfg.TaxEffectiveFrom, err = time.Parse("2006-01-02", effectiveFrom)
	if err != nil {
		return Config{}, fmt.Errorf("parsing TAX_EFFECTIVE_FROM %q: %w", effectiveFrom, err)
	}

	return cfg, nil
}

// Rates assembles the fee configuration consumed by the financial
// calculators.
func (c Config) Rates() finance.Rates {
	return finance.Rates{
		VATRate:             c.VATRate,
		MarketplaceFeePct:   c.MarketplaceFeePct,
		PlatformFeePct:      c.PlatformFeePct,
		ProcessorFees:       c.ProcessorFees,
		ProcessorFeeDefault: c.ProcessorFeeDefault,
		DynamicFee:          c.DynamicFee.Normalize(),
	}
}

// TaxPolicy assembles the tourist-tax policy with the configured cutoff.
func (c Config) TaxPolicy() finance.TaxPolicy {
	p := finance.DefaultTaxPolicy()
	p.EffectiveFrom = c.TaxEffectiveFrom
	return p
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseSchedule(raw string) (finance.Schedule, error) {
	var entries []struct {
		From string  `json:"from"`
		Pct  float64 `json:"pct"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	schedule := make(finance.Schedule, 0, len(entries))
	for _, e := range entries {
		from, err := time.Parse("2006-01-02", e.From)
		if err != nil {
			return nil, fmt.Errorf("schedule date %q: %w", e.From, err)
		}
		schedule = append(schedule, finance.RateChange{From: from, Pct: e.Pct})
	}
	return schedule.Normalize(), nil
}
