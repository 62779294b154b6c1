// Package finance computes the per-booking financial breakdown and the
// tourist tax. Every calculation here is tolerant by policy: bad-but-plausible
// input degrades to zero or absent values so a batch run completes and flags
// instead of halting.
package finance

import (
	"sort"
	"time"
)

// ProcessorFee is one payment-processor fee entry: a percentage of the total
// plus a fixed component per charge.
type ProcessorFee struct {
	Pct   float64
	Fixed float64
}

// RateChange is one step of an effective-dated rate schedule.
type RateChange struct {
	From time.Time
	Pct  float64
}

// Schedule is an ordered list of rate changes. It generalizes the "fee X
// applies from date Y" business rules so new steps are data, not code.
type Schedule []RateChange

// RateOn returns the rate in force on the given date, or 0 before the first
// step.
func (s Schedule) RateOn(d time.Time) float64 {
	rate := 0.0
	for _, c := range s {
		if !d.Before(c.From) {
			rate = c.Pct
		}
	}
	return rate
}

// Normalize sorts the schedule by effective date. Call once after building.
func (s Schedule) Normalize() Schedule {
	out := append(Schedule(nil), s...)
	sort.Slice(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out
}

// Region keys the processor fee table accepts alongside full country names.
const (
	RegionUK = "UK"
	RegionEU = "EU"
)

// euCountries is the set of countries billed at the EU processor rate.
var euCountries = map[string]bool{
	"Portugal": true, "France": true, "Germany": true, "Italy": true,
	"Spain": true, "Netherlands": true, "Belgium": true, "Ireland": true,
	"Austria": true, "Denmark": true, "Sweden": true, "Finland": true,
	"Luxembourg": true, "Greece": true, "Poland": true,
	"Czech Republic": true, "Hungary": true, "Romania": true,
	"Bulgaria": true, "Croatia": true, "Slovenia": true, "Slovakia": true,
	"Lithuania": true, "Latvia": true, "Estonia": true,
}

// RegionOf classifies a country name into a processor fee region, or ""
// when the country belongs to neither region.
func RegionOf(country string) string {
	switch {
	case country == "United Kingdom":
		return RegionUK
	case euCountries[country]:
		return RegionEU
	}
	return ""
}

// Rates is the rate configuration for a run. Loaded once, immutable after.
type Rates struct {
	// VATRate and the fee percentages are fractions in [0,1].
	VATRate           float64
	MarketplaceFeePct float64
	PlatformFeePct    float64

	// ProcessorFees maps country name or region key ("UK", "EU") to the
	// processor fee entry; ProcessorFeeDefault applies to everything else.
	ProcessorFees       map[string]ProcessorFee
	ProcessorFeeDefault ProcessorFee

	// DynamicFee is the time-boxed internal markup schedule.
	DynamicFee Schedule
}

// ProcessorFeeFor returns the processor fee entry for a country. An exact
// country entry wins over the country's region entry; countries matching
// neither get the default.
func (r Rates) ProcessorFeeFor(country string) ProcessorFee {
	if f, ok := r.ProcessorFees[country]; ok {
		return f
	}
	if region := RegionOf(country); region != "" {
		if f, ok := r.ProcessorFees[region]; ok {
			return f
		}
	}
	return r.ProcessorFeeDefault
}
