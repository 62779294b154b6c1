package finance

import (
	"fmt"
	"math"
	"time"

	"github.com/lettia/backoffice/internal/dates"
)

// TaxPolicy holds the municipal tourist-tax rules. The charge is
// NightlyRate per guest per chargeable night; a night is chargeable when the
// guest is at least MinAge years old that night; chargeable nights cap at
// MaxNights per guest; and stays checking in before EffectiveFrom owe nothing.
type TaxPolicy struct {
	NightlyRate   float64
	MaxNights     int
	MinAge        int
	EffectiveFrom time.Time
}

// DefaultTaxPolicy returns the rules in force today: 2 EUR/night, 7-night
// cap, 16-year age floor, effective from 2025-01-01.
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{
		NightlyRate:   2,
		MaxNights:     7,
		MinAge:        16,
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// TaxBreakdown explains one guest's tourist-tax charge.
type TaxBreakdown struct {
	TotalNights      int
	ChargeableNights int
	PaidNights       int
	Amount           float64
	NightlyRate      float64
}

// Tax computes the tourist tax for one guest's stay. The three dates must be
// parseable (this is a strict path); a non-positive stay or a future date of
// birth yields zero without error.
func (p TaxPolicy) Tax(checkIn, checkOut, dob any) (float64, error) {
	b, err := p.TaxDetailed(checkIn, checkOut, dob)
	if err != nil {
		return 0, err
	}
	return b.Amount, nil
}

// TaxDetailed is Tax with the full breakdown.
func (p TaxPolicy) TaxDetailed(checkIn, checkOut, dob any) (TaxBreakdown, error) {
	in, err := dates.Normalize(checkIn)
	if err != nil {
		return TaxBreakdown{}, fmt.Errorf("check-in: %w", err)
	}
	out, err := dates.Normalize(checkOut)
	if err != nil {
		return TaxBreakdown{}, fmt.Errorf("check-out: %w", err)
	}
	born, err := dates.Normalize(dob)
	if err != nil {
		return TaxBreakdown{}, fmt.Errorf("date of birth: %w", err)
	}

	b := TaxBreakdown{NightlyRate: p.NightlyRate}

	if !out.After(in) {
		return b, nil
	}
	b.TotalNights = int(out.Sub(in).Hours() / 24)
	if born.After(time.Now().UTC()) {
		return b, nil
	}
	if in.Before(p.EffectiveFrom) {
		return b, nil
	}

	b.ChargeableNights = p.chargeableNights(in, b.TotalNights, born)
	b.PaidNights = b.ChargeableNights
	if b.PaidNights > p.MaxNights {
		b.PaidNights = p.MaxNights
	}
	b.Amount = Round2(float64(b.PaidNights) * p.NightlyRate)
	return b, nil
}

// chargeableNights counts the nights of the stay on which the guest has
// already reached MinAge. Age is evaluated per night as
// floor(days since birth / 365.25), so a guest turning of age mid-stay pays
// only the remaining nights.
func (p TaxPolicy) chargeableNights(checkIn time.Time, totalNights int, born time.Time) int {
	chargeable := 0
	for i := 0; i < totalNights; i++ {
		night := checkIn.AddDate(0, 0, i)
		days := night.Sub(born).Hours() / 24
		if int(math.Floor(days/365.25)) >= p.MinAge {
			chargeable++
		}
	}
	return chargeable
}

// ChargeableNightsOf exposes the per-night age rule for callers that price a
// whole party of guests: it returns the capped paid nights for one guest, or
// the capped total when the birth date is unknown (adults by assumption).
func (p TaxPolicy) ChargeableNightsOf(checkIn time.Time, totalNights int, born time.Time, bornKnown bool) int {
	if totalNights <= 0 {
		return 0
	}
	nights := totalNights
	if bornKnown {
		nights = p.chargeableNights(checkIn, totalNights, born)
	}
	if nights > p.MaxNights {
		nights = p.MaxNights
	}
	return nights
}
