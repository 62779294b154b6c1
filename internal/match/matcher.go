// Package match correlates reservations with guest-registration form entries.
// The two record sets share no identifier: correlation works on exact stay
// dates plus fuzzy name similarity, with a graceful-degradation ladder so a
// booking without a clean match still surfaces plausible identity data for
// the human reviewing invoices downstream.
package match

import (
	"log"
	"time"

	"github.com/lettia/backoffice/internal/dates"
	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
)

// DefaultThreshold is the minimum similarity score for a name-based match.
const DefaultThreshold = 0.65

// Matcher matches reservations to registration forms.
type Matcher struct {
	// Threshold overrides DefaultThreshold when non-zero.
	Threshold float64
}

func (m Matcher) threshold() float64 {
	if m.Threshold > 0 {
		return m.Threshold
	}
	return DefaultThreshold
}

// rung is one step of the fallback ladder. Each rung is independently
// testable; the first to produce a candidate wins.
type rung struct {
	name string
	pick func(res domain.Record, dated, all []domain.Record, threshold float64) (domain.Record, bool)
}

var ladder = []rung{
	{"exact-date-best-score", pickBestScore},
	{"exact-date-first", pickFirstDated},
	{"first-candidate", pickFirstAny},
}

// PrimaryGuest returns the registration entry for the reservation's primary
// guest, or nil when candidates is empty. Candidates whose normalized
// check-in and check-out both equal the reservation's are preferred; among
// those the best name-similarity score above the threshold wins, then the
// first date match, then the first candidate overall.
func (m Matcher) PrimaryGuest(res domain.Record, candidates []domain.Record) domain.Record {
	resIn, resOut, ok := stayDates(res)
	if !ok {
		log.Printf("[match] WARNING: reservation %s has unusable stay dates",
			res.Str(domain.FieldReservationID))
		return nil
	}

	dated := filterByStay(candidates, resIn, resOut)

	for _, r := range ladder {
		if guest, ok := r.pick(res, dated, candidates, m.threshold()); ok {
			log.Printf("[match] Reservation %s matched via %s",
				res.Str(domain.FieldReservationID), r.name)
			return guest
		}
	}
	return nil
}

func pickBestScore(res domain.Record, dated, _ []domain.Record, threshold float64) (domain.Record, bool) {
	name := res.Str(domain.FieldGuestName)
	var best domain.Record
	bestScore := 0.0
	for _, c := range dated {
		if score := Ratio(name, c.Str(domain.FieldFullName)); score > bestScore {
			bestScore, best = score, c
		}
	}
	if bestScore > threshold {
		return best, true
	}
	return nil, false
}

func pickFirstDated(_ domain.Record, dated, _ []domain.Record, _ float64) (domain.Record, bool) {
	if len(dated) > 0 {
		return dated[0], true
	}
	return nil, false
}

func pickFirstAny(_ domain.Record, _, all []domain.Record, _ float64) (domain.Record, bool) {
	if len(all) > 0 {
		return all[0], true
	}
	return nil, false
}

// TaxForReservation computes the tourist tax owed by a reservation's party
// and the number of tax-paying guests. Forms matching the exact stay dates
// determine the party; when none match, every candidate counts (best effort,
// matching the identity ladder). Each guest contributes their own chargeable
// nights under the policy's per-night age rule, capped per guest; guests
// without a parseable birth date count as adults.
func TaxForReservation(res domain.Record, candidates []domain.Record, policy finance.TaxPolicy) (float64, int) {
	nights := int(finance.ToFloat(res[domain.FieldNights]))
	if nights <= 0 {
		return 0, 0
	}

	resIn, resOut, ok := stayDates(res)
	if !ok || resIn.Before(policy.EffectiveFrom) {
		return 0, 0
	}

	party := filterByStay(candidates, resIn, resOut)
	if len(party) == 0 {
		party = candidates
	}
	if len(party) == 0 {
		log.Printf("[match] WARNING: no registration forms for reservation %s tax",
			res.Str(domain.FieldReservationID))
		return 0, 0
	}

	total := 0.0
	paying := 0
	for _, g := range party {
		born, bornKnown := dates.ParseFlexible(g[domain.FieldDateOfBirth])
		paid := policy.ChargeableNightsOf(resIn, nights, born, bornKnown)
		if paid > 0 {
			paying++
			total += float64(paid) * policy.NightlyRate
		}
	}
	return finance.Round2(total), paying
}

func stayDates(rec domain.Record) (in, out time.Time, ok bool) {
	in = dates.NormalizeOrEmpty(rec[domain.FieldCheckIn])
	out = dates.NormalizeOrEmpty(rec[domain.FieldCheckOut])
	return in, out, !in.IsZero() && !out.IsZero()
}

// filterByStay keeps candidates whose flexible-parsed check-in and check-out
// both equal the reservation's.
func filterByStay(candidates []domain.Record, in, out time.Time) []domain.Record {
	var dated []domain.Record
	for _, c := range candidates {
		cin, okIn := dates.ParseFlexible(c[domain.FieldCheckIn])
		cout, okOut := dates.ParseFlexible(c[domain.FieldCheckOut])
		if okIn && okOut && cin.Equal(in) && cout.Equal(out) {
			dated = append(dated, c)
		}
	}
	return dated
}
