package finance

import (
	"fmt"
	"log"
	"strings"

	"github.com/lettia/backoffice/internal/dates"
	"github.com/lettia/backoffice/internal/domain"
)

// Breakdown holds the computed financial fields of one booking.
//
// Invariants: TotalFees is the sum of the four fee components, and
// NetRevenue = total price - TotalFees - VATAmount. PayoutExpected excludes
// the dynamic fee: it is an internal markup the payment processor never
// remits.
type Breakdown struct {
	MarketplaceFee float64
	PlatformFee    float64
	ProcessorFee   float64
	DynamicFee     float64
	TotalFees      float64
	VATAmount      float64
	NetRevenue     float64
	PayoutExpected float64

	// LeadTimeDays is nil when either the reservation date or check-in does
	// not parse.
	LeadTimeDays *int

	PricePerNight      float64
	PricePerGuestNight float64
}

// Fields returns the breakdown as record fields, ready to overlay onto the
// merged reservation. An absent lead time serializes as an empty cell.
func (b Breakdown) Fields() domain.Record {
	lead := any("")
	if b.LeadTimeDays != nil {
		lead = *b.LeadTimeDays
	}
	return domain.Record{
		domain.FieldMarketplaceFee:     b.MarketplaceFee,
		domain.FieldPlatformFee:        b.PlatformFee,
		domain.FieldProcessorFee:       b.ProcessorFee,
		domain.FieldDynamicFee:         b.DynamicFee,
		domain.FieldTotalFees:          b.TotalFees,
		domain.FieldVATAmount:          b.VATAmount,
		domain.FieldNetRevenue:         b.NetRevenue,
		domain.FieldPayoutExpected:     b.PayoutExpected,
		domain.FieldLeadTimeDays:       lead,
		domain.FieldPricePerNight:      b.PricePerNight,
		domain.FieldPricePerGuestNight: b.PricePerGuestNight,
	}
}

// Compute calculates the financial breakdown for a normalized reservation.
//
// The marketplace fee is recomputed from config here; the platform, processor,
// and dynamic fees were computed at import time and are carried through after
// numeric coercion. A panic while computing degrades to the zero breakdown:
// batch callers depend on one bad record never aborting the run.
func Compute(rec domain.Record, rates Rates) (b Breakdown) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[finance] WARNING: breakdown failed for %s: %v",
				rec.Str(domain.FieldReservationID), r)
			b = Breakdown{}
		}
	}()

	origin := strings.ToLower(rec.Str(domain.FieldOrigin))
	totalPrice := ToFloat(rec[domain.FieldTotalPrice])
	nights := ToFloat(rec[domain.FieldNights])
	guests := ToFloat(rec[domain.FieldGuestsCount])

	if origin == domain.ChannelMarketplace {
		b.MarketplaceFee = Round2(totalPrice * rates.MarketplaceFeePct)
	}
	b.PlatformFee = ToFloat(rec[domain.FieldPlatformFee])
	b.ProcessorFee = ToFloat(rec[domain.FieldProcessorFee])
	b.DynamicFee = ToFloat(rec[domain.FieldDynamicFee])

	b.VATAmount = Round2(totalPrice * rates.VATRate)
	b.TotalFees = Round2(b.MarketplaceFee + b.PlatformFee + b.ProcessorFee + b.DynamicFee)
	b.NetRevenue = Round2(totalPrice - b.TotalFees - b.VATAmount)
	b.PayoutExpected = Round2(totalPrice - b.MarketplaceFee - b.PlatformFee - b.ProcessorFee)

	resDate := dates.NormalizeOrEmpty(rec[domain.FieldReservationDate])
	checkIn := dates.NormalizeOrEmpty(rec[domain.FieldCheckIn])
	if !resDate.IsZero() && !checkIn.IsZero() {
		days := int(checkIn.Sub(resDate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		b.LeadTimeDays = &days
	}

	if nights > 0 {
		b.PricePerNight = Round2(totalPrice / nights)
	}
	if nights > 0 && guests > 0 {
		b.PricePerGuestNight = Round2(totalPrice / (nights * guests))
	}

	return b
}

// Notes builds human-readable explanations for each non-zero financial field,
// keyed by field name. The import pipeline writes them as cell annotations so
// a reviewer can see the formula behind every number.
func Notes(rec domain.Record, b Breakdown, rates Rates) map[string]string {
	totalPrice := ToFloat(rec[domain.FieldTotalPrice])
	currency := strings.ToUpper(rec.Str(domain.FieldCurrency))
	if currency == "" {
		currency = "EUR"
	}
	nights := int(ToFloat(rec[domain.FieldNights]))
	guests := int(ToFloat(rec[domain.FieldGuestsCount]))

	notes := make(map[string]string)

	if b.VATAmount != 0 {
		notes[domain.FieldVATAmount] = fmt.Sprintf(
			"Total price: %.2f %s\nVAT rate: %.1f%%\n%.2f * %.1f%% = %.2f %s",
			totalPrice, currency, rates.VATRate*100,
			totalPrice, rates.VATRate*100, b.VATAmount, currency)
	}
	if b.MarketplaceFee != 0 {
		notes[domain.FieldMarketplaceFee] = fmt.Sprintf(
			"Total price: %.2f %s\nMarketplace fee rate: %.1f%%\n%.2f * %.1f%% = %.2f %s",
			totalPrice, currency, rates.MarketplaceFeePct*100,
			totalPrice, rates.MarketplaceFeePct*100, b.MarketplaceFee, currency)
	}
	if b.PlatformFee != 0 {
		notes[domain.FieldPlatformFee] = fmt.Sprintf(
			"Total price: %.2f %s\nPlatform fee rate: %.1f%%\n%.2f * %.1f%% = %.2f %s",
			totalPrice, currency, rates.PlatformFeePct*100,
			totalPrice, rates.PlatformFeePct*100, b.PlatformFee, currency)
	}
	if b.ProcessorFee != 0 {
		fee := rates.ProcessorFeeFor(rec.Str(domain.FieldCountry))
		notes[domain.FieldProcessorFee] = fmt.Sprintf(
			"Guest country: %s\nProcessor fee policy: %.2f%% + %.2f %s\n%.2f * %.2f%% + %.2f = %.2f %s",
			rec.Str(domain.FieldCountry), fee.Pct*100, fee.Fixed, currency,
			totalPrice, fee.Pct*100, fee.Fixed, b.ProcessorFee, currency)
	}
	if b.DynamicFee != 0 {
		resDate := dates.NormalizeOrEmpty(rec[domain.FieldReservationDate])
		pct := rates.DynamicFee.RateOn(resDate)
		notes[domain.FieldDynamicFee] = fmt.Sprintf(
			"Total price: %.2f %s\nDynamic fee rate: %.2f%% (reservation date %s)\n%.2f * %.2f%% = %.2f %s",
			totalPrice, currency, pct*100, rec.Str(domain.FieldReservationDate),
			totalPrice, pct*100, b.DynamicFee, currency)
	}
	if b.TotalFees != 0 {
		notes[domain.FieldTotalFees] = fmt.Sprintf(
			"Sum of all platform fees:\n%.2f + %.2f + %.2f + %.2f = %.2f %s",
			b.MarketplaceFee, b.PlatformFee, b.ProcessorFee, b.DynamicFee,
			b.TotalFees, currency)
	}
	if b.NetRevenue != 0 {
		notes[domain.FieldNetRevenue] = fmt.Sprintf(
			"Total price: %.2f %s\nTotal fees: %.2f %s\nVAT: %.2f %s\n%.2f - %.2f - %.2f = %.2f %s",
			totalPrice, currency, b.TotalFees, currency, b.VATAmount, currency,
			totalPrice, b.TotalFees, b.VATAmount, b.NetRevenue, currency)
	}
	if b.PayoutExpected != 0 {
		notes[domain.FieldPayoutExpected] = fmt.Sprintf(
			"Total price: %.2f %s\nFees excluding dynamic fee: %.2f + %.2f + %.2f\n%.2f - (%.2f + %.2f + %.2f) = %.2f %s",
			totalPrice, currency, b.MarketplaceFee, b.PlatformFee, b.ProcessorFee,
			totalPrice, b.MarketplaceFee, b.PlatformFee, b.ProcessorFee,
			b.PayoutExpected, currency)
	}
	if b.PricePerNight != 0 && nights > 0 {
		notes[domain.FieldPricePerNight] = fmt.Sprintf(
			"Total price: %.2f %s\nNights: %d\n%.2f / %d = %.2f %s",
			totalPrice, currency, nights, totalPrice, nights, b.PricePerNight, currency)
	}
	if b.PricePerGuestNight != 0 && nights > 0 && guests > 0 {
		notes[domain.FieldPricePerGuestNight] = fmt.Sprintf(
			"Total price: %.2f %s\nNights: %d\nGuests: %d\n%.2f / (%d * %d) = %.2f %s",
			totalPrice, currency, nights, guests,
			totalPrice, nights, guests, b.PricePerGuestNight, currency)
	}

	return notes
}
