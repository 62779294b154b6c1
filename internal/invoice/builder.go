// Package invoice turns matched reservations into invoice line records and
// runs the idempotent generation pass over the whole reservations table.
package invoice

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
)

// Line types. Marketplace bookings bill as one full line; website bookings
// split into a deposit, a credit-note reversal of the deposit, and the final
// full-amount line.
const (
	LineMarketplace     = "marketplace"
	LineDeposit         = "deposit"
	LineDepositReversal = "deposit_reversal"
	LineFinal           = "final"
)

// depositShare is the fraction of the total invoiced up front on website
// bookings.
const depositShare = 0.30

// taxErrorDescription flags a tourist-tax amount that does not reconcile with
// the taxed-guest count; it replaces the normal description so a human
// reviews the charge instead of trusting it.
const taxErrorDescription = "ERROR in tourist tax count – please review manually"

// Builder assembles invoice line records.
type Builder struct {
	TaxPolicy finance.TaxPolicy
}

// BuildLines generates the invoice lines for one reservation. matchedGuest
// may be nil; tax and taxedCount come from the matcher's tax computation.
func (b Builder) BuildLines(res, matchedGuest domain.Record, tax float64, taxedCount int) []domain.Record {
	origin := strings.ToLower(res.Str(domain.FieldOrigin))
	totalPrice := finance.ParsePrice(res[domain.FieldTotalPrice])

	if origin == domain.ChannelMarketplace {
		return []domain.Record{
			b.buildLine(res, matchedGuest, LineMarketplace, totalPrice, tax, taxedCount),
		}
	}

	deposit := finance.Round2(totalPrice * depositShare)
	return []domain.Record{
		b.buildLine(res, matchedGuest, LineDeposit, deposit, 0, 0),
		b.buildLine(res, matchedGuest, LineDepositReversal, -deposit, 0, 0),
		b.buildLine(res, matchedGuest, LineFinal, totalPrice, tax, taxedCount),
	}
}

// ExpectedLineCount returns how many lines a reservation bills as.
func ExpectedLineCount(res domain.Record) int {
	if strings.ToLower(res.Str(domain.FieldOrigin)) == domain.ChannelMarketplace {
		return 1
	}
	return 3
}

// ExternalID returns the channel-native identifier used on invoice lines.
func ExternalID(res domain.Record) string {
	id := res.Str(domain.FieldReservationID)
	if strings.ToLower(res.Str(domain.FieldOrigin)) == domain.ChannelMarketplace {
		if v := res.Str(domain.FieldMarketplaceID); v != "" {
			return v
		}
		return id
	}
	if v := res.Str(domain.FieldWebsiteID); v != "" {
		return v
	}
	return id
}

func (b Builder) buildLine(res, guest domain.Record, lineType string, lodging, tax float64, taxedCount int) domain.Record {
	// Guest identity: prefer the matched registration entry, fall back to
	// the reservation's own fields.
	guestName := res.Str(domain.FieldGuestName)
	document := ""
	country := res.Str(domain.FieldCountry)
	if guest != nil {
		if v := guest.Str(domain.FieldFullName); v != "" {
			guestName = v
		}
		if v := guest.Str(domain.FieldDocumentNumber); v != "" {
			document = v
		}
		if v := guest.Str(domain.FieldResidenceCountry); v != "" {
			country = v
		}
	}

	return domain.Record{
		"line_id":                  uuid.NewString(),
		domain.FieldReservationID:  res.Str(domain.FieldReservationID),
		"external_id":              ExternalID(res),
		"line_type":                lineType,
		domain.FieldGuestName:      guestName,
		domain.FieldDocumentNumber: document,
		domain.FieldCountry:        country,
		domain.FieldCheckIn:        res.Str(domain.FieldCheckIn),
		domain.FieldCheckOut:       res.Str(domain.FieldCheckOut),
		domain.FieldNights:         int(finance.ToFloat(res[domain.FieldNights])),
		domain.FieldGuestsCount:    int(finance.ToFloat(res[domain.FieldGuestsCount])),
		"tax_guests_count":         taxedCount,
		"lodging_amount":           lodging,
		"tourist_tax":              tax,
		"line_total":               finance.Round2(lodging + tax),
		"description":              b.lodgingDescription(res, lineType),
		"tax_description":          b.taxDescription(res, tax, taxedCount),
		domain.FieldMarketplaceFee: finance.ParsePrice(res[domain.FieldMarketplaceFee]),
		domain.FieldPlatformFee:    finance.ParsePrice(res[domain.FieldPlatformFee]),
		domain.FieldProcessorFee:   finance.ParsePrice(res[domain.FieldProcessorFee]),
		domain.FieldDynamicFee:     finance.ParsePrice(res[domain.FieldDynamicFee]),
		domain.FieldTotalFees:      finance.ParsePrice(res[domain.FieldTotalFees]),
		"invoice_status":           "Forecast",
		"invoice_number":           "",
		"invoice_date":             "",
	}
}

// lodgingDescription builds the per-line-type description from a
// deterministic template.
func (b Builder) lodgingDescription(res domain.Record, lineType string) string {
	checkIn := res.Str(domain.FieldCheckIn)
	checkOut := res.Str(domain.FieldCheckOut)

	if lineType == LineMarketplace {
		return fmt.Sprintf("Marketplace Booking %s – %s – %s",
			ExternalID(res), checkIn, checkOut)
	}

	base := fmt.Sprintf("Website Booking %s – %s – %s", ExternalID(res), checkIn, checkOut)
	switch lineType {
	case LineDeposit:
		return base + " – Deposit"
	case LineDepositReversal:
		return base + " – Credit note for deposit"
	default:
		return base
	}
}

// taxDescription describes the tourist-tax charge, cross-checking the amount
// against the taxed-guest count: the implied count is amount / rate / nights,
// and a mismatch beyond floating tolerance flags the line for review.
func (b Builder) taxDescription(res domain.Record, tax float64, taxedCount int) string {
	if tax <= 0 {
		return ""
	}
	nights := int(finance.ToFloat(res[domain.FieldNights]))
	if nights <= 0 {
		return ""
	}

	implied := tax / b.TaxPolicy.NightlyRate / float64(nights)
	if math.Abs(implied-float64(taxedCount)) >= 0.01 {
		log.Printf("[invoice] WARNING: tourist tax inconsistency for %s: amount=%.2f nights=%d implied=%.2f counted=%d",
			res.Str(domain.FieldReservationID), tax, nights, implied, taxedCount)
		return taxErrorDescription
	}
	return fmt.Sprintf("Touristic Tax – %d guests × %d nights", taxedCount, nights)
}
