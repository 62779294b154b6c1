package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
)

func testBuilder() Builder {
	return Builder{TaxPolicy: finance.DefaultTaxPolicy()}
}

func marketplaceReservation() domain.Record {
	return domain.Record{
		domain.FieldReservationID:  "B10001",
		domain.FieldOrigin:         domain.ChannelMarketplace,
		domain.FieldMarketplaceID:  "HM12345678",
		domain.FieldGuestName:      "Marta Oliveira",
		domain.FieldCheckIn:        "2025-06-01",
		domain.FieldCheckOut:       "2025-06-05",
		domain.FieldNights:         4,
		domain.FieldGuestsCount:    2,
		domain.FieldTotalPrice:     1000.0,
		domain.FieldCountry:        "Portugal",
		domain.FieldMarketplaceFee: 30.0,
		domain.FieldTotalFees:      30.0,
	}
}

func websiteReservation() domain.Record {
	rec := marketplaceReservation()
	rec[domain.FieldOrigin] = domain.ChannelWebsite
	rec[domain.FieldMarketplaceID] = ""
	rec[domain.FieldWebsiteID] = "B10001"
	return rec
}

func TestBuildLinesMarketplace(t *testing.T) {
	lines := testBuilder().BuildLines(marketplaceReservation(), nil, 16.00, 2)
	require.Len(t, lines, 1)

	line := lines[0]
	assert.Equal(t, LineMarketplace, line.Str("line_type"))
	assert.Equal(t, "HM12345678", line.Str("external_id"))
	assert.Equal(t, 1000.0, line["lodging_amount"])
	assert.Equal(t, 16.0, line["tourist_tax"])
	assert.Equal(t, 1016.0, line["line_total"])
	assert.Equal(t, "Marketplace Booking HM12345678 – 2025-06-01 – 2025-06-05", line.Str("description"))
	assert.Equal(t, "Touristic Tax – 2 guests × 4 nights", line.Str("tax_description"))
	assert.Equal(t, "Forecast", line.Str("invoice_status"))
	assert.NotEmpty(t, line.Str("line_id"))
}

func TestBuildLinesWebsite(t *testing.T) {
	lines := testBuilder().BuildLines(websiteReservation(), nil, 16.00, 2)
	require.Len(t, lines, 3)

	deposit, reversal, final := lines[0], lines[1], lines[2]

	assert.Equal(t, LineDeposit, deposit.Str("line_type"))
	assert.Equal(t, 300.0, deposit["lodging_amount"])
	assert.Equal(t, 0.0, deposit["tourist_tax"])
	assert.Equal(t, "Website Booking B10001 – 2025-06-01 – 2025-06-05 – Deposit", deposit.Str("description"))
	assert.Equal(t, "", deposit.Str("tax_description"))

	assert.Equal(t, LineDepositReversal, reversal.Str("line_type"))
	assert.Equal(t, -300.0, reversal["lodging_amount"])
	assert.Equal(t, "Website Booking B10001 – 2025-06-01 – 2025-06-05 – Credit note for deposit", reversal.Str("description"))

	assert.Equal(t, LineFinal, final.Str("line_type"))
	assert.Equal(t, 1000.0, final["lodging_amount"])
	assert.Equal(t, 16.0, final["tourist_tax"])
	assert.Equal(t, 1016.0, final["line_total"])
	assert.Equal(t, "Website Booking B10001 – 2025-06-01 – 2025-06-05", final.Str("description"))
	assert.Equal(t, "Touristic Tax – 2 guests × 4 nights", final.Str("tax_description"))

	// Every line gets its own id.
	assert.NotEqual(t, deposit.Str("line_id"), final.Str("line_id"))

	// Deposit and reversal cancel out; only the final amount remains.
	sum := deposit["lodging_amount"].(float64) +
		reversal["lodging_amount"].(float64) +
		final["lodging_amount"].(float64)
	assert.InDelta(t, 1000.0, sum, 0.001)
}

func TestBuildLinesGuestIdentity(t *testing.T) {
	guest := domain.Record{
		domain.FieldFullName:         "Marta S. Oliveira",
		domain.FieldDocumentNumber:   "PT123456",
		domain.FieldResidenceCountry: "France",
	}

	lines := testBuilder().BuildLines(marketplaceReservation(), guest, 0, 0)
	require.Len(t, lines, 1)

	assert.Equal(t, "Marta S. Oliveira", lines[0].Str(domain.FieldGuestName))
	assert.Equal(t, "PT123456", lines[0].Str(domain.FieldDocumentNumber))
	assert.Equal(t, "France", lines[0].Str(domain.FieldCountry))
}

func TestBuildLinesNoMatchedGuest(t *testing.T) {
	lines := testBuilder().BuildLines(marketplaceReservation(), nil, 0, 0)
	require.Len(t, lines, 1)

	assert.Equal(t, "Marta Oliveira", lines[0].Str(domain.FieldGuestName))
	assert.Equal(t, "", lines[0].Str(domain.FieldDocumentNumber))
	assert.Equal(t, "Portugal", lines[0].Str(domain.FieldCountry))
	assert.Equal(t, "", lines[0].Str("tax_description"))
}

func TestTaxDescriptionInconsistency(t *testing.T) {
	// A capped long stay: 14 EUR over 10 nights implies 0.7 guests, which
	// cannot reconcile with the counted 1, so the line is flagged.
	res := marketplaceReservation()
	res[domain.FieldNights] = 10

	lines := testBuilder().BuildLines(res, nil, 14.00, 1)
	require.Len(t, lines, 1)
	assert.Equal(t, taxErrorDescription, lines[0].Str("tax_description"))
}

func TestExpectedLineCount(t *testing.T) {
	assert.Equal(t, 1, ExpectedLineCount(marketplaceReservation()))
	assert.Equal(t, 3, ExpectedLineCount(websiteReservation()))
}

func TestExternalID(t *testing.T) {
	assert.Equal(t, "HM12345678", ExternalID(marketplaceReservation()))
	assert.Equal(t, "B10001", ExternalID(websiteReservation()))

	// Marketplace bookings without a marketplace id fall back to the
	// internal one.
	res := marketplaceReservation()
	res[domain.FieldMarketplaceID] = ""
	assert.Equal(t, "B10001", ExternalID(res))
}
