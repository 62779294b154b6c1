package ingestion

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/lettia/backoffice/internal/dates"
	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
)

// RequiredCSVColumns are the export columns the mapper depends on.
var RequiredCSVColumns = []string{
	"Id", "Source", "SourceText", "Name", "Email", "Phone", "People",
	"DateArrival", "DateDeparture", "Nights", "Currency", "TotalAmount",
	"DateCreated", "Status",
}

// phoneCountries maps international dialing prefixes to country names;
// longest prefix wins.
var phoneCountries = map[string]string{
	"+1": "United States", "+30": "Greece", "+31": "Netherlands",
	"+32": "Belgium", "+33": "France", "+34": "Spain", "+351": "Portugal",
	"+352": "Luxembourg", "+353": "Ireland", "+354": "Iceland",
	"+356": "Malta", "+357": "Cyprus", "+358": "Finland", "+359": "Bulgaria",
	"+36": "Hungary", "+370": "Lithuania", "+371": "Latvia", "+372": "Estonia",
	"+385": "Croatia", "+386": "Slovenia", "+39": "Italy", "+40": "Romania",
	"+41": "Switzerland", "+420": "Czech Republic", "+421": "Slovakia",
	"+43": "Austria", "+44": "United Kingdom", "+45": "Denmark",
	"+46": "Sweden", "+47": "Norway", "+48": "Poland", "+49": "Germany",
	"+52": "Mexico", "+55": "Brazil", "+61": "Australia", "+64": "New Zealand",
	"+65": "Singapore", "+81": "Japan", "+82": "South Korea", "+86": "China",
	"+90": "Turkey", "+91": "India",
}

var phonePrefixes = func() []string {
	out := make([]string, 0, len(phoneCountries))
	for p := range phoneCountries {
		out = append(out, p)
	}
	// Longest prefix first.
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}()

// Mapper converts CSV export rows into normalized reservation records,
// computing the import-time fee fields as it goes.
type Mapper struct {
	rates finance.Rates
}

// NewMapper creates a mapper using the given rate configuration.
func NewMapper(rates finance.Rates) *Mapper {
	return &Mapper{rates: rates}
}

// MapRow converts one export row to the internal reservation schema. Rows
// whose status is not "Booked" do not participate in sync; MapRow returns
// false for them.
func (m *Mapper) MapRow(row domain.Record) (domain.Record, bool) {
	status := row.Str("Status")
	if status != domain.StatusBooked {
		log.Printf("[ingestion] Skipping reservation %s: status %q", row.Str("Id"), status)
		return nil, false
	}

	csvID := row.Str("Id")
	source := row.Str("Source")
	phone := normalizePhone(row.Str("Phone"))
	country := countryFromPhone(phone)

	checkIn := dates.Canonical(row["DateArrival"])
	checkOut := dates.Canonical(row["DateDeparture"])
	resDate := dates.Canonical(firstDateField(row["DateCreated"]))

	origin := domain.ChannelWebsite
	marketplaceID, websiteID := "", ""
	if source == "Marketplace" {
		origin = domain.ChannelMarketplace
		marketplaceID = row.Str("SourceText")
	} else {
		websiteID = csvID
	}

	totalPrice := finance.ToFloat(row["TotalAmount"])

	rec := domain.Record{
		domain.FieldReservationID:   csvID,
		domain.FieldOrigin:          origin,
		domain.FieldMarketplaceID:   marketplaceID,
		domain.FieldWebsiteID:       websiteID,
		domain.FieldGuestName:       row.Str("Name"),
		domain.FieldGuestEmail:      row.Str("Email"),
		domain.FieldGuestPhone:      phone,
		domain.FieldGuestsCount:     intOrBlank(row["People"]),
		domain.FieldCheckIn:         checkIn,
		domain.FieldCheckOut:        checkOut,
		domain.FieldNights:          intOrBlank(row["Nights"]),
		domain.FieldCurrency:        row.Str("Currency"),
		domain.FieldTotalPrice:      totalPrice,
		domain.FieldCountry:         country,
		domain.FieldReservationDate: resDate,
		domain.FieldStatus:          status,
		domain.FieldVATAmount:       finance.ToFloat(row["IncludedVatTotal"]),
	}

	// Import-time fees. The marketplace fee is left at zero here; the
	// calculator recomputes it from config on every pass.
	platformFee := 0.0
	processorFee := 0.0
	if origin == domain.ChannelWebsite {
		platformFee = finance.Round2(totalPrice * m.rates.PlatformFeePct)
		pf := m.rates.ProcessorFeeFor(country)
		processorFee = finance.Round2(totalPrice*pf.Pct + pf.Fixed)
	}

	dynamicFee := 0.0
	if d := dates.NormalizeOrEmpty(resDate); !d.IsZero() {
		dynamicFee = finance.Round2(totalPrice * m.rates.DynamicFee.RateOn(d))
	}

	rec[domain.FieldMarketplaceFee] = 0.0
	rec[domain.FieldPlatformFee] = platformFee
	rec[domain.FieldProcessorFee] = processorFee
	rec[domain.FieldDynamicFee] = dynamicFee
	rec[domain.FieldTotalFees] = finance.Round2(platformFee + processorFee + dynamicFee)
	rec[domain.FieldPayoutExpected] = finance.Round2(totalPrice - platformFee - processorFee)

	return rec, true
}

var (
	phoneJunk = regexp.MustCompile(`[\s\-\(\)\.,]`)
	phoneSep  = regexp.MustCompile(`[;,]+`)
)

// normalizePhone rewrites a phone number into international form with a
// leading single quote, which forces the spreadsheet backend to keep it as
// text instead of reinterpreting "+351..." as a number or formula.
func normalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	// Multiple numbers in one cell: take the first.
	parts := phoneSep.Split(strings.TrimSpace(raw), -1)
	first := ""
	if len(parts) > 0 {
		first = parts[0]
	}
	phone := phoneJunk.ReplaceAllString(first, "")
	if phone == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(phone, "+"):
		return "'" + phone
	case strings.HasPrefix(phone, "00"):
		return "'+" + phone[2:]
	case isDigits(phone):
		return "'+" + phone
	default:
		return "'" + phone
	}
}

// countryFromPhone resolves the guest country from the phone's dialing
// prefix, longest prefix first. Returns "" for unknown prefixes.
func countryFromPhone(normalized string) string {
	phone := strings.TrimPrefix(normalized, "'")
	if phone == "" {
		return ""
	}
	if !strings.HasPrefix(phone, "+") {
		if isDigits(phone) && len(phone) >= 8 {
			phone = "+" + phone
		} else {
			return ""
		}
	}
	for _, prefix := range phonePrefixes {
		if strings.HasPrefix(phone, prefix) {
			return phoneCountries[prefix]
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// intOrBlank coerces a count column to int, keeping "" for unparseable or
// absent values so the merge treats them as not-provided.
func intOrBlank(v any) any {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(toStr(v)), ".0"))
	if s == "" {
		return ""
	}
	f := finance.ToFloat(s)
	if f == 0 && s != "0" {
		return ""
	}
	return int(f)
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// firstDateField strips a trailing timestamp from a date-time cell so the
// strict normalizer can parse the date part.
func firstDateField(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if i := strings.IndexAny(s, " T"); i > 0 {
		return s[:i]
	}
	return s
}
