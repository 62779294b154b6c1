package domain

// Booking channels. Anything that is not the marketplace is billed under the
// website rules.
const (
	ChannelMarketplace = "marketplace"
	ChannelWebsite     = "website"
)

// StatusBooked is the only reservation status that participates in sync.
const StatusBooked = "Booked"

// Field names consulted programmatically. Tables may carry more columns than
// these; the merge policy covers the union of whatever keys show up.
const (
	FieldReservationID   = "reservation_id"
	FieldOrigin          = "origin"
	FieldMarketplaceID   = "marketplace_id"
	FieldWebsiteID       = "website_id"
	FieldGuestName       = "guest_name"
	FieldGuestEmail      = "guest_email"
	FieldGuestPhone      = "guest_phone"
	FieldGuestsCount     = "guests_count"
	FieldCheckIn         = "check_in"
	FieldCheckOut        = "check_out"
	FieldNights          = "nights"
	FieldCurrency        = "currency"
	FieldTotalPrice      = "total_price"
	FieldCountry         = "country"
	FieldReservationDate = "reservation_date"
	FieldStatus          = "status"

	FieldMarketplaceFee     = "marketplace_fee"
	FieldPlatformFee        = "platform_fee"
	FieldProcessorFee       = "processor_fee"
	FieldDynamicFee         = "dynamic_fee"
	FieldTotalFees          = "total_fees"
	FieldVATAmount          = "vat_amount"
	FieldNetRevenue         = "net_revenue"
	FieldPayoutExpected     = "payout_expected"
	FieldLeadTimeDays       = "lead_time_days"
	FieldPricePerNight      = "price_per_night"
	FieldPricePerGuestNight = "price_per_guest_night"
)

// Registration-form field names.
const (
	FieldFullName         = "full_name"
	FieldDateOfBirth      = "date_of_birth"
	FieldNationality      = "nationality"
	FieldDocumentType     = "document_type"
	FieldDocumentNumber   = "document_number"
	FieldResidenceCountry = "residence_country"
)

// FieldClass tags how the reconciler treats a field.
type FieldClass int

const (
	// ClassDefault fields follow the three-way blank rules: a blank side
	// loses, two non-blank sides resolve to incoming.
	ClassDefault FieldClass = iota

	// ClassFinancial fields are about to be recomputed downstream; the merge
	// takes incoming when present, otherwise existing, defaulting to 0.
	ClassFinancial

	// ClassAlwaysOverwrite fields are derived fresh on every pass (country
	// from phone); incoming wins even when blank.
	ClassAlwaysOverwrite
)

var financialFields = map[string]bool{
	FieldMarketplaceFee:     true,
	FieldPlatformFee:        true,
	FieldProcessorFee:       true,
	FieldDynamicFee:         true,
	FieldTotalFees:          true,
	FieldVATAmount:          true,
	FieldNetRevenue:         true,
	FieldPayoutExpected:     true,
	FieldPricePerNight:      true,
	FieldPricePerGuestNight: true,
}

var alwaysOverwriteFields = map[string]bool{
	FieldCountry: true,
	// payout_expected is also listed as always-overwrite in the import
	// policy, but the financial class takes precedence, so it resolves there.
	FieldPayoutExpected: true,
}

// Classify returns the merge class for a field. The financial class wins over
// always-overwrite when a field appears in both sets.
func Classify(field string) FieldClass {
	if financialFields[field] {
		return ClassFinancial
	}
	if alwaysOverwriteFields[field] {
		return ClassAlwaysOverwrite
	}
	return ClassDefault
}

// ReservationColumns is the canonical column order for the reservations table.
var ReservationColumns = []string{
	FieldReservationID, FieldOrigin, FieldMarketplaceID, FieldWebsiteID,
	FieldGuestName, FieldGuestEmail, FieldGuestPhone, FieldGuestsCount,
	FieldCheckIn, FieldCheckOut, FieldNights, FieldCurrency, FieldTotalPrice,
	FieldCountry, FieldReservationDate, FieldStatus,
	FieldMarketplaceFee, FieldPlatformFee, FieldProcessorFee, FieldDynamicFee,
	FieldTotalFees, FieldVATAmount, FieldNetRevenue, FieldPayoutExpected,
	FieldLeadTimeDays, FieldPricePerNight, FieldPricePerGuestNight,
}

// RegistrationColumns is the canonical column order for guest-registration
// forms.
var RegistrationColumns = []string{
	FieldFullName, FieldDateOfBirth, FieldNationality, FieldDocumentType,
	FieldDocumentNumber, FieldResidenceCountry, FieldCheckIn, FieldCheckOut,
}

// InvoiceColumns is the canonical column order for the invoice-lines table.
var InvoiceColumns = []string{
	"line_id", FieldReservationID, "external_id", "line_type",
	FieldGuestName, FieldDocumentNumber, FieldCountry,
	FieldCheckIn, FieldCheckOut, FieldNights, FieldGuestsCount,
	"tax_guests_count", "lodging_amount", "tourist_tax", "line_total",
	"description", "tax_description",
	FieldMarketplaceFee, FieldPlatformFee, FieldProcessorFee, FieldDynamicFee,
	FieldTotalFees, "invoice_status", "invoice_number", "invoice_date",
}
