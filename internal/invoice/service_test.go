package invoice

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
	"github.com/lettia/backoffice/internal/ledger"
	"github.com/lettia/backoffice/internal/match"
	"github.com/lettia/backoffice/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.SQLite, *ledger.Ledger) {
	t.Helper()

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.SetHeaders(TableReservations, domain.ReservationColumns))
	require.NoError(t, st.SetHeaders(TableRegistrations, domain.RegistrationColumns))
	require.NoError(t, st.SetHeaders(TableInvoices, domain.InvoiceColumns))

	led, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	svc := NewService(st, led, match.Matcher{}, Builder{TaxPolicy: finance.DefaultTaxPolicy()})
	return svc, st, led
}

func seedReservation(t *testing.T, st *store.SQLite, id, origin string) domain.Record {
	t.Helper()
	rec := domain.Record{
		domain.FieldReservationID:   id,
		domain.FieldOrigin:          origin,
		domain.FieldMarketplaceID:   "HM" + id,
		domain.FieldWebsiteID:       id,
		domain.FieldGuestName:       "Marta Oliveira",
		domain.FieldCheckIn:         "2025-06-01",
		domain.FieldCheckOut:        "2025-06-05",
		domain.FieldNights:          4,
		domain.FieldGuestsCount:     2,
		domain.FieldTotalPrice:      1000.0,
		domain.FieldReservationDate: "2025-01-10",
	}
	require.NoError(t, st.Upsert(TableReservations, rec, domain.FieldReservationID))
	return rec
}

func seedForm(t *testing.T, st *store.SQLite, name, dob string) {
	t.Helper()
	require.NoError(t, st.AppendRows(TableRegistrations, []domain.Record{{
		domain.FieldFullName:    name,
		domain.FieldDateOfBirth: dob,
		domain.FieldCheckIn:     "2025-06-01",
		domain.FieldCheckOut:    "2025-06-05",
	}}))
}

func TestRunGeneratesLines(t *testing.T) {
	svc, st, led := newTestService(t)
	seedReservation(t, st, "B10001", domain.ChannelMarketplace)
	seedReservation(t, st, "B10002", domain.ChannelWebsite)
	seedForm(t, st, "Marta Oliveira", "1990-05-10")
	seedForm(t, st, "Rui Oliveira", "1989-03-02")

	result, err := svc.Run(false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Generated)
	assert.Equal(t, 0, result.Errors)

	lines, err := st.ReadAll(TableInvoices)
	require.NoError(t, err)
	assert.Len(t, lines, 4)

	marked, err := led.IsMarked(ledger.SetInvoiced, "B10001")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestRunIsIdempotent(t *testing.T) {
	svc, st, _ := newTestService(t)
	seedReservation(t, st, "B10001", domain.ChannelMarketplace)

	first, err := svc.Run(false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	second, err := svc.Run(false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 1, second.Skipped)

	lines, err := st.ReadAll(TableInvoices)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestRunRecoversFromPartialWrite(t *testing.T) {
	svc, st, led := newTestService(t)
	res := seedReservation(t, st, "B10001", domain.ChannelMarketplace)

	// Lines written but the ledger mark lost, as after a mid-run crash.
	lines := Builder{TaxPolicy: finance.DefaultTaxPolicy()}.BuildLines(res, nil, 0, 0)
	require.NoError(t, st.AppendRows(TableInvoices, lines))

	result, err := svc.Run(false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)
	assert.Equal(t, 1, result.Skipped)

	stored, err := st.ReadAll(TableInvoices)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// The recovery marks the ledger so the count scan is not needed again.
	marked, err := led.IsMarked(ledger.SetInvoiced, "B10001")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestRunDryRun(t *testing.T) {
	svc, st, led := newTestService(t)
	seedReservation(t, st, "B10001", domain.ChannelMarketplace)

	result, err := svc.Run(true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)

	lines, err := st.ReadAll(TableInvoices)
	require.NoError(t, err)
	assert.Empty(t, lines)

	marked, err := led.IsMarked(ledger.SetInvoiced, "B10001")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestRunTaxOnMatchedParty(t *testing.T) {
	svc, st, _ := newTestService(t)
	seedReservation(t, st, "B10001", domain.ChannelMarketplace)
	seedForm(t, st, "Marta Oliveira", "1990-05-10")
	seedForm(t, st, "Tiago Oliveira", "2015-03-01")

	_, err := svc.Run(false)
	require.NoError(t, err)

	lines, err := st.ReadAll(TableInvoices)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	// One adult over four nights; the minor is exempt.
	assert.InDelta(t, 8.00, finance.ToFloat(lines[0]["tourist_tax"]), 0.001)
	assert.Equal(t, 1, int(finance.ToFloat(lines[0]["tax_guests_count"])))
	assert.Equal(t, "Marta Oliveira", lines[0].Str(domain.FieldGuestName))
	assert.Equal(t, "Touristic Tax – 1 guests × 4 nights", lines[0].Str("tax_description"))
}

func TestRunSkipsBlankIDs(t *testing.T) {
	svc, st, _ := newTestService(t)
	require.NoError(t, st.AppendRows(TableReservations, []domain.Record{{
		domain.FieldReservationID: "",
		domain.FieldOrigin:        domain.ChannelMarketplace,
	}}))

	result, err := svc.Run(false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)
	assert.Equal(t, 1, result.Skipped)
}
