package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
	"github.com/lettia/backoffice/internal/ingestion"
	"github.com/lettia/backoffice/internal/ledger"
	"github.com/lettia/backoffice/internal/store"
)

const exportHeader = "Id,Source,SourceText,Name,Email,Phone,People,DateArrival,DateDeparture,Nights,Currency,TotalAmount,IncludedVatTotal,DateCreated,Status\n"

func testRates() finance.Rates {
	return finance.Rates{
		VATRate:           0.06,
		MarketplaceFeePct: 0.03,
		PlatformFeePct:    0.01,
		ProcessorFees: map[string]finance.ProcessorFee{
			"United Kingdom": {Pct: 0.025, Fixed: 0.50},
		},
		ProcessorFeeDefault: finance.ProcessorFee{Pct: 0.0325, Fixed: 0.50},
		DynamicFee: finance.Schedule{
			{From: time.Date(2024, time.November, 12, 0, 0, 0, 0, time.UTC), Pct: 0.008},
		},
	}
}

func newTestService(t *testing.T) (*Service, *store.SQLite, *ledger.Ledger, string) {
	t.Helper()

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SetHeaders(TableReservations, domain.ReservationColumns))

	led, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	csvDir := t.TempDir()
	svc := NewService(st, led, ingestion.NewImporter(csvDir), testRates())
	return svc, st, led, csvDir
}

func writeExport(t *testing.T, dir string, rows string) {
	t.Helper()
	path := filepath.Join(dir, "bookings.csv")
	require.NoError(t, os.WriteFile(path, []byte(exportHeader+rows), 0o644))
}

func TestRunImports(t *testing.T) {
	svc, st, led, csvDir := newTestService(t)
	writeExport(t, csvDir,
		"B10001,Marketplace,HM12345678,Marta Oliveira,m@example.com,+351 912 345 678,2,2025-06-01,2025-06-05,4,EUR,1000,56.60,2025-01-10 09:15:00,Booked\n"+
			"B10002,Website,,James Whitfield,j@example.com,+44 7700 900123,2,2025-07-01,2025-07-04,3,EUR,600,33.96,2025-02-01 10:00:00,Booked\n"+
			"B10003,Website,,Lost Booking,l@example.com,,1,2025-08-01,2025-08-02,1,EUR,90,5.09,2025-03-01 08:30:00,Declined\n")

	result, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Merged)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Annotated)

	rows, err := st.ReadAll(TableReservations)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "B10001", first.Str(domain.FieldReservationID))
	assert.Equal(t, domain.ChannelMarketplace, first.Str(domain.FieldOrigin))
	assert.Equal(t, "Portugal", first.Str(domain.FieldCountry))
	// The calculator overlays the marketplace fee and VAT.
	assert.InDelta(t, 30.00, finance.ToFloat(first[domain.FieldMarketplaceFee]), 0.001)
	assert.InDelta(t, 60.00, finance.ToFloat(first[domain.FieldVATAmount]), 0.001)

	marked, err := led.IsMarked(ledger.SetImported, "B10001")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestRunIsIdempotent(t *testing.T) {
	svc, st, _, csvDir := newTestService(t)
	writeExport(t, csvDir,
		"B10001,Marketplace,HM12345678,Marta Oliveira,m@example.com,+351 912 345 678,2,2025-06-01,2025-06-05,4,EUR,1000,56.60,2025-01-10 09:15:00,Booked\n")

	first, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	second, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Skipped)

	rows, err := st.ReadAll(TableReservations)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunMergesKeepingCorrections(t *testing.T) {
	svc, st, _, csvDir := newTestService(t)

	// A previously imported row with a hand-entered email correction.
	require.NoError(t, st.Upsert(TableReservations, domain.Record{
		domain.FieldReservationID: "B10001",
		domain.FieldGuestName:     "Marta Oliveira",
		domain.FieldGuestEmail:    "corrected@example.com",
		domain.FieldTotalPrice:    1000.0,
	}, domain.FieldReservationID))

	writeExport(t, csvDir,
		"B10001,Marketplace,HM12345678,Marta Oliveira,,+351 912 345 678,2,2025-06-01,2025-06-05,4,EUR,1000,56.60,2025-01-10 09:15:00,Booked\n")

	result, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 0, result.Imported)

	rows, err := st.ReadAll(TableReservations)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "corrected@example.com", rows[0].Str(domain.FieldGuestEmail))
	assert.Equal(t, "Marta Oliveira", rows[0].Str(domain.FieldGuestName))
}

func TestRunAnnotates(t *testing.T) {
	svc, st, led, csvDir := newTestService(t)
	writeExport(t, csvDir,
		"B10001,Marketplace,HM12345678,Marta Oliveira,m@example.com,+351 912 345 678,2,2025-06-01,2025-06-05,4,EUR,1000,56.60,2025-01-10 09:15:00,Booked\n")

	_, err := svc.Run()
	require.NoError(t, err)

	note, err := st.NoteFor(TableReservations, "B10001", domain.FieldVATAmount)
	require.NoError(t, err)
	assert.Contains(t, note, "VAT rate: 6.0%")

	marked, err := led.IsMarked(ledger.SetAnnotated, "B10001")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestRunFailsWithoutFile(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Run()
	assert.ErrorIs(t, err, ingestion.ErrNoCSV)
}

func TestRunFailsOnMissingColumns(t *testing.T) {
	svc, _, _, csvDir := newTestService(t)
	path := filepath.Join(csvDir, "bookings.csv")
	require.NoError(t, os.WriteFile(path, []byte("Id,Name\nB1,Marta\n"), 0o644))

	_, err := svc.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestRunCountsMissingIDs(t *testing.T) {
	svc, st, _, csvDir := newTestService(t)
	writeExport(t, csvDir,
		",Website,,No Id,n@example.com,,1,2025-08-01,2025-08-02,1,EUR,90,5.09,2025-03-01,Booked\n")

	result, err := svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 0, result.Imported)

	rows, err := st.ReadAll(TableReservations)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
