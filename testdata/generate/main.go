// Command generate writes a sample booking export CSV into the watched
// directory, for local runs against realistic-looking data.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var header = []string{
	"Id", "Source", "SourceText", "Name", "Email", "Phone", "People",
	"DateArrival", "DateDeparture", "Nights", "Currency", "TotalAmount",
	"IncludedVatTotal", "DateCreated", "Status",
}

var guests = []struct {
	name  string
	phone string
}{
	{"Marta Oliveira", "+351 912 345 678"},
	{"James Whitfield", "+44 7700 900123"},
	{"Claire Dubois", "0033 6 12 34 56 78"},
	{"Jonas Becker", "+49 (0) 171 2345678"},
	{"Sofia Rossi", "+39 333 123 4567"},
	{"Pieter van Dam", "+31-6-12345678"},
}

func main() {
	dir := flag.String("dir", "./data/exports", "directory to write the export into")
	rows := flag.Int("rows", 12, "number of bookings to generate")
	seed := flag.Int64("seed", 0, "random seed (0 uses the clock)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", *dir, err)
	}

	path := filepath.Join(*dir, fmt.Sprintf("bookings-%s.csv", time.Now().Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		log.Fatalf("Failed to write header: %v", err)
	}

	for i := 0; i < *rows; i++ {
		if err := w.Write(booking(rng, i)); err != nil {
			log.Fatalf("Failed to write row: %v", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("Failed to flush: %v", err)
	}
	log.Printf("Wrote %d bookings to %s (seed %d)", *rows, path, *seed)
}

func booking(rng *rand.Rand, i int) []string {
	g := guests[rng.Intn(len(guests))]
	id := fmt.Sprintf("B%05d", 10000+i)

	source, sourceText := "Website", ""
	if rng.Intn(2) == 0 {
		source, sourceText = "Marketplace", fmt.Sprintf("HM%08d", rng.Intn(100000000))
	}

	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, rng.Intn(200))
	arrival := created.AddDate(0, 0, 1+rng.Intn(90))
	nights := 1 + rng.Intn(9)
	departure := arrival.AddDate(0, 0, nights)

	people := 1 + rng.Intn(5)
	total := float64(nights) * (80 + float64(rng.Intn(120)))
	vat := total * 0.06 / 1.06

	status := "Booked"
	if rng.Intn(10) == 0 {
		status = "Declined"
	}

	return []string{
		id,
		source,
		sourceText,
		g.name,
		fmt.Sprintf("guest%d@example.com", i),
		g.phone,
		fmt.Sprintf("%d", people),
		arrival.Format("2006-01-02"),
		departure.Format("2006-01-02"),
		fmt.Sprintf("%d", nights),
		"EUR",
		fmt.Sprintf("%.2f", total),
		fmt.Sprintf("%.2f", vat),
		created.Format("2006-01-02") + " 14:05:00",
		status,
	}
}
