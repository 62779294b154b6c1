// Package dates parses the date representations that show up across booking
// exports, spreadsheet cells, and registration forms, and normalizes them all
// to a calendar day at UTC midnight.
package dates

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrFormat is returned by Normalize when no accepted representation matches.
var ErrFormat = errors.New("dates: unrecognized format")

// Layout is the canonical string form for a normalized date.
const Layout = "2006-01-02"

// serialEpoch is the classic spreadsheet epoch: serial number N means N days
// after 1899-12-30.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// strictLayouts are tried in order by Normalize. MM/DD comes before DD/MM, so
// ambiguous slashed dates resolve American-style; callers that need
// determinism should use day values above 12.
var strictLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

// Normalize parses value into a calendar date. Accepted inputs: the four
// strict layouts, and numeric or numeric-string spreadsheet serials.
func Normalize(value any) (time.Time, error) {
	switch n := value.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: nil value", ErrFormat)
	case int:
		return fromSerial(float64(n))
	case int64:
		return fromSerial(float64(n))
	case float64:
		return fromSerial(n)
	case float32:
		return fromSerial(float64(n))
	}

	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrFormat)
	}

	for _, layout := range strictLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	// Numeric strings are spreadsheet serials.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSerial(f)
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrFormat, s)
}

// NormalizeOrEmpty is the tolerant variant of Normalize: parse failures yield
// the zero time so one bad cell cannot abort a batch.
func NormalizeOrEmpty(value any) time.Time {
	t, err := Normalize(value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Canonical returns the YYYY-MM-DD form of value, or "" when it does not
// parse.
func Canonical(value any) string {
	t, err := Normalize(value)
	if err != nil {
		return ""
	}
	return t.Format(Layout)
}

func fromSerial(f float64) (time.Time, error) {
	days := int(f)
	if days < -693593 || days > 2958465 { // outside year 0001..9999
		return time.Time{}, fmt.Errorf("%w: serial %v out of range", ErrFormat, f)
	}
	return serialEpoch.AddDate(0, 0, days), nil
}

// Registration-form dates arrive in far looser shapes than booking exports:
// two-digit years, unpadded months, trailing timestamps, or dates buried in
// free text. ParseFlexible accepts all of those and never fails hard.

var (
	twoDigitYMD  = regexp.MustCompile(`^(\d{2})[-/](\d{1,2})[-/](\d{1,2})$`)
	twoDigitDMY  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2})$`)
	embeddedYMD  = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	embeddedYYMD = regexp.MustCompile(`(\d{2})[-/](\d{1,2})[-/](\d{1,2})`)
)

var flexibleLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04:05",
	"2/1/2006",
	"2-1-2006",
}

// ParseFlexible parses a registration-form date, returning false when nothing
// usable can be extracted. Two-digit years resolve to 2000+YY when YY < 50,
// else 1900+YY.
func ParseFlexible(raw any) (time.Time, bool) {
	if raw == nil {
		return time.Time{}, false
	}
	s := strings.TrimSpace(fmt.Sprint(raw))
	if s == "" {
		return time.Time{}, false
	}

	// Two-digit-year forms come first: "25-9-14" means 2025-09-14, not a
	// day-month-year reading.
	if m := twoDigitYMD.FindStringSubmatch(s); m != nil {
		if t, ok := makeDate(expandYear(m[1]), m[2], m[3]); ok {
			return t, true
		}
	}

	for _, layout := range flexibleLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	if m := twoDigitDMY.FindStringSubmatch(s); m != nil {
		if t, ok := makeDate(expandYear(m[3]), m[2], m[1]); ok {
			return t, true
		}
	}

	// Fall back to extracting a date-looking substring.
	if m := embeddedYMD.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		if t, ok := makeDate(y, m[2], m[3]); ok {
			return t, true
		}
	}
	if m := embeddedYYMD.FindStringSubmatch(s); m != nil {
		if t, ok := makeDate(expandYear(m[1]), m[2], m[3]); ok {
			return t, true
		}
	}

	log.Printf("[dates] WARNING: could not parse flexible date %q", s)
	return time.Time{}, false
}

func expandYear(yy string) int {
	y, _ := strconv.Atoi(yy)
	if y < 50 {
		return 2000 + y
	}
	return 1900 + y
}

func makeDate(year int, month, day string) (time.Time, bool) {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject that.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
