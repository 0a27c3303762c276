package core

// dates.go parses the free-form date tokens found in ledger sheets.
//
// Sheet authors mix regional conventions, so tokens are matched against an
// ordered table of layouts. Year-first layouts are always tried before
// day-first ones, and day-first before month-first. The order is the
// tie-break for ambiguous tokens: "08-09-2025" is read as 8 September.
// Changing the order changes which date an existing sheet imports as.
//
// Calendar validity (month 13, February 30) is checked when the date is
// constructed, never by the patterns themselves.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SupportedDateFormats is the format list quoted in validation errors.
const SupportedDateFormats = "YYYY-MM-DD, YYYY/MM/DD, YYYY.MM.DD, YYYYMMDD, DD-MM-YYYY and similar"

// dateLayout is one entry of the ordered parse table.
type dateLayout struct {
	Name  string
	parse func(token string) (time.Time, bool)
}

// Parse applies this single layout to a trimmed token.
func (l dateLayout) Parse(token string) (time.Time, bool) {
	return l.parse(token)
}

// dateLayouts is tried top to bottom; the first success wins.
var dateLayouts = []dateLayout{
	strictLayout("Y-M-D", "2006-01-02"),
	strictLayout("Y/M/D", "2006/01/02"),
	strictLayout("Y.M.D", "2006.01.02"),
	strictLayout("YMD", "20060102"),
	strictLayout("D-M-Y", "02-01-2006"),
	strictLayout("D/M/Y", "02/01/2006"),
	strictLayout("D.M.Y", "02.01.2006"),
	strictLayout("M-D-Y", "01-02-2006"),
	strictLayout("M/D/Y", "01/02/2006"),
	strictLayout("M.D.Y", "01.02.2006"),

	looseLayout("YYYY/M/D", `^\d{4}/\d{1,2}/\d{1,2}$`, "/", yearFirst),
	looseLayout("YYYY-M-D", `^\d{4}-\d{1,2}-\d{1,2}$`, "-", yearFirst),
	looseLayout("YYYY.M.D", `^\d{4}\.\d{1,2}\.\d{1,2}$`, ".", yearFirst),
	looseLayout("D-M-YYYY", `^\d{1,2}-\d{1,2}-\d{4}$`, "-", dayFirst),
	looseLayout("D/M/YYYY", `^\d{1,2}/\d{1,2}/\d{4}$`, "/", dayFirst),
	looseLayout("D.M.YYYY", `^\d{1,2}\.\d{1,2}\.\d{4}$`, ".", dayFirst),
}

// DateLayoutNames returns the parse table's layout names in precedence order.
func DateLayoutNames() []string {
	names := make([]string, len(dateLayouts))
	for i, l := range dateLayouts {
		names[i] = l.Name
	}
	return names
}

// ParseDateWith applies only the named layout. Returns false if the layout
// is unknown or does not match.
func ParseDateWith(name, token string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if l.Name == name {
			return l.Parse(strings.TrimSpace(token))
		}
	}
	return time.Time{}, false
}

// ParseDate parses a date token into midnight UTC of that calendar day.
// The second return value is false when no layout matches; that is not an
// error, callers decide how to report it.
func ParseDate(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, ok := l.Parse(token); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// minYear is the first representable calendar year; there is no year 0.
const minYear = 1

// strictLayout matches a fixed-width time.Parse layout: 4-digit year,
// zero-padded 2-digit month and day. time.Parse rejects out-of-range
// months and days.
func strictLayout(name, layout string) dateLayout {
	return dateLayout{
		Name: name,
		parse: func(token string) (time.Time, bool) {
			t, err := time.Parse(layout, token)
			if err != nil || t.Year() < minYear {
				return time.Time{}, false
			}
			return t, true
		},
	}
}

type componentOrder int

const (
	yearFirst componentOrder = iota // Y sep M sep D
	dayFirst                        // D sep M sep Y
)

// looseLayout accepts 1-2 digit month and day, guarded by pattern.
func looseLayout(name, pattern, sep string, order componentOrder) dateLayout {
	re := regexp.MustCompile(pattern)
	return dateLayout{
		Name: name,
		parse: func(token string) (time.Time, bool) {
			if !re.MatchString(token) {
				return time.Time{}, false
			}
			parts := strings.Split(token, sep)
			if len(parts) != 3 {
				return time.Time{}, false
			}
			nums := make([]int, 3)
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return time.Time{}, false
				}
				nums[i] = n
			}
			if order == yearFirst {
				return civilDate(nums[0], nums[1], nums[2])
			}
			return civilDate(nums[2], nums[1], nums[0])
		},
	}
}

// civilDate builds a UTC date, rejecting triples that time.Date would
// silently normalize (2025-02-30 becoming March 2).
func civilDate(year, month, day int) (time.Time, bool) {
	if year < minYear || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// dateOnly truncates a timestamp to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
