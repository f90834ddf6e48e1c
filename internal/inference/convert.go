package inference

// convert.go implements per-type value coercion for CSV cells.
//
// Every Parse* function takes one trimmed, non-NA raw cell and reports
// whether it could be coerced to the target type. NA handling lives one
// layer up (Gather, Convert) so these stay pure value-level parsers,
// mirroring the teacher's ToPg* family in internal/core/convert.go but
// generalized from "coerce to a fixed declared column type" to "does this
// value fit type T at all".

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex recognizes an integer, decimal, or scientific-notation
// numeral after cleanup. Grounded on the teacher's identically named
// regex in internal/core/convert.go; reused here to reject numeric-only
// strings for Datetime*/Timedelta, which must not be mistaken for dates
// or durations.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateShapeRegex recognizes the "D+/D+/D+" shape (slashes after
// normalizing dashes to slashes) that Datetime* parses directly, as
// opposed to falling back to a mixed-format attempt.
var dateShapeRegex = regexp.MustCompile(`^\d+/\d+/\d+$`)

// TwoDigitYearPivot mirrors the teacher's pivot-year rule for 2-digit
// years: years that would land more than this many years in the future
// are assumed to belong to the previous century.
var TwoDigitYearPivot = 20

// mixedDateLayouts is attempted, in order, when the date part does not
// match the D/D/D shape. Grounded on the teacher's four/two-digit-year
// layout lists plus common ISO/RFC forms the teacher never needed.
var mixedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January 2006",
	"20060102",
	"1/2/06", "01/02/06",
}

// durationPattern matches "Nd Nh Nm Ns" style expressions with any subset
// of units present, in order, separated by optional whitespace.
var durationPattern = regexp.MustCompile(`(?i)^\s*(?:(\d+)\s*d)?\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m)?\s*(?:(\d+)\s*s)?\s*$`)

// durationDayPrefix matches an optional leading "N day(s), " or "N days "
// clause ahead of the clock portion of a clock-style duration.
var durationDayPrefix = regexp.MustCompile(`(?i)^\s*(\d+)\s*days?,?\s*`)

// ParseBool implements the Bool rule: case-insensitive yes/y/true/1 map to
// true, no/n/false/0 map to false, anything else fails.
func ParseBool(raw string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "true", "yes", "y", "1":
		return true, true
	case "false", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// intRange returns the [min, max] bounds for an N-bit signed integer.
func intRange(bits int) (int64, int64) {
	switch bits {
	case 8:
		return math.MinInt8, math.MaxInt8
	case 16:
		return math.MinInt16, math.MaxInt16
	case 32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// ParseInt implements the IntN rule: parse as a real number, reject a
// nonzero fractional part, reject values outside the N-bit range.
func ParseInt(raw string, bits int) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.Trunc(f) != f {
		return 0, false
	}
	lo, hi := intRange(bits)
	if f < float64(lo) || f > float64(hi) {
		return 0, false
	}
	return int64(f), true
}

// countSignificantDigits counts the significant digits of a numeral's raw
// text, ignoring sign, the decimal point, any exponent suffix, and
// leading/trailing zeros. Ported from the original Python's
// count_significant_digits, corrected per the spec to strip the sign
// first (the Python original never strips it, which silently exempts
// every negative number from the Float32 digit cap).
func countSignificantDigits(raw string) int {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "-")
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ".", "")
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
	}
	s = strings.TrimLeft(s, "0")
	s = strings.TrimRight(s, "0")
	if s == "" {
		return 1
	}
	return len(s)
}

// ParseFloat32 implements the Float32 rule: parse as real, then reject if
// the original text carries more than 6 significant digits.
func ParseFloat32(raw string) (float32, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if countSignificantDigits(s) > 6 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, false
	}
	return float32(f), true
}

// ParseFloat64 implements the Float64 rule: parse as real, no digit cap.
func ParseFloat64(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseComplex implements the Complex rule: accepts a+bj, a+bi, and pure
// real forms. Go's strconv.ParseComplex speaks Go complex-literal syntax
// (trailing "i"), so a trailing Python-style "j"/"J" is normalized first.
func ParseComplex(raw string) (complex128, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	normalized := s
	if strings.HasSuffix(normalized, "j") || strings.HasSuffix(normalized, "J") {
		normalized = normalized[:len(normalized)-1] + "i"
	}
	if c, err := strconv.ParseComplex(normalized, 128); err == nil {
		return c, true
	}
	// Pure real: strconv.ParseComplex requires an explicit imaginary part
	// in some Go versions' lenient parsing; fall back to a plain float.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return complex(f, 0), true
	}
	return 0, false
}

// splitDateTime splits raw on the first whitespace run into a date part
// and an optional time part.
func splitDateTime(raw string) (string, string) {
	s := strings.TrimSpace(raw)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// parseClockPart parses an "HH:MM:SS" time-of-day, defaulting to
// "00:00:00" when empty.
func parseClockPart(s string) (hh, mm, ss int, ok bool) {
	if s == "" {
		return 0, 0, 0, true
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	hh, mm = vals[0], vals[1]
	if len(parts) == 3 {
		ss = vals[2]
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 || ss < 0 || ss > 59 {
		return 0, 0, 0, false
	}
	return hh, mm, ss, true
}

// validDate reports whether year/month/day form a real calendar date,
// rejecting things like 13/45/2000 outright instead of letting
// time.Date silently roll them over into a different date.
func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	daysInMonth := []int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	max := daysInMonth[month-1]
	if month == 2 && isLeap(year) {
		max = 29
	}
	return day <= max
}

func isLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// ParseDatetime implements the DatetimeMDY/YMD/DMY rule for variant ∈
// {DatetimeMDY, DatetimeYMD, DatetimeDMY}.
func ParseDatetime(raw string, variant InferenceType) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if numericRegex.MatchString(s) {
		return time.Time{}, false
	}

	datePart, timePart := splitDateTime(s)
	normalized := strings.ReplaceAll(datePart, "-", "/")

	if dateShapeRegex.MatchString(normalized) {
		fields := strings.Split(normalized, "/")
		a, erra := strconv.Atoi(fields[0])
		b, errb := strconv.Atoi(fields[1])
		c, errc := strconv.Atoi(fields[2])
		if erra != nil || errb != nil || errc != nil {
			return time.Time{}, false
		}
		var year, month, day int
		switch variant {
		case DatetimeMDY:
			month, day, year = a, b, c
		case DatetimeYMD:
			year, month, day = a, b, c
		case DatetimeDMY:
			day, month, year = a, b, c
		default:
			return time.Time{}, false
		}
		if year < 100 {
			currentYear := time.Now().Year()
			pivot := (currentYear + TwoDigitYearPivot) % 100
			if year > pivot {
				year += (currentYear/100)*100 - 100
			} else {
				year += (currentYear / 100) * 100
			}
		}
		if !validDate(year, month, day) {
			return time.Time{}, false
		}
		hh, mm, ss, ok := parseClockPart(timePart)
		if !ok {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, hh, mm, ss, 0, time.UTC), true
	}

	// Mixed fallback: the date part isn't of the N/N/N shape at all.
	for _, layout := range mixedDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimedelta implements the Timedelta rule: reject numeric-only
// strings, then accept "Nd Nh Nm Ns" or clock-style duration expressions.
func ParseTimedelta(raw string) (time.Duration, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if numericRegex.MatchString(s) {
		return 0, false
	}

	if m := durationPattern.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "" || m[4] != "") {
		var total time.Duration
		if m[1] != "" {
			n, _ := strconv.Atoi(m[1])
			total += time.Duration(n) * 24 * time.Hour
		}
		if m[2] != "" {
			n, _ := strconv.Atoi(m[2])
			total += time.Duration(n) * time.Hour
		}
		if m[3] != "" {
			n, _ := strconv.Atoi(m[3])
			total += time.Duration(n) * time.Minute
		}
		if m[4] != "" {
			n, _ := strconv.Atoi(m[4])
			total += time.Duration(n) * time.Second
		}
		return total, true
	}

	clock := s
	var days int
	if m := durationDayPrefix.FindStringSubmatch(s); m != nil {
		days, _ = strconv.Atoi(m[1])
		clock = s[len(m[0]):]
	}

	parts := strings.Split(clock, ":")
	var hh, mm, ss int
	switch len(parts) {
	case 2, 3:
		vals := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return 0, false
			}
			vals[i] = n
		}
		hh = vals[0]
		mm = vals[1]
		if len(vals) == 3 {
			ss = vals[2]
		}
	default:
		return 0, false
	}
	if mm < 0 || mm > 59 || ss < 0 || ss > 59 || hh < 0 {
		return 0, false
	}

	return time.Duration(days)*24*time.Hour + time.Duration(hh)*time.Hour +
		time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second, true
}

// CleanCell strips common CSV artifacts from a raw cell: surrounding
// whitespace, Excel's ="..." formula prefix, and surrounding quotes.
// Grounded on the teacher's CleanCell in internal/core/convert.go, trimmed
// of the upload-domain "netsuite:" prefix which has no analog here.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	s = strings.Trim(s, `"'`)
	return s
}
