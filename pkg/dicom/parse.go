package dicom

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed-width calendar layouts. Fractional seconds of one to six digits are
// accepted after the seconds field by time.Parse.
const (
	dateLayout     = "20060102"
	timeLayout     = "150405"
	dateTimeLayout = "20060102150405"
)

// ParseDate parses a DA value (yyyyMMdd).
func ParseDate(s string) (time.Time, error) {
	s = trimPadding(strings.TrimSpace(s))
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DA %q: %w", s, err)
	}
	return t, nil
}

// ParseTime parses a TM value (HHmmss with optional .ffffff). Truncated
// forms HHmm and HH are accepted as well.
func ParseTime(s string) (time.Time, error) {
	s = trimPadding(strings.TrimSpace(s))
	for _, layout := range []string{timeLayout, "1504", "15"} {
		if t, err := time.Parse(layout, s); err == nil && fracDigits(s) <= 6 {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid TM %q", s)
}

// ParseDateTime parses a DT value (yyyyMMddHHmmss with optional .ffffff and
// an optional &ZZXX UTC offset).
func ParseDateTime(s string) (time.Time, error) {
	s = trimPadding(strings.TrimSpace(s))
	if fracDigits(s) > 6 {
		return time.Time{}, fmt.Errorf("invalid DT %q: fraction too long", s)
	}
	for _, layout := range []string{dateTimeLayout + "-0700", dateTimeLayout, "200601021504", "2006010215", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid DT %q", s)
}

func fracDigits(s string) int {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	n := 0
	for _, c := range s[i+1:] {
		if c < '0' || c > '9' {
			break
		}
		n++
	}
	return n
}

// FormatDate renders a DA value.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatTime renders a TM value, including microseconds when present.
func FormatTime(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(timeLayout + ".000000")
	}
	return t.Format(timeLayout)
}

// FormatDateTime renders a DT value, including microseconds when present.
func FormatDateTime(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(dateTimeLayout + ".000000")
	}
	return t.Format(dateTimeLayout)
}

// ParseDecimals parses a DS value: backslash separated decimals with the
// space padding removed.
func ParseDecimals(s string) ([]float64, error) {
	s = strings.ReplaceAll(trimPadding(s), " ", "")
	if s == "" {
		return []float64{}, nil
	}
	parts := strings.Split(s, `\`)
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DS component %q: %w", p, err)
		}
		out[i] = f
	}
	return out, nil
}

// ParseIntegers parses an IS value.
func ParseIntegers(s string) ([]int, error) {
	s = strings.ReplaceAll(trimPadding(s), " ", "")
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, `\`)
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimPrefix(p, "+"))
		if err != nil {
			return nil, fmt.Errorf("invalid IS component %q: %w", p, err)
		}
		out[i] = n
	}
	return out, nil
}

// AgeUnit is the unit suffix of an AS value.
type AgeUnit byte

const (
	Days   AgeUnit = 'D'
	Weeks  AgeUnit = 'W'
	Months AgeUnit = 'M'
	Years  AgeUnit = 'Y'
)

// Age is a decoded AS value such as "045Y".
type Age struct {
	Number int
	Unit   AgeUnit
}

func (a Age) String() string {
	return fmt.Sprintf("%03d%c", a.Number, a.Unit)
}

// ParseAge parses an AS value.
func ParseAge(s string) (Age, error) {
	s = trimPadding(strings.TrimSpace(s))
	if len(s) != 4 {
		return Age{}, fmt.Errorf("invalid AS %q: want 4 characters", s)
	}
	n, err := strconv.Atoi(s[:3])
	if err != nil {
		return Age{}, fmt.Errorf("invalid AS %q: %w", s, err)
	}
	u := AgeUnit(s[3])
	switch u {
	case Days, Weeks, Months, Years:
	default:
		return Age{}, fmt.Errorf("invalid AS %q: unknown unit %q", s, s[3])
	}
	return Age{Number: n, Unit: u}, nil
}
