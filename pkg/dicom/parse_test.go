package dicom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("20240229 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2024-02-29")
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"153045", 15*time.Hour + 30*time.Minute + 45*time.Second, true},
		{"153045.5", 15*time.Hour + 30*time.Minute + 45*time.Second + 500*time.Millisecond, true},
		{"153045.123456", 15*time.Hour + 30*time.Minute + 45*time.Second + 123456*time.Microsecond, true},
		{"1530", 15*time.Hour + 30*time.Minute, true},
		{"15", 15 * time.Hour, true},
		{"153045.1234567", 0, false},
		{"noon", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			midnight := time.Date(got.Year(), got.Month(), got.Day(), 0, 0, 0, 0, got.Location())
			assert.Equal(t, tt.want, got.Sub(midnight))
		})
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("20240102153045.25")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 15, 30, 45, 250000000, time.UTC), got)

	got, err = ParseDateTime("20240102153045+0100")
	require.NoError(t, err)
	assert.Equal(t, 14, got.UTC().Hour())

	got, err = ParseDateTime("20240102")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Day())

	_, err = ParseDateTime("20240102153045.1234567")
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	assert.Equal(t, "20240102", FormatDate(ts))
	assert.Equal(t, "030405.000006", FormatTime(ts))
	assert.Equal(t, "20240102030405.000006", FormatDateTime(ts))
	assert.Equal(t, "030405", FormatTime(ts.Truncate(time.Second)))

	back, err := ParseDateTime(FormatDateTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))
}

func TestParseDecimalsAndIntegers(t *testing.T) {
	f, err := ParseDecimals(` 1.5\ -2 \3e2 `)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2, 300}, f)

	empty, err := ParseDecimals("  ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseDecimals(`1.5\x`)
	assert.Error(t, err)

	n, err := ParseIntegers(`+12\ -3`)
	require.NoError(t, err)
	assert.Equal(t, []int{12, -3}, n)

	_, err = ParseIntegers("1.5")
	assert.Error(t, err)
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in   string
		want Age
		ok   bool
	}{
		{"045Y", Age{45, Years}, true},
		{"003M", Age{3, Months}, true},
		{"012W", Age{12, Weeks}, true},
		{"100D", Age{100, Days}, true},
		{"45Y", Age{}, false},
		{"045X", Age{}, false},
		{"0A5Y", Age{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAge(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}
