package timeutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNanosToSeconds(t *testing.T) {
	assert.Equal(t, 1.0, NanosToSeconds(1_000_000_000))
	assert.Equal(t, 0.0, NanosToSeconds(0))
	assert.InDelta(t, 1700000000.123456789, NanosToSeconds(1_700_000_000_123_456_789), 1e-6)
}

func TestToTime(t *testing.T) {
	tm := ToTime(1_000_000_000)
	assert.Equal(t, 1970, tm.Year())
	assert.Equal(t, 1, tm.Second())
	assert.Equal(t, time.UTC, tm.Location())
}

func TestFormatISO(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2023, 11, 19, 12, 30, 45, 0, time.UTC), "2023-11-19T12:30:45+00:00"},
		{time.Date(2023, 11, 19, 12, 30, 45, 250_000_000, time.UTC), "2023-11-19T12:30:45.250000+00:00"},
		{time.Date(2023, 11, 19, 12, 30, 45, 999, time.UTC), "2023-11-19T12:30:45+00:00"},
		{time.Date(2023, 11, 19, 12, 30, 45, 0, time.FixedZone("JST", 9*3600)), "2023-11-19T12:30:45+09:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatISO(tt.in))
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 2.0, Seconds(2_000_000_000, -1))
	assert.Equal(t, 0.5, Seconds(1_500_000_000, 1_000_000_000))
	assert.Equal(t, 0.0, Seconds(500, 1_000))
}

func ExampleFormatISO() {
	fmt.Println(FormatISO(ToTime(1_700_000_000_000_000_000)))
	// Output: 2023-11-14T22:13:20+00:00
}
