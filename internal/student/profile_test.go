package student_test

import (
	"strings"
	"testing"
	"time"

	"github.com/hamzaconcepts-eng/MMPS/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAge(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		dob  string
		want int
	}{
		{"2015-03-14", 11},
		{"2015-03-15", 10},
		{"2015-02-28", 11},
		{"2015-12-01", 10},
		{"2026-01-01", 0},
	}
	for _, tt := range tests {
		got, err := student.Age(tt.dob, now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "dob=%s", tt.dob)
	}

	_, err := student.Age("14/03/2015", now)
	assert.Error(t, err)
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ahmed Al-Balushi", "AA"},
		{"fatima bint salim al-harthi", "FA"},
		{"Omar", "OM"},
		{"O", "O"},
		{"  ", ""},
		{"عمر الرواحي", "عا"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, student.Initials(tt.name), "name=%q", tt.name)
	}
}

func TestHomeLocation(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		id := "e0000000-0000-0000-0000-000000000001"
		assert.Equal(t, student.HomeLocation(id), student.HomeLocation(id))
	})

	t.Run("WithinArea", func(t *testing.T) {
		for _, id := range []string{
			"",
			"e0000000-0000-0000-0000-000000000001",
			"3f2b8c9e-1d4a-4b6f-9a7e-2c5d8e1f0a3b",
			"ffffffff-ffff-ffff-ffff-ffffffffffff",
			strings.Repeat("z", 200),
		} {
			loc := student.HomeLocation(id)
			assert.GreaterOrEqual(t, loc.Lat, 23.56, id)
			assert.Less(t, loc.Lat, 23.67, id)
			assert.GreaterOrEqual(t, loc.Lng, 58.11, id)
			assert.Less(t, loc.Lng, 58.195, id)
		}
	})

	t.Run("KnownValue", func(t *testing.T) {
		// "a" hashes to 97
		loc := student.HomeLocation("a")
		assert.InDelta(t, 23.56+0.0097*0.11, loc.Lat, 1e-9)
		assert.InDelta(t, 58.11+float64((97*127+9973)%10000)/10000*0.085, loc.Lng, 1e-9)
	})

	t.Run("MapsURL", func(t *testing.T) {
		loc := student.Location{Lat: 23.6, Lng: 58.15}
		assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=23.6,58.15", loc.MapsURL())
	})
}
