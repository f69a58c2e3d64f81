package student

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD date as sent by the edit form.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// Age returns the completed years between dob (YYYY-MM-DD) and now.
func Age(dob string, now time.Time) (int, error) {
	birth, err := ParseDate(dob)
	if err != nil {
		return 0, err
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, nil
}

// Initials returns the avatar letters for a name: first letters of the first
// and last words, or the first two letters of a single word.
func Initials(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		r := []rune(parts[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		first := []rune(parts[0])[0]
		last := []rune(parts[len(parts)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
}

// Location is a point on the map.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MapsURL links the location on Google Maps.
func (l Location) MapsURL() string {
	return "https://www.google.com/maps/search/?api=1&query=" +
		strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

// HomeLocation derives a stable pseudo home location inside the Seeb
// residential area (lat 23.560-23.670, lng 58.110-58.195) from a student id.
// It is display decoration only and is never stored.
func HomeLocation(id string) Location {
	var h int32
	for _, u := range utf16.Encode([]rune(id)) {
		h = h*31 + int32(u)
	}
	u := uint64(uint32(h))

	latSeed := float64(u%10000) / 10000
	lngSeed := float64((u*127+9973)%10000) / 10000

	return Location{
		Lat: 23.56 + latSeed*0.11,
		Lng: 58.11 + lngSeed*0.085,
	}
}
