// Package mains resolves the electrical mains frequency used by the hum
// check, either from configuration or from the system timezone.
package mains

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Supported mains frequencies in Hz.
const (
	Hz50 = 50.0
	Hz60 = 60.0
)

// Source records how a frequency was chosen.
type Source string

const (
	SourceOverride Source = "config"
	SourceTimezone Source = "timezone"
	SourceFallback Source = "fallback"
	SourceDisabled Source = "disabled"
)

// Detection is a resolved mains frequency. Hz is zero when the hum check is
// disabled.
type Detection struct {
	Hz       float64
	Source   Source
	Timezone string
	Country  string
}

// Resolve picks the frequency for the hum check. A positive override wins,
// a negative one disables the check and zero detects from the timezone.
func Resolve(override float64) Detection {
	switch {
	case override > 0:
		return Detection{Hz: override, Source: SourceOverride}
	case override < 0:
		return Detection{Source: SourceDisabled}
	}
	return Detect()
}

// Detect reads the runtime timezone. It falls back to 50 Hz, the more
// common frequency worldwide.
func Detect() Detection {
	zone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return Detection{Hz: Hz50, Source: SourceFallback}
	}
	return ForTimezone(zone)
}

// ForTimezone maps an IANA timezone to its country's mains frequency.
func ForTimezone(zone string) Detection {
	fallback := Detection{Hz: Hz50, Source: SourceFallback, Timezone: zone}

	// No country behind these.
	if zone == "" || zone == "UTC" || zone == "GMT" || strings.HasPrefix(zone, "Etc/") {
		return fallback
	}

	countries, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return fallback
	}
	country, err := countries.GetCountry(zone)
	if err != nil {
		return fallback
	}

	hz := Hz50
	if sixtyHz[country] {
		hz = Hz60
	}
	return Detection{Hz: hz, Source: SourceTimezone, Timezone: zone, Country: country}
}

// sixtyHz lists countries on 60 Hz mains. Japan is split by region and is
// left out; the Tokyo side runs at 50 Hz. Brazil is mostly 60 Hz.
var sixtyHz = func() map[string]bool {
	regions := [][]string{
		{"United States", "Canada", "Mexico"},
		{"Belize", "Costa Rica", "El Salvador", "Guatemala", "Honduras", "Nicaragua", "Panama"},
		{"Bahamas", "Barbados", "Cayman Islands", "Cuba", "Dominican Republic", "Haiti",
			"Jamaica", "Puerto Rico", "Trinidad and Tobago", "U.S. Virgin Islands"},
		{"Brazil", "Colombia", "Ecuador", "Guyana", "Peru", "Suriname", "Venezuela"},
		{"South Korea", "Taiwan", "Philippines", "Saudi Arabia"},
		{"Guam", "American Samoa", "Marshall Islands", "Micronesia", "Palau"},
	}
	m := make(map[string]bool)
	for _, r := range regions {
		for _, c := range r {
			m[c] = true
		}
	}
	return m
}()
