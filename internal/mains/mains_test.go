package mains

import "testing"

func TestForTimezone(t *testing.T) {
	tests := []struct {
		zone   string
		want   float64
		source Source
	}{
		{"Europe/London", Hz50, SourceTimezone},
		{"Europe/Berlin", Hz50, SourceTimezone},
		{"Australia/Sydney", Hz50, SourceTimezone},
		{"Asia/Tokyo", Hz50, SourceTimezone},

		{"America/New_York", Hz60, SourceTimezone},
		{"America/Toronto", Hz60, SourceTimezone},
		{"America/Sao_Paulo", Hz60, SourceTimezone},
		{"Asia/Seoul", Hz60, SourceTimezone},
		{"Asia/Manila", Hz60, SourceTimezone},

		{"UTC", Hz50, SourceFallback},
		{"Etc/GMT+5", Hz50, SourceFallback},
		{"", Hz50, SourceFallback},
		{"Nowhere/Atlantis", Hz50, SourceFallback},
	}

	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			got := ForTimezone(tt.zone)
			if got.Hz != tt.want || got.Source != tt.source {
				t.Errorf("ForTimezone(%q) = %v Hz (%s), want %v Hz (%s)", tt.zone, got.Hz, got.Source, tt.want, tt.source)
			}
			if got.Source == SourceTimezone && got.Country == "" {
				t.Errorf("ForTimezone(%q) has no country", tt.zone)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(60); got.Hz != 60 || got.Source != SourceOverride {
		t.Errorf("Resolve(60) = %+v", got)
	}
	if got := Resolve(-1); got.Hz != 0 || got.Source != SourceDisabled {
		t.Errorf("Resolve(-1) = %+v", got)
	}
	if got := Resolve(0); got.Hz != Hz50 && got.Hz != Hz60 {
		t.Errorf("Resolve(0) = %v Hz, want 50 or 60", got.Hz)
	}
}
