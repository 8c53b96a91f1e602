package presets

import (
	"errors"
	"testing"

	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/processor"
)

func TestParseGenre(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    Genre
		wantErr bool
	}{
		{"canonical", "hip_hop", GenreHipHop, false},
		{"hyphenated", "Hip-Hop", GenreHipHop, false},
		{"spaced", " hip hop ", GenreHipHop, false},
		{"joined", "hiphop", GenreHipHop, false},
		{"ampersand", "R&B", GenreRnB, false},
		{"edm alias", "EDM", GenreElectronic, false},
		{"upper case", "CLASSICAL", GenreClassical, false},
		{"unknown", "polka", DefaultGenre, true},
		{"empty", "", DefaultGenre, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGenre(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGenre(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, fault.ErrInput) {
				t.Errorf("ParseGenre(%q) error = %v, want ErrInput", tt.id, err)
			}
			if got != tt.want {
				t.Errorf("ParseGenre(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestGenreTextRoundTrip(t *testing.T) {
	for _, g := range AllGenres {
		text, err := g.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", g, err)
		}
		var back Genre
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if back != g {
			t.Errorf("round trip of %v gave %v", g, back)
		}
	}
}

func TestCatalogGet(t *testing.T) {
	c := NewCatalog()

	for _, g := range AllGenres {
		p, ok := c.Get(g.String())
		if !ok {
			t.Errorf("Get(%q) not found", g)
			continue
		}
		if p.ID != g {
			t.Errorf("Get(%q).ID = %v", g, p.ID)
		}
		if p.Name == "" {
			t.Errorf("%v has no display name", g)
		}
	}

	p, ok := c.Get("polka")
	if ok {
		t.Error("Get(polka) reported found")
	}
	if p.ID != DefaultGenre {
		t.Errorf("Get(polka).ID = %v, want fallback %v", p.ID, DefaultGenre)
	}

	if got := c.Preset(Genre(99)).ID; got != DefaultGenre {
		t.Errorf("Preset(99).ID = %v, want %v", got, DefaultGenre)
	}
}

func TestCatalogGenresOrder(t *testing.T) {
	all := NewCatalog().Genres()
	if len(all) != len(AllGenres) {
		t.Fatalf("Genres() returned %d presets, want %d", len(all), len(AllGenres))
	}
	for i, p := range all {
		if p.ID != AllGenres[i] {
			t.Errorf("position %d = %v, want %v", i, p.ID, AllGenres[i])
		}
	}
}

func TestCatalogIsReadOnly(t *testing.T) {
	c := NewCatalog()

	p, _ := c.Get("metal")
	p.Mix.EQ.LowGain = 99
	p.Master.Multiband.Bands[0].Ratio = 99

	again, _ := c.Get("metal")
	if again.Mix.EQ.LowGain == 99 || again.Master.Multiband.Bands[0].Ratio == 99 {
		t.Error("modifying a returned preset changed the catalog")
	}
}

func TestPresetValues(t *testing.T) {
	for _, p := range NewCatalog().Genres() {
		t.Run(p.ID.String(), func(t *testing.T) {
			if p.TargetLUFS > -6 || p.TargetLUFS < -30 {
				t.Errorf("TargetLUFS = %v, outside a plausible range", p.TargetLUFS)
			}
			if p.Mix != processor.SanitizeMix(p.Mix) {
				t.Error("mix settings change under SanitizeMix")
			}
			if p.Master != processor.SanitizeMaster(p.Master) {
				t.Error("master settings change under SanitizeMaster")
			}
			if p.Mix.EQ.LowCut >= p.Mix.EQ.HighCut {
				t.Errorf("LowCut %v >= HighCut %v", p.Mix.EQ.LowCut, p.Mix.EQ.HighCut)
			}

			cx := p.Master.Multiband.Crossovers
			for i := 1; i < len(cx); i++ {
				if cx[i] <= cx[i-1] {
					t.Errorf("crossovers not ascending: %v", cx)
				}
			}

			ch := p.Characteristics
			for name, v := range map[string]float64{
				"energy": ch.Energy, "warmth": ch.Warmth, "brightness": ch.Brightness,
				"punch": ch.Punch, "width": ch.Width, "dynamics": ch.Dynamics,
			} {
				if v < 0 || v > 1 {
					t.Errorf("%s = %v, want [0, 1]", name, v)
				}
			}
		})
	}
}

func TestHipHopCarriesBass(t *testing.T) {
	p, _ := NewCatalog().Get("hip_hop")
	if p.Mix.EQ.LowGain <= 0 {
		t.Errorf("hip_hop LowGain = %v, want a low boost", p.Mix.EQ.LowGain)
	}

	half := processor.ApplyIntensity(p.Mix, processor.IntensityFromPercent(50))
	if half.EQ.LowGain != p.Mix.EQ.LowGain/2 {
		t.Errorf("LowGain at 50%% = %v, want exactly %v", half.EQ.LowGain, p.Mix.EQ.LowGain/2)
	}
}
