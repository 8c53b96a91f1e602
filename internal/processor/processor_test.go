package processor

import (
	"path/filepath"
	"testing"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		suffix string
		want   string
	}{
		{"flac input", "/music/song.flac", "rendered", "/music/song-rendered.wav"},
		{"wav input", "/music/song.wav", "normalised", "/music/song-normalised.wav"},
		{"no extension", "/music/song", "bass", "/music/song-bass.wav"},
		{"dotted name", "/music/my.song.v2.mp3", "vocals", "/music/my.song.v2-vocals.wav"},
		{"relative", "song.wav", "drums", "song-drums.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.input, tt.suffix); got != filepath.FromSlash(tt.want) {
				t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.input, tt.suffix, got, tt.want)
			}
		})
	}

	if got := StemOutputPath("/music/song.flac", StemHarmony); got != filepath.FromSlash("/music/song-harmony.wav") {
		t.Errorf("StemOutputPath() = %q", got)
	}
}
