// Package processor handles audio analysis and mix decisions: spectral
// profiles, band-filtered stems, loudness, intensity blending, reference
// matching and normalisation planning. Everything here is a pure function of
// its inputs; rendering is left to an external filter-graph renderer driven
// by the FilterDescriptor chains this package builds.
package processor

import (
	"path/filepath"
	"strings"
)

// OutputPath derives an output filename from the input filename by appending
// a suffix before the extension.
// Example: /path/to/song.flac, "bass" → /path/to/song-bass.wav
//
// Outputs are always WAV since the engine encodes its own buffers.
func OutputPath(inputPath, suffix string) string {
	dir := filepath.Dir(inputPath)
	filename := filepath.Base(inputPath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	return filepath.Join(dir, nameWithoutExt+"-"+suffix+".wav")
}

// StemOutputPath is the file a stem of inputPath is written to.
func StemOutputPath(inputPath string, stem Stem) string {
	return OutputPath(inputPath, stem.String())
}
