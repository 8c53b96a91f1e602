package processor

import (
	"github.com/mjibson/go-dsp/window"
)

// Analysis framing shared by the spectral analyser and the stem filter.
const (
	FrameSize = 4096          // samples per FFT frame
	HopSize   = FrameSize / 2 // 50% overlap
	BinCount  = FrameSize / 2 // magnitude bins kept per frame (Nyquist symmetry)
)

// periodicHann returns an n-point periodic Hann window. go-dsp's Hann is the
// symmetric form, so take the first n points of the n+1 window; at 50%
// overlap consecutive periodic windows sum to exactly one.
func periodicHann(n int) []float64 {
	return window.Hann(n + 1)[:n]
}

// frameStarts returns the first sample index of every analysis frame.
//
// Analysis framing starts at zero and keeps adding frames until the buffer is
// covered, so a short buffer yields one zero-padded frame. Centred framing
// begins half a frame early so every sample is covered by two windows; the
// stem filter uses it for overlap-add reconstruction.
func frameStarts(length int, centred bool) []int {
	start, reach := 0, FrameSize
	if centred {
		start, reach = -HopSize, HopSize
	}
	var starts []int
	for pos := start; ; pos += HopSize {
		starts = append(starts, pos)
		if pos+reach >= length {
			break
		}
	}
	return starts
}

// fillFrame copies the windowed segment of signal starting at pos into dst,
// zero-padding wherever the frame runs off either end.
func fillFrame(dst, signal, win []float64, pos int) {
	for i := range dst {
		j := pos + i
		if j < 0 || j >= len(signal) {
			dst[i] = 0
			continue
		}
		dst[i] = signal[j] * win[i]
	}
}
