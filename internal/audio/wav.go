package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/linuxmatters/mixdesk/internal/fault"
)

// WAV format tags we decode directly. Anything else (IEEE float, A-law, ...)
// is handed to the transcoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// errUnsupportedEncoding marks a valid RIFF/WAVE file whose sample encoding
// go-audio cannot read as integer PCM.
var errUnsupportedEncoding = errors.New("unsupported WAV sample encoding")

// DecodeWAV reads a PCM WAV stream into a Sample.
func DecodeWAV(r io.ReadSeeker) (*Sample, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fault.Input("not a valid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: format tag %d", errUnsupportedEncoding, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fault.Input("failed to read PCM data: %v", err)
	}

	bitDepth := int(dec.BitDepth)
	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}

	data := make([]float64, len(buf.Data))
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned with a 128 midpoint
		for i, v := range buf.Data {
			data[i] = float64(v-128) / 128.0
		}
	case 16, 24, 32:
		scale := math.Pow(2, float64(bitDepth-1))
		for i, v := range buf.Data {
			data[i] = float64(v) / scale
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit", errUnsupportedEncoding, bitDepth)
	}

	s, err := NewSample(data, int(dec.SampleRate), channels, bitDepth)
	if err != nil {
		return nil, err
	}
	s.Metadata.Format = "WAV"
	return s, nil
}

// EncodeWAV renders a Sample as an integer PCM WAV file. Bit depths other than
// 8, 16, 24 and 32 are written as 16-bit.
func EncodeWAV(s *Sample) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ws := &writeSeeker{}
	if err := encodeTo(ws, s); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteWAVFile encodes s to path.
func WriteWAVFile(path string, s *Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encodeTo(f, s); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func encodeTo(w io.WriteSeeker, s *Sample) error {
	bitDepth := s.BitDepth
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		bitDepth = 16
	}

	scale := math.Pow(2, float64(bitDepth-1)) - 1
	ints := make([]int, len(s.Data))
	for i, v := range s.Data {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		n := int(math.Round(v * scale))
		if bitDepth == 8 {
			n += 128
		}
		ints[i] = n
	}

	enc := wav.NewEncoder(w, s.SampleRate, bitDepth, s.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Data:           ints,
		Format:         &goaudio.Format{NumChannels: s.Channels, SampleRate: s.SampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV: %w", err)
	}
	return nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes once the data length is known.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

// isRIFFWave sniffs the first twelve bytes for a RIFF/WAVE header.
func isRIFFWave(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}
