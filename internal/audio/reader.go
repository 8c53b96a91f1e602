package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/linuxmatters/mixdesk/internal/fault"
)

// Transcoder converts a non-WAV container into PCM WAV bytes.
// The ffmpeg package provides the production implementation.
type Transcoder interface {
	TranscodeToWAV(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// Codec decodes and encodes audio buffers. PCM WAV is handled natively;
// everything else goes through the Transcoder when one is configured.
type Codec struct {
	Transcoder Transcoder
}

// NewCodec returns a Codec that transcodes through t (which may be nil).
func NewCodec(t Transcoder) *Codec {
	return &Codec{Transcoder: t}
}

// mimeTypes maps file extensions to the MIME types Decode understands
var mimeTypes = map[string]string{
	".wav":  "audio/wav",
	".wave": "audio/wav",
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".aif":  "audio/aiff",
	".aiff": "audio/aiff",
}

// MimeTypeForPath guesses a MIME type from the file extension.
func MimeTypeForPath(path string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtension reports whether path has an extension Decode accepts.
func SupportedExtension(path string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsWAVMime reports whether mimeType names PCM WAV.
func IsWAVMime(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return false
}

// Decode turns encoded bytes into a Sample. An empty mimeType is sniffed.
func (c *Codec) Decode(ctx context.Context, data []byte, mimeType string) (*Sample, error) {
	if len(data) == 0 {
		return nil, fault.Input("empty input")
	}

	if IsWAVMime(mimeType) || (mimeType == "" && isRIFFWave(data)) {
		s, err := DecodeWAV(bytes.NewReader(data))
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, errUnsupportedEncoding) {
			return nil, err
		}
		// Float or compressed WAV: fall through to the transcoder
	}

	if c == nil || c.Transcoder == nil {
		return nil, fault.Unavailable("transcoder", fmt.Errorf("cannot decode %q without a transcoder", mimeType))
	}

	wavData, err := c.Transcoder.TranscodeToWAV(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	s, err := DecodeWAV(bytes.NewReader(wavData))
	if err != nil {
		return nil, fmt.Errorf("transcoded output: %w", err)
	}

	s.Metadata.Format = formatName(mimeType)
	readTags(bytes.NewReader(data), &s.Metadata)
	return s, nil
}

// Encode renders a Sample as PCM WAV.
func (c *Codec) Encode(s *Sample) ([]byte, error) {
	return EncodeWAV(s)
}

// OpenAudioFile reads and decodes the file at path.
func (c *Codec) OpenAudioFile(ctx context.Context, path string) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Input("failed to read %s: %v", path, err)
	}

	s, err := c.Decode(ctx, data, MimeTypeForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	s.SourcePath = path
	if s.Metadata.Title == "" {
		s.Metadata.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// readTags fills title/artist/album from embedded tags when present.
// Missing or unreadable tags are not an error.
func readTags(r *bytes.Reader, md *Metadata) {
	m, err := tag.ReadFrom(r)
	if err != nil {
		return
	}
	if v := m.Title(); v != "" {
		md.Title = v
	}
	if v := m.Artist(); v != "" {
		md.Artist = v
	}
	if v := m.Album(); v != "" {
		md.Album = v
	}
	if ft := m.FileType(); ft != tag.UnknownFileType {
		md.Format = string(ft)
	}
}

func formatName(mimeType string) string {
	if i := strings.LastIndex(mimeType, "/"); i >= 0 {
		return strings.ToUpper(mimeType[i+1:])
	}
	return strings.ToUpper(mimeType)
}
