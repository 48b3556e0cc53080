// Package audio validates recorded attempts and talks to the speech
// collaborators (transcription and benchmark synthesis).
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	MinDuration = 500 * time.Millisecond
	MaxDuration = 30 * time.Second
	// MaxSize bounds containers whose duration is not measured.
	MaxSize = 10 << 20
)

var (
	ErrEmptyAudio = errors.New("audio: empty recording")
	ErrTooShort   = errors.New("audio: recording too short")
	ErrTooLong    = errors.New("audio: recording too long")
)

// ValidationError reports a recording outside the accepted bounds. It
// unwraps to ErrTooShort or ErrTooLong.
type ValidationError struct {
	Err      error
	Duration time.Duration
	Size     int
	Bound    time.Duration
}

func (e *ValidationError) Error() string {
	if e.Duration == 0 && e.Size > 0 {
		return fmt.Sprintf("%v: %d bytes exceeds %d", e.Err, e.Size, MaxSize)
	}
	return fmt.Sprintf("%v: %.1fs (limit %.1fs)", e.Err, e.Duration.Seconds(), e.Bound.Seconds())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks a recording before it is stored or transcribed. WAV data
// is measured from its header and must last between MinDuration and
// MaxDuration. Other formats are only bounded by MaxSize. The measured
// duration is returned, or zero when it is unknown.
func Validate(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, ErrEmptyAudio
	}

	d, ok := wavDuration(data)
	if !ok {
		if len(data) > MaxSize {
			return 0, &ValidationError{Err: ErrTooLong, Size: len(data)}
		}
		return 0, nil
	}

	switch {
	case d < MinDuration:
		return d, &ValidationError{Err: ErrTooShort, Duration: d, Bound: MinDuration}
	case d > MaxDuration:
		return d, &ValidationError{Err: ErrTooLong, Duration: d, Bound: MaxDuration}
	}
	return d, nil
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// wavDuration walks the RIFF chunks for "fmt " and "data". A data chunk
// whose declared size runs past the buffer is measured by what is present.
func wavDuration(data []byte) (time.Duration, bool) {
	if !IsWAV(data) {
		return 0, false
	}

	var byteRate uint32
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return 0, false
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, false
			}
			n := min(size, len(data)-body)
			return time.Duration(float64(n) / float64(byteRate) * float64(time.Second)), true
		}

		// chunks are word aligned
		off = body + size + size%2
	}
	return 0, false
}

// ContentType guesses the MIME type of a recording from its magic bytes,
// falling back to the uploaded file name's extension.
func ContentType(data []byte, filename string) string {
	switch {
	case IsWAV(data):
		return "audio/wav"
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "audio/webm"
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return "audio/ogg"
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return "audio/mpeg"
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return "audio/mp4"
	}
	return contentTypeByExt(filename)
}

// Extension returns the file extension, without the dot, used to store a
// recording of the given content type.
func Extension(contentType string) string {
	switch contentType {
	case "audio/wav":
		return "wav"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	default:
		return "mp3"
	}
}

func contentTypeByExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	}
	return "audio/mpeg"
}
