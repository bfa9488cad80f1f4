// Package audio provides RIFF/WAV container framing for the 16-bit PCM
// uploads handled by the transcription proxy.
//
// Nothing here decodes, resamples or mixes audio. Raw PCM is wrapped in a
// canonical 44-byte header and incoming WAV payloads are sanity-checked
// before they are forwarded to a speech recogniser.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"
)

const (
	// HeaderSize is the length of a canonical PCM WAV header. Anything shorter
	// cannot be a usable WAV file.
	HeaderSize = 44

	// BitsPerSample is fixed at 16 for the signed little-endian PCM accepted
	// by the proxy.
	BitsPerSample = 16

	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

var (
	// ErrTooSmall is returned for payloads shorter than [HeaderSize].
	ErrTooSmall = errors.New("audio: empty or too small WAV payload")

	// ErrNotWAV is returned when the RIFF/WAVE magic is missing.
	ErrNotWAV = errors.New("audio: missing RIFF/WAVE header")
)

// Header is the subset of a WAV fmt chunk the proxy cares about.
type Header struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

// Duration returns the playback length described by the header, or zero if
// the header is incomplete.
func (h Header) Duration() time.Duration {
	bytesPerSec := h.SampleRate * h.Channels * h.BitsPerSample / 8
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(h.DataSize) * time.Second / time.Duration(bytesPerSec)
}

// IsWAV reports whether data starts with a RIFF....WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Validate checks that data is large enough to hold a WAV header and
// carries the RIFF/WAVE magic.
func Validate(data []byte) error {
	if len(data) < HeaderSize {
		return ErrTooSmall
	}
	if !IsWAV(data) {
		return ErrNotWAV
	}
	return nil
}

// ParseHeader walks the RIFF chunks of data and returns the fmt parameters
// and the declared data size. A data chunk whose declared size overruns the
// payload is clamped to what is present, as streaming recorders often write
// a placeholder size.
func ParseHeader(data []byte) (Header, error) {
	if err := Validate(data); err != nil {
		return Header{}, err
	}

	var (
		h      Header
		gotFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Header{}, fmt.Errorf("audio: truncated fmt chunk")
			}
			h.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			h.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			h.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			gotFmt = true
		case "data":
			h.DataSize = min(size, len(data)-body)
			if !gotFmt {
				return Header{}, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			return h, nil
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}
	if !gotFmt {
		return Header{}, fmt.Errorf("audio: no fmt chunk")
	}
	return h, nil
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a canonical
// RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, HeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[HeaderSize:], pcm)

	return buf
}

// PCMFormat describes a raw PCM body announced through an audio/L16 media
// type.
type PCMFormat struct {
	SampleRate int
	Channels   int

	// BigEndian is set by an "endianness=big-endian" parameter. Browsers
	// post Int16Array buffers, which are little-endian, so that is assumed
	// otherwise.
	BigEndian bool
}

// ToLittleEndian returns pcm with every 16-bit sample in little-endian
// order, swapping bytes in place when f says the samples are big-endian.
// A trailing odd byte is dropped.
func (f PCMFormat) ToLittleEndian(pcm []byte) []byte {
	pcm = pcm[:len(pcm)&^1]
	if f.BigEndian {
		for i := 0; i < len(pcm); i += 2 {
			pcm[i], pcm[i+1] = pcm[i+1], pcm[i]
		}
	}
	return pcm
}

// ParseL16 parses an "audio/L16; rate=16000; channels=1" media type. Missing
// parameters take [DefaultSampleRate] and [DefaultChannels]. ok is false when
// the media type is not audio/L16 at all.
func ParseL16(contentType string) (f PCMFormat, ok bool, err error) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return PCMFormat{}, false, fmt.Errorf("audio: parse content type: %w", err)
	}
	if !strings.EqualFold(mt, "audio/l16") {
		return PCMFormat{}, false, nil
	}

	f = PCMFormat{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
	if v, found := params["rate"]; found {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return PCMFormat{}, true, fmt.Errorf("audio: invalid rate %q", v)
		}
		f.SampleRate = n
	}
	if v, found := params["channels"]; found {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 8 {
			return PCMFormat{}, true, fmt.Errorf("audio: invalid channels %q", v)
		}
		f.Channels = n
	}
	f.BigEndian = strings.EqualFold(params["endianness"], "big-endian")
	return f, true, nil
}
