package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWAV is returned when data is not a readable RIFF/WAVE stream.
var ErrInvalidWAV = errors.New("invalid WAV data")

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// Audio is decoded sample data. Samples are interleaved by channel and
// normalized to [-1, 1].
type Audio struct {
	SampleRate int
	Channels   int
	Samples    []float64
}

// Frames returns the number of sample frames (samples per channel).
func (a Audio) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the length of the audio in seconds.
func (a Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// Mono returns a copy of a with all channels averaged into one.
func (a Audio) Mono() Audio {
	if a.Channels <= 1 {
		return Audio{SampleRate: a.SampleRate, Channels: 1, Samples: a.Samples}
	}
	n := a.Frames()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < a.Channels; c++ {
			sum += a.Samples[i*a.Channels+c]
		}
		out[i] = sum / float64(a.Channels)
	}
	return Audio{SampleRate: a.SampleRate, Channels: 1, Samples: out}
}

type wavFormat struct {
	tag           uint16
	channels      int
	sampleRate    int
	blockAlign    int
	bitsPerSample int
}

// DecodeWAV parses a RIFF/WAVE byte stream. It accepts integer PCM at 8, 16,
// 24 or 32 bits and IEEE float at 32 or 64 bits, including the extensible
// header variant. Unknown chunks are skipped.
func DecodeWAV(data []byte) (Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format  *wavFormat
		payload []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		// Streaming writers leave the size unset; take what is there.
		if size < 0 || pos+size > len(data) {
			size = len(data) - pos
		}
		body := data[pos : pos+size]

		switch id {
		case "fmt ":
			f, err := parseFormat(body)
			if err != nil {
				return Audio{}, err
			}
			format = &f
		case "data":
			payload = body
		}

		pos += size
		if size%2 == 1 {
			pos++
		}
	}

	if format == nil {
		return Audio{}, fmt.Errorf("%w: no fmt chunk", ErrInvalidWAV)
	}
	if payload == nil {
		return Audio{}, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
	}

	samples, err := decodeSamples(*format, payload)
	if err != nil {
		return Audio{}, err
	}
	return Audio{SampleRate: format.sampleRate, Channels: format.channels, Samples: samples}, nil
}

func parseFormat(b []byte) (wavFormat, error) {
	if len(b) < 16 {
		return wavFormat{}, fmt.Errorf("%w: fmt chunk too short", ErrInvalidWAV)
	}
	f := wavFormat{
		tag:           binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		blockAlign:    int(binary.LittleEndian.Uint16(b[12:14])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	if f.tag == wavFormatExtensible {
		if len(b) < 26 {
			return wavFormat{}, fmt.Errorf("%w: extensible fmt chunk too short", ErrInvalidWAV)
		}
		// The first two bytes of the sub-format GUID carry the real tag.
		f.tag = binary.LittleEndian.Uint16(b[24:26])
	}
	if f.channels <= 0 || f.sampleRate <= 0 {
		return wavFormat{}, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWAV, f.channels, f.sampleRate)
	}
	return f, nil
}

func decodeSamples(f wavFormat, b []byte) ([]float64, error) {
	width := f.bitsPerSample / 8
	if width == 0 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrInvalidWAV, f.bitsPerSample)
	}
	n := len(b) / width
	n -= n % f.channels
	out := make([]float64, n)

	switch {
	case f.tag == wavFormatPCM && width == 1:
		for i := range out {
			out[i] = (float64(b[i]) - 128) / 128
		}
	case f.tag == wavFormatPCM && width == 2:
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
		}
	case f.tag == wavFormatPCM && width == 3:
		for i := range out {
			p := b[i*3:]
			v := int32(uint32(p[0])<<8|uint32(p[1])<<16|uint32(p[2])<<24) >> 8
			out[i] = float64(v) / 8388608
		}
	case f.tag == wavFormatPCM && width == 4:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(b[i*4:]))) / 2147483648
		}
	case f.tag == wavFormatIEEEFloat && width == 4:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
		}
	case f.tag == wavFormatIEEEFloat && width == 8:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		}
	default:
		return nil, fmt.Errorf("%w: format tag %d with %d bits per sample", ErrInvalidWAV, f.tag, f.bitsPerSample)
	}
	return out, nil
}

// EncodeWAV writes a as a 16-bit PCM WAV stream. Samples outside [-1, 1] are
// clipped.
func EncodeWAV(a Audio) []byte {
	channels := a.Channels
	if channels <= 0 {
		channels = 1
	}
	dataLen := len(a.Samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(a.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(a.SampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range a.Samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(toInt16(s)))
	}
	return buf
}

func toInt16(s float64) int16 {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return math.MinInt16
	}
	return int16(math.Round(s * 32767))
}
