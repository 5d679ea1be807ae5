package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/saker-ai/spiritio-client/pkg/audio"
)

// Clip is decoded PCM16 audio.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// ErrUnsupportedWAV is returned for anything other than little-endian PCM16.
var ErrUnsupportedWAV = errors.New("capture: unsupported wav format")

// ReadWAVFile decodes a PCM16 RIFF/WAVE file.
func ReadWAVFile(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, err
	}
	return ParseWAV(data)
}

// ParseWAV decodes a PCM16 RIFF/WAVE payload, skipping unknown chunks.
func ParseWAV(data []byte) (Clip, error) {
	r := bytes.NewReader(data)
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Clip{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var clip Clip
	haveFormat := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Clip{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		if size > int64(r.Len()) {
			size = int64(r.Len())
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return Clip{}, fmt.Errorf("read %s chunk: %w", id, err)
		}
		if size%2 == 1 && r.Len() > 0 {
			_, _ = r.ReadByte()
		}

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != 16 {
				return Clip{}, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedWAV, format, bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return Clip{}, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			clip.Samples = audio.BytesToInt16(body)
		}
	}
	if !haveFormat || clip.Channels == 0 || clip.SampleRate == 0 {
		return Clip{}, fmt.Errorf("%w: no fmt chunk", ErrUnsupportedWAV)
	}
	return clip, nil
}

// Mono returns the clip downmixed to one channel and resampled to rate.
func (c Clip) Mono(rate int) ([]int16, error) {
	mono := audio.Downmix(c.Samples, c.Channels)
	return audio.Resample(mono, c.SampleRate, rate)
}
