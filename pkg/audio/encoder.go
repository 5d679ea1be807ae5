package audio

import (
	"fmt"
	"sync"

	"github.com/godeps/opus"
)

// EncoderOptions tunes the opus encoder. Zero values keep the library defaults.
type EncoderOptions struct {
	Bitrate    int
	Complexity int
	FEC        bool
	DTX        bool
}

// OpusEncoder turns fixed-size PCM16 frames into opus packets.
type OpusEncoder struct {
	encoder       *opus.Encoder
	sampleRate    int
	channels      int
	frameDuration int
	frameSize     int
	opusBuffer    []byte
	mutex         sync.Mutex
}

// NewOpusEncoder creates an encoder for frames of frameDurationMs.
func NewOpusEncoder(sampleRate, channels, frameDurationMs int, opts EncoderOptions) (*OpusEncoder, error) {
	if frameDurationMs <= 0 {
		return nil, fmt.Errorf("invalid frame duration %dms", frameDurationMs)
	}
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if opts.Bitrate > 0 {
		if err := enc.SetBitrate(opts.Bitrate); err != nil {
			return nil, fmt.Errorf("set opus bitrate: %w", err)
		}
	}
	if opts.Complexity > 0 {
		if err := enc.SetComplexity(opts.Complexity); err != nil {
			return nil, fmt.Errorf("set opus complexity: %w", err)
		}
	}
	if opts.FEC {
		if err := enc.SetInBandFEC(true); err != nil {
			return nil, fmt.Errorf("set opus fec: %w", err)
		}
	}
	if opts.DTX {
		if err := enc.SetDTX(true); err != nil {
			return nil, fmt.Errorf("set opus dtx: %w", err)
		}
	}

	return &OpusEncoder{
		encoder:       enc,
		sampleRate:    sampleRate,
		channels:      channels,
		frameDuration: frameDurationMs,
		frameSize:     sampleRate * frameDurationMs / 1000,
		opusBuffer:    make([]byte, 4000),
	}, nil
}

// Encode encodes one frame. Short input is zero padded and long input truncated.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.encoder == nil {
		return nil, fmt.Errorf("opus encoder closed")
	}

	expected := e.frameSize * e.channels
	if len(pcm) < expected {
		padded := make([]int16, expected)
		copy(padded, pcm)
		pcm = padded
	} else if len(pcm) > expected {
		pcm = pcm[:expected]
	}

	n, err := e.encoder.Encode(pcm, e.opusBuffer)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	result := make([]byte, n)
	copy(result, e.opusBuffer[:n])
	return result, nil
}

// Close releases the encoder.
func (e *OpusEncoder) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.encoder = nil
	e.opusBuffer = nil
	return nil
}

// FrameSize returns samples per channel in one frame.
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// FrameDuration returns the frame length in milliseconds.
func (e *OpusEncoder) FrameDuration() int {
	return e.frameDuration
}

// Channels returns the channel count.
func (e *OpusEncoder) Channels() int {
	return e.channels
}
