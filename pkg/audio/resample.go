package audio

import (
	"errors"

	resampler "github.com/godeps/go-audio-soxr"
)

// StreamResampler keeps resampling state across frames.
type StreamResampler struct {
	r      *resampler.SimpleResamplerFloat32
	outBuf []float32
}

// NewStreamResampler creates a streaming resampler for continuous mono audio.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, errors.New("resampler: rates must be positive")
	}
	r, err := resampler.NewEngineFloat32(float64(inRate), float64(outRate), resampler.QualityHigh)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{r: r}, nil
}

// Close releases the underlying resampler.
func (s *StreamResampler) Close() {
	if s == nil {
		return
	}
	s.r = nil
	s.outBuf = nil
}

// AppendPCM feeds PCM16 samples.
func (s *StreamResampler) AppendPCM(pcm []int16) error {
	if s == nil || s.r == nil {
		return errors.New("resampler closed")
	}
	if len(pcm) == 0 {
		return nil
	}
	out, err := s.r.Process(Int16ToFloat32(pcm))
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Flush drains samples still held by the resampler.
func (s *StreamResampler) Flush() error {
	if s == nil || s.r == nil {
		return errors.New("resampler closed")
	}
	out, err := s.r.Flush()
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Buffered returns how many output samples are waiting.
func (s *StreamResampler) Buffered() int {
	if s == nil {
		return 0
	}
	return len(s.outBuf)
}

// PopFrame returns a frame of frameSize PCM16 samples if enough are buffered.
func (s *StreamResampler) PopFrame(frameSize int) ([]int16, bool) {
	if s == nil || frameSize <= 0 || len(s.outBuf) < frameSize {
		return nil, false
	}
	frame := Float32ToInt16(s.outBuf[:frameSize])
	s.outBuf = s.outBuf[frameSize:]
	return frame, true
}

// PopRemainderPadded returns what is left, zero padded to frameSize.
func (s *StreamResampler) PopRemainderPadded(frameSize int) []int16 {
	if s == nil || frameSize <= 0 || len(s.outBuf) == 0 {
		return nil
	}
	frame := make([]int16, frameSize)
	copy(frame, Float32ToInt16(s.outBuf))
	s.outBuf = nil
	return frame
}

// Resample converts a whole mono clip from inRate to outRate.
func Resample(pcm []int16, inRate, outRate int) ([]int16, error) {
	if inRate == outRate {
		return append([]int16(nil), pcm...), nil
	}
	s, err := NewStreamResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.AppendPCM(pcm); err != nil {
		return nil, err
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}
	return Float32ToInt16(s.outBuf), nil
}
