// Package audio holds the PCM, resampling and opus helpers behind the local audio track.
package audio

import "math"

func float32ToInt16(sample float32) int16 {
	if sample > 1.0 {
		return 32767
	}
	if sample < -1.0 {
		return -32768
	}
	return int16(sample * 32767)
}

// Float32ToInt16 converts normalized samples to PCM16 with clipping.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, sample := range samples {
		out[i] = float32ToInt16(sample)
	}
	return out
}

// Int16ToFloat32 converts PCM16 samples to the [-1, 1] range.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, sample := range samples {
		out[i] = float32(sample) / float32(math.MaxInt16)
	}
	return out
}

// BytesToInt16 reads little-endian PCM16. A trailing odd byte is dropped.
func BytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}

// Int16ToBytes writes little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return append([]int16(nil), samples...)
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Upmix duplicates mono samples into interleaved channels.
func Upmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return append([]int16(nil), samples...)
	}
	out := make([]int16, len(samples)*channels)
	for i, sample := range samples {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = sample
		}
	}
	return out
}
