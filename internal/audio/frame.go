package audio

import (
	"encoding/binary"
	"math"
)

// Frame is one fixed-duration block of mono PCM16LE samples as captured
// from the operator's microphone. Frames are immutable once produced.
type Frame struct {
	PCM        []byte
	SampleRate int
}

// Duration returns the frame length in milliseconds, 0 for an empty frame.
func (f Frame) Duration() int {
	if f.SampleRate <= 0 || len(f.PCM) < 2 {
		return 0
	}
	samples := len(f.PCM) / 2
	return samples * 1000 / f.SampleRate
}

// EnergyDb returns the frame's RMS level in dBFS (0 dBFS = full scale).
// An empty or all-zero frame reports the floor value.
func (f Frame) EnergyDb() float64 {
	const floorDb = -96.0
	n := len(f.PCM) / 2
	if n == 0 {
		return floorDb
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(f.PCM[i*2 : i*2+2]))
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	if rms < 1 {
		return floorDb
	}
	db := 20 * math.Log10(rms/32768.0)
	if db < floorDb {
		return floorDb
	}
	return db
}

// SineFrame generates a PCM16LE test tone. Amplitude is full-scale
// fraction in [0,1]. Used by detector tests and the mock transcriber.
func SineFrame(sampleRate, durationMs int, freqHz float64, amplitude float64) Frame {
	if amplitude < 0 {
		amplitude = 0
	}
	if amplitude > 1 {
		amplitude = 1
	}
	samples := sampleRate * durationMs / 1000
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate))
		s := int16(v * 32767)
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(s))
	}
	return Frame{PCM: pcm, SampleRate: sampleRate}
}

// SilentFrame generates an all-zero PCM16LE frame.
func SilentFrame(sampleRate, durationMs int) Frame {
	samples := sampleRate * durationMs / 1000
	return Frame{PCM: make([]byte, samples*2), SampleRate: sampleRate}
}
