package audio

import (
	"bytes"
	"testing"
)

func TestEnergyDbSilentFrameAtFloor(t *testing.T) {
	f := SilentFrame(16000, 100)
	if got := f.EnergyDb(); got != -96.0 {
		t.Fatalf("EnergyDb() = %v, want -96 for all-zero frame", got)
	}
}

func TestEnergyDbLoudAboveQuiet(t *testing.T) {
	loud := SineFrame(16000, 100, 440, 0.8)
	quiet := SineFrame(16000, 100, 440, 0.005)
	if loud.EnergyDb() <= quiet.EnergyDb() {
		t.Fatalf("loud %v <= quiet %v, want loud frame to carry more energy", loud.EnergyDb(), quiet.EnergyDb())
	}
	if loud.EnergyDb() > 0 {
		t.Fatalf("EnergyDb() = %v, want <= 0 dBFS", loud.EnergyDb())
	}
}

func TestEnergyDbFullScaleNearZero(t *testing.T) {
	f := SineFrame(16000, 100, 440, 1.0)
	got := f.EnergyDb()
	// Full-scale sine has RMS of -3.01 dBFS.
	if got < -4 || got > -2 {
		t.Fatalf("EnergyDb() = %v, want around -3 dBFS for full-scale sine", got)
	}
}

func TestFrameDuration(t *testing.T) {
	f := SilentFrame(16000, 100)
	if got := f.Duration(); got != 100 {
		t.Fatalf("Duration() = %d, want 100", got)
	}
	if got := (Frame{}).Duration(); got != 0 {
		t.Fatalf("Duration() empty = %d, want 0", got)
	}
}

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := make([]byte, 3200)
	wav, err := EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len(wav) = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Fatalf("wav prefix = %q, want RIFF", wav[:4])
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatalf("wav[8:12] = %q, want WAVE", wav[8:12])
	}
}
