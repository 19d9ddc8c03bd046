package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.DetectionMode != DetectionModeSilence {
		t.Fatalf("DetectionMode = %q, want %q", cfg.DetectionMode, DetectionModeSilence)
	}
	if cfg.SilenceDuration != 2*time.Second {
		t.Fatalf("SilenceDuration = %s, want 2s", cfg.SilenceDuration)
	}
	if cfg.SilenceThresholdDb >= 0 {
		t.Fatalf("SilenceThresholdDb = %v, want negative", cfg.SilenceThresholdDb)
	}
	if cfg.FeedbackWorkers <= 0 {
		t.Fatalf("FeedbackWorkers = %d, want positive", cfg.FeedbackWorkers)
	}
}

func TestLoadDetectionModeValidation(t *testing.T) {
	t.Setenv("VOICE_DETECTION_MODE", "both")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want invalid detection mode error")
	}
}

func TestLoadStopPhraseMode(t *testing.T) {
	t.Setenv("VOICE_DETECTION_MODE", "stop_phrase")
	t.Setenv("VOICE_STOP_PHRASE", "go go go")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StopPhrase != "go go go" {
		t.Fatalf("StopPhrase = %q, want %q", cfg.StopPhrase, "go go go")
	}
}

func TestLoadRejectsNonNegativeThreshold(t *testing.T) {
	t.Setenv("VOICE_SILENCE_THRESHOLD_DB", "3")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want threshold validation error")
	}
}

func TestLoadRejectsTinySilenceDuration(t *testing.T) {
	t.Setenv("VOICE_SILENCE_DURATION", "20ms")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want silence duration validation error")
	}
}

func TestLoadDurationOverride(t *testing.T) {
	t.Setenv("VOICE_SILENCE_DURATION", "1500ms")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SilenceDuration != 1500*time.Millisecond {
		t.Fatalf("SilenceDuration = %s, want 1.5s", cfg.SilenceDuration)
	}
}
