package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Detection mode values accepted by VOICE_DETECTION_MODE.
const (
	DetectionModeSilence    = "silence"
	DetectionModeStopPhrase = "stop_phrase"
)

// Config contains all runtime settings for the voice controller service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	SessionInactivityTimeout time.Duration

	// Utterance detection.
	DetectionMode      string
	SilenceThresholdDb float64
	SilenceDuration    time.Duration
	StopPhrase         string
	FrameQueueDepth    int
	SampleRate         int

	// Streaming transcription service.
	TranscriberWSURL  string
	TranscriberAPIKey string
	TranscriberModel  string

	// Command correction and feedback summarization.
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	CorrectionModel   string
	CorrectionTimeout time.Duration
	SummaryModel      string
	SummaryTimeout    time.Duration

	// Remote agent session layer.
	AgentHubURL     string
	AgentHubToken   string
	AgentHubTimeout time.Duration

	// Speech synthesis.
	TTSProvider      string
	TTSAPIKey        string
	TTSVoiceID       string
	TTSModelID       string
	SynthesisTimeout time.Duration

	// Feedback pipeline.
	FeedbackWorkers    int
	FeedbackQueueDepth int
	DedupRetention     time.Duration
	ObserverBufferSize int

	DatabaseURL string
	SentryDSN   string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "teamvoice"),
		AllowAnyOrigin:   false,

		DetectionMode: strings.ToLower(envOrDefault("VOICE_DETECTION_MODE", DetectionModeSilence)),
		// -40 dBFS sits comfortably below normal speech on consumer mics.
		SilenceThresholdDb: -40,
		SilenceDuration:    2 * time.Second,
		StopPhrase:         envOrDefault("VOICE_STOP_PHRASE", "over and out"),
		FrameQueueDepth:    64,
		SampleRate:         16000,

		TranscriberWSURL:  envOrDefault("TRANSCRIBER_WS_URL", "wss://api.deepgram.com/v1/listen"),
		TranscriberAPIKey: envTrimmed("TRANSCRIBER_API_KEY"),
		TranscriberModel:  envOrDefault("TRANSCRIBER_MODEL", "nova-3"),

		OpenAIAPIKey:      envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:     envTrimmed("OPENAI_BASE_URL"),
		CorrectionModel:   envOrDefault("CORRECTION_MODEL", "gpt-4o-mini"),
		CorrectionTimeout: 10 * time.Second,
		SummaryModel:      envOrDefault("SUMMARY_MODEL", "gpt-4o-mini"),
		SummaryTimeout:    30 * time.Second,

		AgentHubURL:     envTrimmed("AGENT_HUB_URL"),
		AgentHubToken:   envTrimmed("AGENT_HUB_TOKEN"),
		AgentHubTimeout: 15 * time.Second,

		TTSProvider:      envOrDefault("TTS_PROVIDER", "elevenlabs"),
		TTSAPIKey:        envTrimmed("ELEVENLABS_API_KEY"),
		TTSVoiceID:       envOrDefault("TTS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		TTSModelID:       envOrDefault("TTS_MODEL_ID", "eleven_flash_v2_5"),
		SynthesisTimeout: 30 * time.Second,

		FeedbackWorkers:    2,
		FeedbackQueueDepth: 64,
		DedupRetention:     30 * time.Second,
		ObserverBufferSize: 16,

		DatabaseURL: envTrimmed("DATABASE_URL"),
		SentryDSN:   envTrimmed("SENTRY_DSN"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.SilenceThresholdDb, err = floatFromEnv("VOICE_SILENCE_THRESHOLD_DB", cfg.SilenceThresholdDb)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceDuration, err = durationFromEnv("VOICE_SILENCE_DURATION", cfg.SilenceDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameQueueDepth, err = intFromEnv("VOICE_FRAME_QUEUE_DEPTH", cfg.FrameQueueDepth)
	if err != nil {
		return Config{}, err
	}
	cfg.SampleRate, err = intFromEnv("VOICE_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.CorrectionTimeout, err = durationFromEnv("CORRECTION_TIMEOUT", cfg.CorrectionTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryTimeout, err = durationFromEnv("SUMMARY_TIMEOUT", cfg.SummaryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentHubTimeout, err = durationFromEnv("AGENT_HUB_TIMEOUT", cfg.AgentHubTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisTimeout, err = durationFromEnv("SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FeedbackWorkers, err = intFromEnv("FEEDBACK_WORKERS", cfg.FeedbackWorkers)
	if err != nil {
		return Config{}, err
	}
	cfg.FeedbackQueueDepth, err = intFromEnv("FEEDBACK_QUEUE_DEPTH", cfg.FeedbackQueueDepth)
	if err != nil {
		return Config{}, err
	}
	cfg.DedupRetention, err = durationFromEnv("FEEDBACK_DEDUP_RETENTION", cfg.DedupRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.ObserverBufferSize, err = intFromEnv("FEEDBACK_OBSERVER_BUFFER", cfg.ObserverBufferSize)
	if err != nil {
		return Config{}, err
	}

	switch cfg.DetectionMode {
	case DetectionModeSilence, DetectionModeStopPhrase:
	default:
		return Config{}, fmt.Errorf("VOICE_DETECTION_MODE must be %q or %q", DetectionModeSilence, DetectionModeStopPhrase)
	}
	if cfg.DetectionMode == DetectionModeStopPhrase && strings.TrimSpace(cfg.StopPhrase) == "" {
		return Config{}, fmt.Errorf("VOICE_STOP_PHRASE must be set in stop_phrase mode")
	}
	if cfg.SilenceThresholdDb >= 0 {
		return Config{}, fmt.Errorf("VOICE_SILENCE_THRESHOLD_DB must be negative (dBFS)")
	}
	if cfg.SilenceDuration < 100*time.Millisecond {
		return Config{}, fmt.Errorf("VOICE_SILENCE_DURATION must be at least 100ms")
	}
	if cfg.FrameQueueDepth <= 0 {
		return Config{}, fmt.Errorf("VOICE_FRAME_QUEUE_DEPTH must be positive")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("VOICE_SAMPLE_RATE must be positive")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.FeedbackWorkers <= 0 {
		return Config{}, fmt.Errorf("FEEDBACK_WORKERS must be positive")
	}
	if cfg.FeedbackQueueDepth <= 0 {
		return Config{}, fmt.Errorf("FEEDBACK_QUEUE_DEPTH must be positive")
	}
	if cfg.ObserverBufferSize <= 0 {
		return Config{}, fmt.Errorf("FEEDBACK_OBSERVER_BUFFER must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
