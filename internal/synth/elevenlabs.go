package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hungson175/teamvoice/internal/audio"
	"github.com/hungson175/teamvoice/internal/observability"
)

const (
	elevenLabsAPIURL   = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenSampleRate   = 16000
	defaultElevenVoice = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsSynthesizer renders text to speech via the ElevenLabs HTTP
// API. It requests raw PCM and wraps the result in a WAV container so
// observers can play it without knowing the provider.
type ElevenLabsSynthesizer struct {
	apiKey  string
	modelID string
	baseURL string
	metrics *observability.Metrics
	client  *http.Client
}

func NewElevenLabsSynthesizer(apiKey, modelID string, metrics *observability.Metrics) *ElevenLabsSynthesizer {
	if modelID == "" {
		modelID = "eleven_flash_v2_5"
	}
	return &ElevenLabsSynthesizer{
		apiKey:  apiKey,
		modelID: modelID,
		baseURL: elevenLabsAPIURL,
		metrics: metrics,
		client:  &http.Client{},
	}
}

func (s *ElevenLabsSynthesizer) Provider() string { return "elevenlabs" }

type elevenRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = defaultElevenVoice
	}
	url := fmt.Sprintf("%s/%s?output_format=pcm_%d", s.baseURL, voiceID, elevenSampleRate)

	payload, err := json.Marshal(elevenRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	res, err := s.client.Do(req)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("tts", "request").Inc()
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		s.metrics.ProviderErrors.WithLabelValues("tts", fmt.Sprintf("status_%d", res.StatusCode)).Inc()
		return nil, fmt.Errorf("tts status %d: %s", res.StatusCode, string(body))
	}

	pcm, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("tts returned no audio")
	}
	wav, err := audio.EncodeWAVPCM16LE(pcm, elevenSampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return wav, nil
}
