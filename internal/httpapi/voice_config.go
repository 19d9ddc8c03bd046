package httpapi

import (
	"net/http"
	"strings"
)

type voiceConfigRequest struct {
	Provider string `json:"provider,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
}

type voiceConfigResponse struct {
	Provider      string `json:"provider"`
	VoiceID       string `json:"voice_id"`
	ConfigVersion uint64 `json:"config_version"`
}

// handleVoiceConfig switches the synthesis voice or provider at
// runtime. Any change flushes the synthesis cache, so feedback rendered
// after this call always uses the new voice.
func (s *Server) handleVoiceConfig(w http.ResponseWriter, r *http.Request) {
	var req voiceConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.VoiceID = strings.TrimSpace(req.VoiceID)
	if req.Provider == "" && req.VoiceID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "provider or voice_id is required")
		return
	}

	if req.Provider != "" {
		synth, ok := s.providers[req.Provider]
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown_provider", "no such synthesis provider: "+req.Provider)
			return
		}
		s.synthCache.Configure(synth, req.VoiceID)
	} else {
		s.synthCache.Configure(nil, req.VoiceID)
	}

	respondJSON(w, http.StatusOK, voiceConfigResponse{
		Provider:      s.synthCache.ProviderName(),
		VoiceID:       s.synthCache.VoiceID(),
		ConfigVersion: s.synthCache.Version(),
	})
}

func (s *Server) handleGetVoiceConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, voiceConfigResponse{
		Provider:      s.synthCache.ProviderName(),
		VoiceID:       s.synthCache.VoiceID(),
		ConfigVersion: s.synthCache.Version(),
	})
}
