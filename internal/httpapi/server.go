package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hungson175/teamvoice/internal/agents"
	"github.com/hungson175/teamvoice/internal/config"
	"github.com/hungson175/teamvoice/internal/feedback"
	"github.com/hungson175/teamvoice/internal/observability"
	"github.com/hungson175/teamvoice/internal/protocol"
	"github.com/hungson175/teamvoice/internal/session"
	"github.com/hungson175/teamvoice/internal/synth"
	"github.com/hungson175/teamvoice/internal/voice"
)

// Orchestrator runs the voice pipeline for one operator connection.
type Orchestrator interface {
	RunConnection(ctx context.Context, params voice.ConnectionParams, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg         config.Config
	sessions    *session.Manager
	pipeline    Orchestrator
	feedback    *feedback.Service
	broadcaster *feedback.Broadcaster
	agentLayer  agents.SessionLayer
	synthCache  *synth.CachingSynthesizer
	providers   map[string]synth.SpeechSynthesizer
	metrics     *observability.Metrics
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, pipeline Orchestrator, svc *feedback.Service, broadcaster *feedback.Broadcaster, agentLayer agents.SessionLayer, synthCache *synth.CachingSynthesizer, providers map[string]synth.SpeechSynthesizer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		pipeline:    pipeline,
		feedback:    svc,
		broadcaster: broadcaster,
		agentLayer:  agentLayer,
		synthCache:  synthCache,
		providers:   providers,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser connections must come from the same origin so
				// another site cannot drive the operator's mic session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/session", s.handleCreateSession)
	r.Post("/v1/voice/session/{id}/end", s.handleEndSession)
	r.Get("/v1/voice/ws", s.handleOperatorWS)
	r.Post("/v1/voice/config", s.handleVoiceConfig)
	r.Get("/v1/voice/config", s.handleGetVoiceConfig)

	r.Get("/v1/agents/sessions", s.handleListAgentSessions)

	r.Post("/v1/feedback/trigger", s.handleTriggerFeedback)
	r.Get("/v1/feedback/tasks", s.handleListFeedbackTasks)
	r.Get("/v1/feedback/ws", s.handleObserverWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"observers": s.broadcaster.ObserverCount(),
		"sessions":  s.sessions.ActiveCount(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.OperatorID) == "" {
		req.OperatorID = "anonymous"
	}

	detection := session.DetectionConfig{
		Mode:               s.cfg.DetectionMode,
		SilenceThresholdDb: s.cfg.SilenceThresholdDb,
		SilenceDurationMs:  s.cfg.SilenceDuration.Milliseconds(),
		StopPhrase:         s.cfg.StopPhrase,
	}
	if req.Detection != nil {
		d := *req.Detection
		if d.Mode != "" {
			detection.Mode = strings.ToLower(d.Mode)
		}
		if d.SilenceThresholdDb != 0 {
			detection.SilenceThresholdDb = d.SilenceThresholdDb
		}
		if d.SilenceDurationMs > 0 {
			detection.SilenceDurationMs = d.SilenceDurationMs
		}
		if strings.TrimSpace(d.StopPhrase) != "" {
			detection.StopPhrase = d.StopPhrase
		}
	}
	switch detection.Mode {
	case config.DetectionModeSilence, config.DetectionModeStopPhrase:
	default:
		respondError(w, http.StatusBadRequest, "invalid_detection_mode", "mode must be silence or stop_phrase")
		return
	}

	sess := s.sessions.Create(req.OperatorID, detection)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		OperatorID:      sess.OperatorID,
		Status:          sess.Status,
		Detection:       sess.Detection,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListAgentSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.agentLayer.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "hub_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.TranscriptPartial:
		return m.Type, true
	case protocol.TranscriptFinal:
		return m.Type, true
	case protocol.UtteranceFinal:
		return m.Type, true
	case protocol.CorrectionDelta:
		return m.Type, true
	case protocol.CommandSent:
		return m.Type, true
	case protocol.DispatchResult:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	case protocol.FeedbackMessage:
		return m.Type, true
	default:
		return "", false
	}
}
