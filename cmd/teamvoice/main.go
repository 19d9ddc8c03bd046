package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/hungson175/teamvoice/internal/agents"
	"github.com/hungson175/teamvoice/internal/config"
	"github.com/hungson175/teamvoice/internal/feedback"
	"github.com/hungson175/teamvoice/internal/httpapi"
	"github.com/hungson175/teamvoice/internal/observability"
	"github.com/hungson175/teamvoice/internal/session"
	"github.com/hungson175/teamvoice/internal/synth"
	"github.com/hungson175/teamvoice/internal/voice"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatalf("sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store feedback.Store
	if cfg.DatabaseURL != "" {
		pg, err := feedback.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("feedback journal init failed: %v", err)
		}
		store = pg
		log.Printf("feedback journal: postgres")
	} else {
		store = feedback.NewMemoryStore()
		log.Printf("feedback journal: in-memory")
	}
	defer store.Close()

	var layer agents.SessionLayer
	if cfg.AgentHubURL != "" {
		layer = agents.NewHTTPClient(cfg.AgentHubURL, cfg.AgentHubToken, cfg.AgentHubTimeout)
		log.Printf("session layer: %s", cfg.AgentHubURL)
	} else {
		layer = agents.NewMockSessionLayer()
		log.Printf("session layer: mock (AGENT_HUB_URL not set)")
	}

	var transcriber voice.Transcriber
	if cfg.TranscriberAPIKey != "" {
		transcriber = voice.NewStreamingTranscriber(cfg.TranscriberWSURL, cfg.TranscriberAPIKey, cfg.TranscriberModel, metrics)
		log.Printf("transcriber: streaming (%s)", cfg.TranscriberModel)
	} else {
		transcriber = voice.NewMockTranscriber()
		log.Printf("transcriber: mock (TRANSCRIBER_API_KEY not set)")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Printf("warning: OPENAI_API_KEY not set, correction and summarization will fail")
	}
	oaCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oaCfg.BaseURL = cfg.OpenAIBaseURL
	}
	oaClient := openai.NewClientWithConfig(oaCfg)

	corrector := voice.NewCorrector(oaClient, cfg.CorrectionModel, cfg.CorrectionTimeout, metrics)
	summarizer := synth.NewOpenAISummarizer(oaClient, cfg.SummaryModel, cfg.SummaryTimeout, metrics)

	providers := map[string]synth.SpeechSynthesizer{
		"mock": &synth.MockSynthesizer{Name: "mock"},
	}
	if cfg.TTSAPIKey != "" {
		providers["elevenlabs"] = synth.NewElevenLabsSynthesizer(cfg.TTSAPIKey, cfg.TTSModelID, metrics)
	}
	active, ok := providers[strings.ToLower(cfg.TTSProvider)]
	if !ok {
		log.Printf("synthesis provider %q unavailable, using mock", cfg.TTSProvider)
		active = providers["mock"]
	}
	cache := synth.NewCachingSynthesizer(active, cfg.TTSVoiceID)
	log.Printf("synthesis provider: %s voice=%s", cache.ProviderName(), cache.VoiceID())

	producer := &feedback.Producer{
		Layer:            layer,
		Summarizer:       summarizer,
		Synth:            cache,
		SynthesisTimeout: cfg.SynthesisTimeout,
		Metrics:          metrics,
	}
	broadcaster := feedback.NewBroadcaster(cfg.ObserverBufferSize, metrics)
	queue := feedback.NewQueue(producer, broadcaster, store, cfg.FeedbackQueueDepth, cfg.DedupRetention, metrics)
	feedbackSvc := feedback.NewService(queue, feedback.NewInline(producer, broadcaster, metrics), metrics)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	pipeline := &voice.Pipeline{
		Transcriber: transcriber,
		Rewriter:    corrector,
		Dispatcher:  agents.NewDispatcher(layer, metrics),
		Sessions:    sessions,
		Metrics:     metrics,
		Stream: voice.StreamConfig{
			SampleRate: cfg.SampleRate,
			Encoding:   "linear16",
			Model:      cfg.TranscriberModel,
		},
		FrameQueueDepth: cfg.FrameQueueDepth,
	}

	api := httpapi.New(cfg, sessions, pipeline, feedbackSvc, broadcaster, layer, cache, providers, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	queue.Start(gctx, cfg.FeedbackWorkers)
	sessions.StartJanitor(gctx, 5*time.Second)

	g.Go(func() error {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutdown signal received")
		queue.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
			return httpServer.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("shutdown complete")
}
