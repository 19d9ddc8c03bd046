package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hungson175/teamvoice/internal/audio"
	"github.com/hungson175/teamvoice/internal/observability"
)

// StreamingTranscriber connects to a Deepgram-compatible streaming STT
// endpoint over websocket. One websocket per voice session; a dropped
// provider connection ends the stream with a TokenError rather than
// reconnecting behind the caller's back.
type StreamingTranscriber struct {
	wsURL   string
	apiKey  string
	model   string
	metrics *observability.Metrics
}

func NewStreamingTranscriber(wsURL, apiKey, model string, metrics *observability.Metrics) *StreamingTranscriber {
	return &StreamingTranscriber{wsURL: wsURL, apiKey: apiKey, model: model, metrics: metrics}
}

// providerResult is the Results payload of the provider's wire format.
type providerResult struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

type providerStream struct {
	conn      *websocket.Conn
	metrics   *observability.Metrics
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (t *StreamingTranscriber) StartStream(ctx context.Context, sessionID string, cfg StreamConfig) (TranscriptStream, <-chan TokenEvent, error) {
	url := fmt.Sprintf("%s?model=%s&encoding=%s&sample_rate=%d&channels=1&punctuate=true&interim_results=true",
		t.wsURL, t.model, cfg.Encoding, cfg.SampleRate)
	if cfg.Language != "" {
		url += "&language=" + cfg.Language
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		t.metrics.ProviderErrors.WithLabelValues("transcriber", "dial").Inc()
		return nil, nil, fmt.Errorf("transcriber dial: %w", err)
	}

	s := &providerStream{
		conn:    conn,
		metrics: t.metrics,
		done:    make(chan struct{}),
	}
	tokens := make(chan TokenEvent, 64)

	s.wg.Add(1)
	go s.readLoop(sessionID, tokens)

	return s, tokens, nil
}

func (s *providerStream) SendFrame(ctx context.Context, frame audio.Frame) error {
	select {
	case <-s.done:
		return fmt.Errorf("transcript stream closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame.PCM)
}

func (s *providerStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()

		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

// readLoop drains provider responses into the token channel. The channel
// is closed when the provider connection ends, for any reason; an error
// end is surfaced as a final TokenError so the session can report it.
func (s *providerStream) readLoop(sessionID string, tokens chan<- TokenEvent) {
	defer s.wg.Done()
	defer close(tokens)

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.metrics.ProviderErrors.WithLabelValues("transcriber", "read").Inc()
				s.emit(tokens, TokenEvent{
					Type:      TokenError,
					Code:      "transcriber_disconnected",
					Detail:    err.Error(),
					Retryable: true,
					TSMs:      time.Now().UnixMilli(),
				})
			}
			return
		}

		var resp providerResult
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Printf("transcriber: session=%s unparseable response: %v", sessionID, err)
			continue
		}
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		text := resp.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}

		kind := TokenInterim
		if resp.IsFinal {
			kind = TokenFinal
		}
		s.emit(tokens, TokenEvent{Type: kind, Text: text, TSMs: time.Now().UnixMilli()})
	}
}

func (s *providerStream) emit(tokens chan<- TokenEvent, ev TokenEvent) {
	select {
	case <-s.done:
	case tokens <- ev:
	}
}
