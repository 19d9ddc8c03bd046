package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hungson175/teamvoice/internal/audio"
	"github.com/hungson175/teamvoice/internal/observability"
	"github.com/hungson175/teamvoice/internal/protocol"
	"github.com/hungson175/teamvoice/internal/session"
)

// CommandRewriter produces the correction stream for one utterance.
type CommandRewriter interface {
	Correct(ctx context.Context, rawText string) <-chan CorrectionEvent
}

// CommandDispatcher hands the corrected command to the session layer.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, sessionRef, roleRef, text string) error
}

// Pipeline runs the capture, detection, correction and dispatch loop
// for operator connections. One RunConnection call per websocket.
type Pipeline struct {
	Transcriber Transcriber
	Rewriter    CommandRewriter
	Dispatcher  CommandDispatcher
	Sessions    *session.Manager
	Metrics     *observability.Metrics

	Stream          StreamConfig
	FrameQueueDepth int
}

// ConnectionParams binds one operator connection to its voice session
// and the agent session that commands are dispatched to.
type ConnectionParams struct {
	Session  *session.Session
	AgentRef string
	RoleRef  string
}

// RunConnection consumes parsed client messages from inbound and emits
// protocol messages on outbound until inbound closes, the context ends,
// or the transcription stream fails. The caller owns both channels and
// the outbound writer.
func (p *Pipeline) RunConnection(ctx context.Context, params ConnectionParams, inbound <-chan any, outbound chan<- any) error {
	sess := params.Session
	detector := NewDetector(DetectorConfig{
		Mode:               DetectionMethod(sess.Detection.Mode),
		SilenceThresholdDb: sess.Detection.SilenceThresholdDb,
		SilenceDuration:    time.Duration(sess.Detection.SilenceDurationMs) * time.Millisecond,
		StopPhrase:         sess.Detection.StopPhrase,
	})

	stream, tokens, err := p.Transcriber.StartStream(ctx, sess.ID, p.Stream)
	if err != nil {
		p.send(ctx, outbound, protocol.ErrorEvent{
			Type: protocol.TypeErrorEvent, SessionID: sess.ID,
			Code: "transcriber_unavailable", Source: "transcription", Detail: err.Error(),
		})
		return err
	}
	defer stream.Close()

	depth := p.FrameQueueDepth
	if depth <= 0 {
		depth = 64
	}
	frameCh := make(chan audio.Frame, depth)
	sendErr := make(chan error, 1)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frameCh:
				if !ok {
					return
				}
				if err := stream.SendFrame(ctx, frame); err != nil {
					select {
					case sendErr <- err:
					default:
					}
					return
				}
			}
		}
	}()
	defer close(frameCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-sendErr:
			p.send(ctx, outbound, protocol.ErrorEvent{
				Type: protocol.TypeErrorEvent, SessionID: sess.ID,
				Code: "transcriber_write_failed", Source: "transcription",
				Retryable: true, Detail: err.Error(),
			})
			return err

		case ev, ok := <-tokens:
			if !ok {
				// Provider closed the stream without a prior error event.
				return nil
			}
			if done, err := p.handleToken(ctx, params, detector, ev, outbound); done {
				return err
			}

		case msg, ok := <-inbound:
			if !ok {
				detector.Reset()
				return nil
			}
			if done := p.handleClientMessage(ctx, params, detector, frameCh, msg, outbound); done {
				return nil
			}
		}
	}
}

func (p *Pipeline) handleClientMessage(ctx context.Context, params ConnectionParams, detector *Detector, frameCh chan audio.Frame, msg any, outbound chan<- any) bool {
	sess := params.Session

	switch m := msg.(type) {
	case protocol.ClientAudioChunk:
		_ = p.Sessions.Touch(sess.ID)
		pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
		if err != nil {
			p.send(ctx, outbound, protocol.ErrorEvent{
				Type: protocol.TypeErrorEvent, SessionID: sess.ID,
				Code: "bad_audio_chunk", Source: "capture", Detail: err.Error(),
			})
			return false
		}
		frame := audio.Frame{PCM: pcm, SampleRate: m.SampleRate}

		// Stale audio is worse than a tiny gap: drop the oldest unsent
		// frame instead of blocking capture.
		select {
		case frameCh <- frame:
		default:
			select {
			case <-frameCh:
			default:
			}
			select {
			case frameCh <- frame:
			default:
			}
		}

		if utt := detector.Feed(frame); utt != nil {
			p.runTurn(ctx, params, detector, utt, outbound)
		}

	case protocol.ClientControl:
		_ = p.Sessions.Touch(sess.ID)
		switch m.Action {
		case "end":
			detector.Reset()
			return true
		case "reset":
			detector.Reset()
			p.send(ctx, outbound, protocol.SystemEvent{
				Type: protocol.TypeSystemEvent, SessionID: sess.ID, Code: "utterance_discarded",
			})
		default:
			p.send(ctx, outbound, protocol.ErrorEvent{
				Type: protocol.TypeErrorEvent, SessionID: sess.ID,
				Code: "unknown_control_action", Source: "capture", Detail: m.Action,
			})
		}
	}
	return false
}

// handleToken processes one transcriber event. It reports done=true when
// the connection must end.
func (p *Pipeline) handleToken(ctx context.Context, params ConnectionParams, detector *Detector, ev TokenEvent, outbound chan<- any) (bool, error) {
	sess := params.Session

	switch ev.Type {
	case TokenInterim:
		p.send(ctx, outbound, protocol.TranscriptPartial{
			Type: protocol.TypeTranscriptPartial, SessionID: sess.ID, Text: ev.Text, TSMs: ev.TSMs,
		})
	case TokenFinal:
		p.send(ctx, outbound, protocol.TranscriptFinal{
			Type: protocol.TypeTranscriptFinal, SessionID: sess.ID, Text: ev.Text, TSMs: ev.TSMs,
		})
		if utt := detector.AppendFinal(ev.Text); utt != nil {
			p.runTurn(ctx, params, detector, utt, outbound)
		}
	case TokenError:
		// No silent reconnect: surface and end so the operator restarts.
		p.send(ctx, outbound, protocol.ErrorEvent{
			Type: protocol.TypeErrorEvent, SessionID: sess.ID,
			Code: ev.Code, Source: "transcription", Retryable: ev.Retryable, Detail: ev.Detail,
		})
		return true, fmt.Errorf("transcription: %s", ev.Code)
	}
	return false, nil
}

// runTurn drives one utterance through correction and dispatch. The
// detector is paused, not reset, for the duration; a new utterance may
// not finalize while this one is in flight.
func (p *Pipeline) runTurn(ctx context.Context, params ConnectionParams, detector *Detector, utt *Utterance, outbound chan<- any) {
	sess := params.Session
	turnID := uuid.NewString()

	detector.Pause()
	defer detector.Resume()

	if err := p.Sessions.StartTurn(sess.ID, turnID); err != nil {
		log.Printf("pipeline: session=%s start turn: %v", sess.ID, err)
		return
	}
	defer func() {
		_ = p.Sessions.EndTurn(sess.ID)
	}()

	p.Metrics.UtterancesFinalized.WithLabelValues(string(utt.Method)).Inc()
	p.send(ctx, outbound, protocol.UtteranceFinal{
		Type: protocol.TypeUtteranceFinal, SessionID: sess.ID, TurnID: turnID,
		Text: utt.RawText, Method: string(utt.Method), TSMs: utt.FinalizedAt.UnixMilli(),
	})

	var finalText string
	for ev := range p.Rewriter.Correct(ctx, utt.RawText) {
		switch ev.Type {
		case CorrectionPartial:
			p.send(ctx, outbound, protocol.CorrectionDelta{
				Type: protocol.TypeCorrectionDelta, SessionID: sess.ID, TurnID: turnID, TextDelta: ev.Text,
			})
		case CorrectionSent:
			finalText = ev.Text
		case CorrectionFailed:
			// Utterance discarded; nothing is ever partially dispatched.
			p.send(ctx, outbound, protocol.ErrorEvent{
				Type: protocol.TypeErrorEvent, SessionID: sess.ID,
				Code: ev.Code, Source: "correction", Detail: ev.Detail,
			})
			return
		}
	}
	if finalText == "" {
		return
	}

	p.send(ctx, outbound, protocol.CommandSent{
		Type: protocol.TypeCommandSent, SessionID: sess.ID, TurnID: turnID, Text: finalText,
	})

	result := protocol.DispatchResult{
		Type: protocol.TypeDispatchResult, SessionID: sess.ID, TurnID: turnID,
		AgentRef: params.AgentRef, RoleRef: params.RoleRef, Success: true,
	}
	if err := p.Dispatcher.Dispatch(ctx, params.AgentRef, params.RoleRef, finalText); err != nil {
		result.Success = false
		result.FailReason = err.Error()
	}
	p.send(ctx, outbound, result)
}

func (p *Pipeline) send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	case <-ctx.Done():
	}
}
