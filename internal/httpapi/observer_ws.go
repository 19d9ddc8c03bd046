package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/hungson175/teamvoice/internal/protocol"
)

// handleObserverWS pushes finished feedback to one observer. The
// client may send {type: observer_control, action: pause|resume};
// while paused, delivery stops and the observer's bounded buffer
// absorbs (and eventually drops) messages.
func (s *Server) handleObserverWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	messages, unsubscribe := s.broadcaster.Subscribe()
	defer unsubscribe()

	// Control frames from the observer.
	controls := make(chan protocol.ObserverControl, 8)
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		conn.SetReadLimit(64 << 10)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ctrl, err := protocol.ParseObserverMessage(data)
			if err != nil {
				continue
			}
			select {
			case controls <- ctrl:
			default:
			}
		}
	}()

	paused := false
	for {
		// A nil channel silences delivery while paused; the publisher
		// keeps filling (and trimming) the subscription buffer.
		deliver := messages
		if paused {
			deliver = nil
		}

		select {
		case <-readClosed:
			return
		case ctrl := <-controls:
			paused = ctrl.Action == "pause"
		case msg, ok := <-deliver:
			if !ok {
				return
			}
			payload := protocol.FeedbackMessage{
				Type:           protocol.TypeFeedbackMessage,
				AgentRef:       msg.SessionRef,
				RoleRef:        msg.RoleRef,
				SummaryText:    msg.SummaryText,
				AudioWAVBase64: base64.StdEncoding.EncodeToString(msg.AudioWAV),
				TSMs:           msg.ProducedAt.UnixMilli(),
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
			s.metrics.WSMessages.WithLabelValues("outbound", string(protocol.TypeFeedbackMessage)).Inc()
		}
	}
}
