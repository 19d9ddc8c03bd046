package voice

import (
	"strings"
	"sync"
	"time"

	"github.com/hungson175/teamvoice/internal/audio"
)

type DetectionMethod string

const (
	DetectSilence    DetectionMethod = "silence"
	DetectStopPhrase DetectionMethod = "stop_phrase"
)

// Utterance is one finalized unit of spoken input, ready for correction.
// It is never mutated after creation.
type Utterance struct {
	RawText     string
	FinalizedAt time.Time
	Method      DetectionMethod
}

// DetectorConfig fixes the finalization policy for the detector's lifetime.
type DetectorConfig struct {
	Mode               DetectionMethod
	SilenceThresholdDb float64
	SilenceDuration    time.Duration
	StopPhrase         string
}

// Detector decides when a spoken utterance is complete. In silence mode
// the decision is driven by per-frame energy; in stop-phrase mode by the
// accumulated final transcript. Safe for concurrent use: the frame pump
// and the token reader feed it from different goroutines.
type Detector struct {
	cfg             DetectorConfig
	normalizedPhrase []string

	mu         sync.Mutex
	paused     bool
	speechSeen bool
	silentMs   int64
	parts      []string
}

func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{
		cfg:              cfg,
		normalizedPhrase: normalizeWords(cfg.StopPhrase),
	}
}

// Feed consumes one audio frame. In silence mode it may finalize the
// current utterance; in stop-phrase mode frames only matter for display
// and Feed always returns nil. A finalization with an empty accumulated
// transcript is treated as noise and discarded silently.
func (d *Detector) Feed(frame audio.Frame) *Utterance {
	if d.cfg.Mode != DetectSilence {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		return nil
	}

	if frame.EnergyDb() >= d.cfg.SilenceThresholdDb {
		d.speechSeen = true
		d.silentMs = 0
		return nil
	}

	// Silence before any speech never starts the timer.
	if !d.speechSeen {
		return nil
	}

	d.silentMs += int64(frame.Duration())
	if time.Duration(d.silentMs)*time.Millisecond < d.cfg.SilenceDuration {
		return nil
	}

	text := strings.TrimSpace(strings.Join(d.parts, " "))
	d.resetLocked()
	if text == "" {
		return nil
	}
	return &Utterance{RawText: text, FinalizedAt: time.Now().UTC(), Method: DetectSilence}
}

// AppendFinal accumulates a final transcript token. In stop-phrase mode
// it finalizes when the normalized transcript ends with the configured
// phrase; the phrase itself is stripped from the emitted text.
func (d *Detector) AppendFinal(text string) *Utterance {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		return nil
	}
	d.parts = append(d.parts, text)

	if d.cfg.Mode != DetectStopPhrase || len(d.normalizedPhrase) == 0 {
		return nil
	}

	full := strings.Join(d.parts, " ")
	stripped, ok := stripStopPhrase(full, d.normalizedPhrase)
	if !ok {
		return nil
	}

	d.resetLocked()
	if stripped == "" {
		return nil
	}
	return &Utterance{RawText: stripped, FinalizedAt: time.Now().UTC(), Method: DetectStopPhrase}
}

// Pause suspends finalization while a correction/dispatch turn is in
// flight. Accumulated state is kept, not reset.
func (d *Detector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

func (d *Detector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
}

// Reset discards any not-yet-finalized utterance.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
}

func (d *Detector) resetLocked() {
	d.speechSeen = false
	d.silentMs = 0
	d.parts = nil
}

// normalizeWords lowercases, strips punctuation and splits into words.
func normalizeWords(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// stripStopPhrase reports whether the normalized transcript ends with
// phrase and, if so, returns the raw text with the trailing phrase words
// removed.
func stripStopPhrase(raw string, phrase []string) (string, bool) {
	words := strings.Fields(raw)
	if len(words) < len(phrase) {
		return "", false
	}
	for i := 0; i < len(phrase); i++ {
		w := normalizeWords(words[len(words)-len(phrase)+i])
		if len(w) != 1 || w[0] != phrase[i] {
			return "", false
		}
	}
	rest := words[:len(words)-len(phrase)]
	return strings.TrimRight(strings.TrimSpace(strings.Join(rest, " ")), ",;:-"), true
}
