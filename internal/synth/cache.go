package synth

import (
	"context"
	"sync"
)

const defaultCacheEntries = 256

type cacheKey struct {
	provider string
	voiceID  string
	text     string
}

// CachingSynthesizer memoizes synthesized payloads keyed by provider,
// voice and text. Changing the voice configuration is a barrier event:
// it bumps the config version and flushes every cached entry, so a
// payload synthesized under an old voice is never replayed.
type CachingSynthesizer struct {
	mu         sync.Mutex
	synth      SpeechSynthesizer
	voiceID    string
	version    uint64
	entries    map[cacheKey][]byte
	order      []cacheKey
	maxEntries int
}

func NewCachingSynthesizer(synth SpeechSynthesizer, voiceID string) *CachingSynthesizer {
	return &CachingSynthesizer{
		synth:      synth,
		voiceID:    voiceID,
		entries:    make(map[cacheKey][]byte),
		maxEntries: defaultCacheEntries,
	}
}

// Synthesize returns the cached payload for text under the current
// voice, or synthesizes and caches it. The second return reports a
// cache hit.
func (c *CachingSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, bool, error) {
	c.mu.Lock()
	synth := c.synth
	key := cacheKey{provider: synth.Provider(), voiceID: c.voiceID, text: text}
	version := c.version
	if payload, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return payload, true, nil
	}
	c.mu.Unlock()

	payload, err := synth.Synthesize(ctx, text, key.voiceID)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A voice change while synthesizing invalidates this result for
	// caching, but the payload itself is still valid for the caller.
	if c.version == version {
		c.store(key, payload)
	}
	return payload, false, nil
}

// Configure swaps the synthesizer and/or voice. Either argument may be
// zero-valued to keep the current one. Any change flushes the cache.
func (c *CachingSynthesizer) Configure(synth SpeechSynthesizer, voiceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	if synth != nil && synth != c.synth {
		c.synth = synth
		changed = true
	}
	if voiceID != "" && voiceID != c.voiceID {
		c.voiceID = voiceID
		changed = true
	}
	if changed {
		c.flushLocked()
	}
}

// InvalidateAll flushes the cache and bumps the version without
// changing the configuration.
func (c *CachingSynthesizer) InvalidateAll() {
	c.mu.Lock()
	c.flushLocked()
	c.mu.Unlock()
}

func (c *CachingSynthesizer) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *CachingSynthesizer) VoiceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceID
}

func (c *CachingSynthesizer) ProviderName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synth.Provider()
}

func (c *CachingSynthesizer) flushLocked() {
	c.version++
	c.entries = make(map[cacheKey][]byte)
	c.order = nil
}

func (c *CachingSynthesizer) store(key cacheKey, payload []byte) {
	if len(c.order) >= c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = payload
	c.order = append(c.order, key)
}
