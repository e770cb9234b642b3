// ABOUTME: Voice playback controller: at most one reply plays at a time
// ABOUTME: Audio handles are created lazily per message and reused for replays

package chatview

import (
	"log/slog"
	"sync"
)

// AudioHandle plays one audio source.
type AudioHandle interface {
	// Play starts or resumes playback. A handle that reached the end
	// starts over.
	Play() error
	Pause()
	// Rewind moves the position back to the start.
	Rewind()
	Close() error
}

// AudioFactory opens a handle for url. The handle calls done once when
// playback ends, with a non-nil error if it failed. done is never called
// from inside Play.
type AudioFactory func(url string, done func(error)) (AudioHandle, error)

// Player guarantees that at most one handle is playing.
type Player struct {
	mu      sync.Mutex
	factory AudioFactory
	handles map[string]AudioHandle
	playing string
	logger  *slog.Logger
}

// NewPlayer creates a Player that opens audio through factory.
func NewPlayer(factory AudioFactory, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		factory: factory,
		handles: make(map[string]AudioHandle),
		logger:  logger.With("component", "player"),
	}
}

// Play stops whatever is playing and starts message id from the beginning.
func (p *Player) Play(id, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.play(id, url)
}

// Toggle pauses id if it is playing, otherwise plays it.
func (p *Player) Toggle(id, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing == id {
		if h, ok := p.handles[id]; ok {
			h.Pause()
		}
		p.playing = ""
		return
	}
	p.play(id, url)
}

// play must be called with p.mu held.
func (p *Player) play(id, url string) {
	p.stopCurrent()

	h, ok := p.handles[id]
	if !ok {
		var err error
		h, err = p.open(id, url)
		if err != nil {
			p.logger.Warn("opening audio failed", "message_id", id, "error", err)
			return
		}
		p.handles[id] = h
	}
	if err := h.Play(); err != nil {
		p.logger.Warn("audio playback failed", "message_id", id, "error", err)
		return
	}
	p.playing = id
}

func (p *Player) open(id, url string) (AudioHandle, error) {
	var h AudioHandle
	var mu sync.Mutex
	created, err := p.factory(url, func(err error) {
		mu.Lock()
		handle := h
		mu.Unlock()
		p.finished(id, handle, err)
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	h = created
	mu.Unlock()
	return created, nil
}

// finished clears the playing id if it still refers to h.
func (p *Player) finished(id string, h AudioHandle, err error) {
	if err != nil {
		p.logger.Warn("audio playback failed", "message_id", id, "error", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing == id && h != nil && p.handles[id] == h {
		p.playing = ""
	}
}

// stopCurrent pauses and rewinds the playing handle. p.mu must be held.
func (p *Player) stopCurrent() {
	if p.playing == "" {
		return
	}
	if h, ok := p.handles[p.playing]; ok {
		h.Pause()
		h.Rewind()
	}
	p.playing = ""
}

// Playing returns the id of the message being played, or "".
func (p *Player) Playing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// PauseAll silences playback.
func (p *Player) PauseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.handles[p.playing]; ok {
		h.Pause()
	}
	p.playing = ""
}

// Close releases every handle.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, h := range p.handles {
		if err := h.Close(); err != nil {
			p.logger.Debug("closing audio handle", "message_id", id, "error", err)
		}
	}
	p.handles = make(map[string]AudioHandle)
	p.playing = ""
}
