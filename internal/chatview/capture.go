// ABOUTME: Speech capture controller: records from a microphone and transcribes
// ABOUTME: State machine idle -> recording -> idle with chunks buffered in a goroutine

package chatview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/vox-gateway/internal/apiclient"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrUnsupported      = errors.New("audio recording is not supported")
	ErrNotRecording     = errors.New("not recording")
	ErrNoAudio          = errors.New("no audio captured")
)

// Microphone opens recordings. Open fails with ErrPermissionDenied or
// ErrUnsupported when capture is impossible.
type Microphone interface {
	Open(ctx context.Context) (Recording, error)
}

// Recording is an open capture. Chunks is closed after Close returns.
type Recording interface {
	Chunks() <-chan []byte
	Close() error
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*apiclient.Transcript, error)
}

// recordingFilename names uploads; the gateway only uses it as a hint.
const recordingFilename = "recording.webm"

// take is one recording in progress. chunks is owned by the buffering
// goroutine until done is closed.
type take struct {
	rec    Recording
	chunks [][]byte
	done   chan struct{}
}

// Capture records speech and fills the input field with the transcript.
type Capture struct {
	mic    Microphone
	stt    Transcriber
	onText func(string)
	onNote func(string)
	logger *slog.Logger

	mu  sync.Mutex
	cur *take
}

// NewCapture creates a controller. onText receives a successful transcript
// and onNotice a short message for the user when something fails.
func NewCapture(mic Microphone, stt Transcriber, onText, onNotice func(string), logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	if onText == nil {
		onText = func(string) {}
	}
	if onNotice == nil {
		onNotice = func(string) {}
	}
	return &Capture{
		mic:    mic,
		stt:    stt,
		onText: onText,
		onNote: onNotice,
		logger: logger.With("component", "capture"),
	}
}

// Recording reports whether a recording is in progress.
func (c *Capture) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// Start opens the microphone. It does nothing when already recording.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		return nil
	}

	rec, err := c.mic.Open(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrPermissionDenied):
			c.onNote("Microphone access was denied.")
		case errors.Is(err, ErrUnsupported):
			c.onNote("Voice input is not supported here.")
		default:
			c.onNote("Could not start recording.")
		}
		c.logger.Warn("opening microphone failed", "error", err)
		return err
	}

	tk := &take{rec: rec, done: make(chan struct{})}
	c.cur = tk
	go func() {
		defer close(tk.done)
		for chunk := range rec.Chunks() {
			tk.chunks = append(tk.chunks, chunk)
		}
	}()
	return nil
}

// Stop ends the recording and transcribes it. On success the transcript is
// passed to onText and returned; on failure the input is left alone.
func (c *Capture) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	tk := c.cur
	c.cur = nil
	c.mu.Unlock()
	if tk == nil {
		return "", ErrNotRecording
	}

	if err := tk.rec.Close(); err != nil {
		c.logger.Debug("closing recording", "error", err)
	}
	<-tk.done
	audio := bytes.Join(tk.chunks, nil)

	if len(audio) == 0 {
		c.onNote("No audio was captured.")
		return "", ErrNoAudio
	}

	t, err := c.stt.Transcribe(ctx, audio, recordingFilename)
	if err != nil {
		c.logger.Warn("transcription failed", "bytes", len(audio), "error", err)
		c.onNote("Could not transcribe your recording. Please try again.")
		return "", fmt.Errorf("transcribing: %w", err)
	}
	c.onText(t.Text)
	return t.Text, nil
}

// Cancel ends a recording without transcribing it.
func (c *Capture) Cancel() {
	c.mu.Lock()
	tk := c.cur
	c.cur = nil
	c.mu.Unlock()
	if tk == nil {
		return
	}
	if err := tk.rec.Close(); err != nil {
		c.logger.Debug("closing recording", "error", err)
	}
	<-tk.done
}
