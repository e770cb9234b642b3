// ABOUTME: HTTP client for the text-to-speech and speech-to-text service
// ABOUTME: Synthesizes replies to MP3 audio and transcribes recorded voice input

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable wraps every transport, status and decode failure.
var ErrUnavailable = errors.New("speech service unavailable")

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("empty audio")

// DefaultConfidence is reported when the service omits a confidence score.
const DefaultConfidence = 0.95

const (
	maxAudioBytes      = 25 << 20
	maxTranscriptBytes = 1 << 20
)

// Transcript is the result of speech-to-text.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*Transcript, error)
}

// Config holds the client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	VoiceID    string
	ModelID    string
	STTModelID string
}

// Client talks to an ElevenLabs-compatible API.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var (
	_ Synthesizer = (*Client)(nil)
	_ Transcriber = (*Client)(nil)
)

// NewClient creates a speech client. Callers bound each call with a context deadline.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.With("component", "speech"),
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MP3 audio for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       c.cfg.ModelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/text-to-speech/" + c.cfg.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	start := time.Now()
	data, err := c.do(req, maxAudioBytes)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio body", ErrUnavailable)
	}

	c.logger.Debug("synthesized speech", "chars", len(text), "bytes", len(data), "duration", time.Since(start))
	return data, nil
}

// Transcribe uploads recorded audio and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if filename == "" {
		filename = "recording.webm"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}
	if err := mw.WriteField("model_id", c.cfg.STTModelID); err != nil {
		return nil, fmt.Errorf("writing model_id: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	data, err := c.do(req, maxTranscriptBytes)
	if err != nil {
		return nil, err
	}

	var out struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding transcript: %v", ErrUnavailable, err)
	}

	t := &Transcript{Text: strings.TrimSpace(out.Text), Confidence: DefaultConfidence}
	if out.Confidence != nil {
		t.Confidence = *out.Confidence
	}
	c.logger.Debug("transcribed audio", "bytes", len(audio), "chars", len(t.Text))
	return t, nil
}

func (c *Client) do(req *http.Request, limit int64) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}
	return data, nil
}
