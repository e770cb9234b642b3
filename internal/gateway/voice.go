// ABOUTME: Speech-to-text upload handler
// ABOUTME: Accepts a multipart "audio" file and returns the transcript

package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/2389/vox-gateway/internal/metrics"
	"github.com/2389/vox-gateway/internal/speech"
)

// maxAudioUpload bounds recorded audio uploads.
const maxAudioUpload = 25 << 20

// TranscriptResponse is the JSON response for POST /api/voice/transcribe.
type TranscriptResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// handleTranscribe handles POST /api/voice/transcribe.
func (g *Gateway) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if g.svc.Transcriber == nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, "speech is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			g.sendJSONError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		g.sendJSONError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "reading audio failed")
		return
	}

	timeout := g.config.Speech.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	start := time.Now()
	t, err := g.svc.Transcriber.Transcribe(ctx, audio, header.Filename)
	metrics.CollaboratorDuration.WithLabelValues("stt", metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, speech.ErrEmptyAudio) {
			metrics.VoiceFailures.WithLabelValues("transcribe").Inc()
			g.logger.Warn("transcription failed", "error", err)
		}
		g.sendError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, TranscriptResponse{Text: t.Text, Confidence: t.Confidence})
}
