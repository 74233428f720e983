package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/perla/internal/api/middleware"
	"github.com/dvloznov/perla/internal/logger"
	"github.com/dvloznov/perla/internal/transcribe"
)

// maxAudioBytes is the Whisper upload limit.
const maxAudioBytes = 25 << 20

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, ownerID, filename, contentType string, audio []byte) (*transcribe.Result, error)
}

// TranscribeHandler handles voice note uploads.
type TranscribeHandler struct {
	transcriber Transcriber
}

// NewTranscribeHandler creates a new transcribe handler.
func NewTranscribeHandler(t Transcriber) *TranscribeHandler {
	return &TranscribeHandler{transcriber: t}
}

// Transcribe handles POST /api/transcribe with a multipart "file" field.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes+1<<20)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes+1))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read audio file")
		return
	}
	if len(audio) > maxAudioBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Audio file is too large")
		return
	}

	owner := middleware.GetOwnerID(r.Context())
	res, err := h.transcriber.Transcribe(r.Context(), owner, header.Filename, header.Header.Get("Content-Type"), audio)
	switch {
	case errors.Is(err, transcribe.ErrEmptyAudio):
		middleware.WriteError(w, http.StatusBadRequest, "No audio file provided")
		return
	case errors.Is(err, transcribe.ErrEmptyTranscript):
		middleware.WriteError(w, http.StatusUnprocessableEntity, "No se detectó voz en la grabación")
		return
	case err != nil:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Transcription failed")
		middleware.WriteError(w, http.StatusBadGateway, "Error en la transcripción")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"text":       res.Text,
		"archiveUri": res.ArchiveURI,
	})
}
