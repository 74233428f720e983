// Package transcribe turns voice notes into text for the assistant.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dvloznov/perla/internal/gcs"
	"github.com/dvloznov/perla/internal/gcsuploader"
)

const (
	DefaultModel    = openai.Whisper1
	DefaultLanguage = "es"
)

var (
	// ErrEmptyAudio is returned when no audio bytes were provided.
	ErrEmptyAudio = errors.New("no audio provided")
	// ErrEmptyTranscript is returned when the recording held no speech.
	ErrEmptyTranscript = errors.New("transcription is empty")
)

// Transcriber converts one recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// audioClient is the subset of the OpenAI client used for speech to text.
type audioClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	client audioClient
	model  string
}

// NewWhisper creates a Whisper transcriber. An empty baseURL uses the public API.
func NewWhisper(apiKey, model, baseURL string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Whisper{client: openai.NewClientWithConfig(cfg), model: model}
}

// Transcribe sends audio to the API. filename only carries the format hint.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if language == "" {
		language = DefaultLanguage
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("Whisper.Transcribe: %w", err)
	}
	return resp.Text, nil
}

// Result is one transcribed voice note.
type Result struct {
	Text string `json:"text"`
	// ArchiveURI is set when the recording was archived.
	ArchiveURI string `json:"archiveUri,omitempty"`
}

// Service archives recordings, when a bucket is configured, and
// transcribes them.
type Service struct {
	transcriber Transcriber
	storage     gcs.StorageService
	bucket      string
	language    string
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates a Service. storage may be nil or bucket empty to skip
// archiving.
func NewService(t Transcriber, storage gcs.StorageService, bucket, language string, log zerolog.Logger) *Service {
	if language == "" {
		language = DefaultLanguage
	}
	return &Service{
		transcriber: t,
		storage:     storage,
		bucket:      bucket,
		language:    language,
		now:         time.Now,
		log:         log.With().Str("component", "transcribe").Logger(),
	}
}

// Transcribe handles one recording for ownerID. A failed archive upload is
// logged and does not stop the transcription.
func (s *Service) Transcribe(ctx context.Context, ownerID, filename, contentType string, audio []byte) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if filename == "" {
		filename = "audio.webm"
	}

	log := s.log.With().
		Str("owner_id", ownerID).
		Str("filename", filename).
		Int("size", len(audio)).
		Logger()

	res := &Result{}
	if s.storage != nil && s.bucket != "" {
		object := gcsuploader.AudioObjectName(ownerID, filename, s.now())
		uri, err := s.storage.UploadObject(ctx, s.bucket, object, bytes.NewReader(audio), contentType)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to archive recording")
		} else {
			res.ArchiveURI = uri
		}
	}

	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, audio, filename, s.language)
	if err != nil {
		log.Error().Err(err).Msg("Transcription failed")
		return nil, fmt.Errorf("Transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	res.Text = text
	log.Info().Dur("duration", time.Since(start)).Str("archive_uri", res.ArchiveURI).Msg("Recording transcribed")
	return res, nil
}
