package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PodZamkom/Constitution/internal/apierr"
)

// SpeechToText is the provider surface the transcription service needs.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// extensionByType maps the accepted audio content types to the filename
// extension the provider uses to sniff the container format.
var extensionByType = map[string]string{
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/mp4":    "mp4",
	"audio/m4a":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/webm":   "webm",
	"audio/ogg":    "ogg",
	"audio/opus":   "ogg",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

// Service turns uploaded audio into text.
type Service struct {
	provider SpeechToText
}

func NewService(provider SpeechToText) *Service {
	return &Service{provider: provider}
}

// Transcribe validates the upload, stages it to a temporary file and forwards
// it to the provider. The content type is checked before any provider
// traffic, and the staged file is removed on every path.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, contentType string) (string, error) {
	ext, ok := extensionByType[normalizeType(contentType)]
	if !ok {
		return "", apierr.Newf(apierr.KindUnsupportedMedia, "unsupported audio type %q", contentType)
	}

	tmp, err := os.CreateTemp("", "transcribe-*."+ext)
	if err != nil {
		return "", fmt.Errorf("stage audio: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, audio)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidInput, "failed to read audio payload", err)
	}
	if n == 0 {
		return "", apierr.New(apierr.KindInvalidInput, "audio payload is empty")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("stage audio: %w", err)
	}

	text, err := s.provider.Transcribe(ctx, tmp, "audio."+ext)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apierr.New(apierr.KindEmptyUpstream, "transcription provider returned empty text")
	}
	return text, nil
}

func normalizeType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
