package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/PodZamkom/Constitution/internal/apierr"
	"github.com/PodZamkom/Constitution/internal/capability"
	"github.com/PodZamkom/Constitution/internal/chat"
	"github.com/PodZamkom/Constitution/internal/config"
	"github.com/PodZamkom/Constitution/internal/openai"
	"github.com/PodZamkom/Constitution/internal/store"
	"github.com/PodZamkom/Constitution/internal/voice"
)

// ChatService answers user turns, synchronously or as a stream.
type ChatService interface {
	Answer(ctx context.Context, sessionID, userText string) (chat.Answer, error)
	AnswerStream(ctx context.Context, sessionID, userText string) (<-chan chat.Event, error)
}

// TranscriptionService turns uploaded audio into text.
type TranscriptionService interface {
	Transcribe(ctx context.Context, audio io.Reader, contentType string) (string, error)
}

// VoiceService exposes both realtime negotiation protocols.
type VoiceService interface {
	CreateSession(ctx context.Context, req voice.SessionRequest) (*openai.RealtimeSession, error)
	Negotiate(ctx context.Context, bearer, model, offer string) (string, error)
	ServeWebSocket(w http.ResponseWriter, r *http.Request)
}

// Handlers wires the HTTP surface to the application services.
type Handlers struct {
	Cfg         config.Config
	Chat        ChatService
	Transcriber TranscriptionService
	Voice       VoiceService
	Store       store.Store
}

// Register mounts all routes on the echo instance.
func (h *Handlers) Register(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/health", h.health)

	api := e.Group("/api")
	api.GET("/capabilities", h.capabilities)
	api.POST("/chat", h.chat)
	api.POST("/chat/stream", h.chatStream)
	api.GET("/history/:session_id", h.history)
	api.POST("/transcribe", h.transcribe)
	api.POST("/voice/realtime/session", h.voiceSession)
	api.POST("/voice/realtime/negotiate", h.voiceNegotiate)
	api.GET("/voice/realtime/ws", h.voiceWS)
}

func (h *Handlers) snapshot() capability.Snapshot {
	return capability.Compute(h.Cfg, h.Store.Persistent())
}

func (h *Handlers) root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "AI-ассистент по Конституции Республики Беларусь"})
}

func (h *Handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handlers) capabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (h *Handlers) chat(c echo.Context) error {
	if !h.snapshot().Chat {
		return unavailable(c, "chat is not configured")
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Wrap(apierr.KindInvalidInput, "malformed request body", err))
	}
	ans, err := h.Chat.Answer(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ans)
}

// streamFrame is one SSE data payload. Content is the cumulative text so far.
type streamFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type streamErrorFrame struct {
	Error string `json:"error"`
}

func (h *Handlers) chatStream(c echo.Context) error {
	if !h.snapshot().Chat {
		return unavailable(c, "chat is not configured")
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Wrap(apierr.KindInvalidInput, "malformed request body", err))
	}

	events, err := h.Chat.AnswerStream(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return respondError(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	for ev := range events {
		var frame any
		if ev.Err != nil {
			_, detail := apierr.Translate(ev.Err)
			frame = streamErrorFrame{Error: detail}
		} else {
			frame = streamFrame{Content: ev.Content, Done: ev.Done}
		}
		if err := writeSSE(resp, frame); err != nil {
			return nil // the client went away
		}
		resp.Flush()
		if ev.Err != nil {
			return nil
		}
	}
	return nil
}

func (h *Handlers) history(c echo.Context) error {
	sessionID := c.Param("session_id")
	turns, err := h.Store.Read(c.Request().Context(), sessionID)
	if err != nil {
		return respondError(c, err)
	}
	if turns == nil {
		turns = []store.Turn{}
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": sessionID, "messages": turns})
}

func (h *Handlers) transcribe(c echo.Context) error {
	if !h.snapshot().Whisper {
		return unavailable(c, "transcription is not configured")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, apierr.Wrap(apierr.KindInvalidInput, "multipart field 'file' is required", err))
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, apierr.Wrap(apierr.KindInvalidInput, "failed to open upload", err))
	}
	defer f.Close()

	text, err := h.Transcriber.Transcribe(c.Request().Context(), f, fh.Header.Get("Content-Type"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transcription": text})
}

func (h *Handlers) voiceSession(c echo.Context) error {
	if !h.snapshot().VoiceMode {
		return unavailable(c, "voice mode is not configured")
	}
	var req voice.SessionRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Wrap(apierr.KindInvalidInput, "malformed request body", err))
	}
	sess, err := h.Voice.CreateSession(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handlers) voiceNegotiate(c echo.Context) error {
	if !h.snapshot().VoiceMode {
		return unavailable(c, "voice mode is not configured")
	}
	bearer := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	model := c.Request().Header.Get("X-OpenAI-Model")

	offer, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return respondError(c, apierr.Wrap(apierr.KindInvalidInput, "failed to read SDP offer", err))
	}
	answer, err := h.Voice.Negotiate(c.Request().Context(), bearer, model, string(offer))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sdp": answer})
}

func (h *Handlers) voiceWS(c echo.Context) error {
	if !h.snapshot().VoiceMode {
		return unavailable(c, "voice mode is not configured")
	}
	h.Voice.ServeWebSocket(c.Response(), c.Request())
	return nil
}

func unavailable(c echo.Context, detail string) error {
	return c.JSON(http.StatusServiceUnavailable, echo.Map{"detail": detail})
}

func respondError(c echo.Context, err error) error {
	status, detail := apierr.Translate(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(status, echo.Map{"detail": detail})
}

func writeSSE(w io.Writer, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = w.Write(append(append([]byte("data: "), data...), '\n', '\n'))
	return err
}
