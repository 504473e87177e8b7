package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from the app origin; CORS is enforced
		// on the HTTP surface.
		return true
	},
}

// sessionUpdate is the configuration frame sent to the provider right after
// the relay connects, before any client traffic flows.
type sessionUpdate struct {
	Type    string          `json:"type"`
	Session sessionSettings `json:"session"`
}

type sessionSettings struct {
	Modalities         []string          `json:"modalities"`
	Instructions       string            `json:"instructions"`
	Voice              string            `json:"voice"`
	InputAudioFormat   string            `json:"input_audio_format"`
	OutputAudioFormat  string            `json:"output_audio_format"`
	InputTranscription map[string]string `json:"input_audio_transcription"`
	TurnDetection      map[string]string `json:"turn_detection"`
}

func (b *Bridge) sessionUpdateFrame() ([]byte, error) {
	return json.Marshal(sessionUpdate{
		Type: "session.update",
		Session: sessionSettings{
			Modalities:         []string{"text", "audio"},
			Instructions:       b.instructions,
			Voice:              b.voice,
			InputAudioFormat:   "pcm16",
			OutputAudioFormat:  "pcm16",
			InputTranscription: map[string]string{"model": "whisper-1"},
			TurnDetection:      map[string]string{"type": "server_vad"},
		},
	})
}

// ServeWebSocket relays realtime traffic between a browser client and the
// provider. Every frame crosses verbatim in both directions; either side
// failing tears down both connections.
func (b *Bridge) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	client, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("voice relay upgrade failed")
		return
	}
	defer client.Close()

	provider, err := b.provider.DialRealtime(r.Context(), b.model)
	if err != nil {
		log.Warn().Err(err).Msg("voice relay could not reach the provider")
		closeWith(client, websocket.CloseInternalServerErr, "realtime provider unavailable")
		return
	}
	defer provider.Close()

	frame, err := b.sessionUpdateFrame()
	if err != nil {
		closeWith(client, websocket.CloseInternalServerErr, "session configuration failed")
		return
	}
	if err := provider.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Warn().Err(err).Msg("voice relay session.update failed")
		closeWith(client, websocket.CloseInternalServerErr, "realtime provider unavailable")
		return
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return pump(client, provider) })
	g.Go(func() error { return pump(provider, client) })
	g.Go(func() error { return keepalive(ctx, client) })
	g.Go(func() error { return keepalive(ctx, provider) })
	g.Go(func() error {
		// Unblocks both pumps when either side fails.
		<-ctx.Done()
		client.Close()
		provider.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug().Err(err).Msg("voice relay ended")
	}
}

// pump forwards every frame from src to dst until either side fails.
func pump(src, dst *websocket.Conn) error {
	src.SetReadDeadline(time.Now().Add(readTimeout))
	src.SetPongHandler(func(string) error {
		return src.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		mt, data, err := src.ReadMessage()
		if err != nil {
			return err
		}
		src.SetReadDeadline(time.Now().Add(readTimeout))
		dst.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := dst.WriteMessage(mt, data); err != nil {
			return err
		}
	}
}

func keepalive(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// WriteControl is safe alongside the data-writing pump.
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
