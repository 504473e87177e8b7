package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PodZamkom/Constitution/internal/apierr"
)

// realtimeBetaHeader opts into the provider's realtime API surface.
const realtimeBetaHeader = "realtime=v1"

// ClientSecret is the short-lived credential minted for a realtime session.
// It authenticates the end client directly against the provider without
// exposing the server's long-lived key.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// RealtimeSession is the provider-side ephemeral session descriptor.
type RealtimeSession struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Voice        string       `json:"voice"`
	ClientSecret ClientSecret `json:"client_secret"`
}

type realtimeSessionRequest struct {
	Model        string   `json:"model"`
	Voice        string   `json:"voice"`
	Instructions string   `json:"instructions"`
	Modalities   []string `json:"modalities"`
}

// CreateRealtimeSession mints an ephemeral realtime session scoped to the
// given model and voice, with the instructions embedded as the session's
// behavioral configuration.
func (c *Client) CreateRealtimeSession(ctx context.Context, model, voice, instructions string) (*RealtimeSession, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	reqBody, _ := json.Marshal(realtimeSessionRequest{
		Model:        model,
		Voice:        voice,
		Instructions: instructions,
		Modalities:   []string{"audio", "text"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/realtime/sessions"), bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", realtimeBetaHeader)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, connectivityError("create realtime session", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp)
	}
	var sess RealtimeSession
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamInternal, "decode realtime session", err)
	}
	return &sess, nil
}

// NegotiateSDP forwards a WebRTC offer to the provider's realtime negotiation
// endpoint using the caller's ephemeral bearer and relays the answer verbatim.
// The payload is never transformed at this layer.
func (c *Client) NegotiateSDP(ctx context.Context, bearer, model, offer string) (string, error) {
	endpoint := c.url("/v1/realtime") + "?model=" + url.QueryEscape(model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("OpenAI-Beta", realtimeBetaHeader)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", connectivityError("sdp negotiation", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp)
	}
	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", connectivityError("read sdp answer", err)
	}
	return string(answer), nil
}

// DialRealtime opens the server-to-server WebSocket to the provider's
// realtime endpoint, authenticated with the long-lived credential.
func (c *Client) DialRealtime(ctx context.Context, model string) (*websocket.Conn, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	wsURL := strings.Replace(c.url("/v1/realtime"), "http", "ws", 1) + "?model=" + url.QueryEscape(model)
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.APIKey)
	headers.Set("OpenAI-Beta", realtimeBetaHeader)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, upstreamError(resp)
		}
		return nil, connectivityError("dial realtime endpoint", err)
	}
	return conn, nil
}
