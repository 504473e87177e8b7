package voice

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pion/webrtc/v3"

	"github.com/PodZamkom/Constitution/internal/apierr"
	"github.com/PodZamkom/Constitution/internal/openai"
)

// RealtimeProvider is the provider surface the voice bridge needs.
type RealtimeProvider interface {
	CreateRealtimeSession(ctx context.Context, model, voice, instructions string) (*openai.RealtimeSession, error)
	NegotiateSDP(ctx context.Context, bearer, model, offer string) (string, error)
	DialRealtime(ctx context.Context, model string) (*websocket.Conn, error)
}

const (
	// Ephemeral client secrets are single-call credentials; the registry
	// forgets them shortly after issue.
	credentialTTL        = 2 * time.Minute
	maxIssuedCredentials = 512
)

// issuedSession records what a minted client secret is allowed to negotiate.
type issuedSession struct {
	SessionID string
	Model     string
}

// SessionRequest carries per-call overrides for session creation. Zero
// values fall back to the bridge defaults.
type SessionRequest struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

// Bridge connects browser clients to the provider's realtime voice API,
// either by minting ephemeral WebRTC sessions or by relaying WebSocket
// traffic server-side.
type Bridge struct {
	provider     RealtimeProvider
	model        string
	voice        string
	instructions string
	issued       *expirable.LRU[string, issuedSession]
}

// NewBridge constructs the voice bridge with its default model, voice and
// session instructions.
func NewBridge(provider RealtimeProvider, model, voice, instructions string) *Bridge {
	return &Bridge{
		provider:     provider,
		model:        model,
		voice:        voice,
		instructions: instructions,
		issued:       expirable.NewLRU[string, issuedSession](maxIssuedCredentials, nil, credentialTTL),
	}
}

// CreateSession mints an ephemeral provider session and registers its client
// secret for later negotiation. The response never carries the long-lived
// credential.
func (b *Bridge) CreateSession(ctx context.Context, req SessionRequest) (*openai.RealtimeSession, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	voice := req.Voice
	if voice == "" {
		voice = b.voice
	}
	instructions := req.Instructions
	if instructions == "" {
		instructions = b.instructions
	}

	sess, err := b.provider.CreateRealtimeSession(ctx, model, voice, instructions)
	if err != nil {
		return nil, err
	}
	if sess.ClientSecret.Value != "" {
		b.issued.Add(sess.ClientSecret.Value, issuedSession{SessionID: sess.ID, Model: sess.Model})
	}
	return sess, nil
}

// Negotiate forwards an SDP offer to the provider under the caller's
// ephemeral credential and relays the answer verbatim. The bearer must be a
// secret this bridge issued; the model, when given, must match the one the
// session was minted for.
func (b *Bridge) Negotiate(ctx context.Context, bearer, model, offer string) (string, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return "", apierr.New(apierr.KindUnauthorized, "missing ephemeral session credential")
	}
	sess, ok := b.issued.Get(bearer)
	if !ok {
		return "", apierr.New(apierr.KindUnauthorized, "unknown or expired session credential")
	}

	if model == "" {
		model = sess.Model
	} else if model != sess.Model {
		return "", apierr.Newf(apierr.KindInvalidInput, "model %q does not match the negotiated session", model)
	}

	if strings.TrimSpace(offer) == "" {
		return "", apierr.New(apierr.KindInvalidInput, "SDP offer is empty")
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}
	if _, err := desc.Unmarshal(); err != nil {
		return "", apierr.Wrap(apierr.KindInvalidInput, "malformed SDP offer", err)
	}

	return b.provider.NegotiateSDP(ctx, bearer, model, offer)
}
