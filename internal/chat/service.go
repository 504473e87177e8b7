package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/PodZamkom/Constitution/internal/apierr"
	"github.com/PodZamkom/Constitution/internal/prompt"
	"github.com/PodZamkom/Constitution/internal/store"
)

// Completer is the minimal provider surface the chat orchestrator needs.
type Completer interface {
	Complete(ctx context.Context, model string, messages []prompt.Message) (string, error)
	StreamComplete(ctx context.Context, model string, messages []prompt.Message) (<-chan string, <-chan error)
}

// Answer is the result of one synchronous chat turn.
type Answer struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// Event is one element of a streaming answer. Content is cumulative; the
// terminal event carries Done, or Err when the stream aborted mid-flight.
type Event struct {
	Content string
	Done    bool
	Err     error
}

// Service answers user turns against the completion provider, persisting
// both sides of the exchange best-effort.
type Service struct {
	provider     Completer
	store        store.Store
	model        string
	instructions string
}

// NewService constructs the chat orchestrator.
func NewService(provider Completer, st store.Store, model, instructions string) *Service {
	return &Service{provider: provider, store: st, model: model, instructions: instructions}
}

// prepare validates the user text, settles the session id, persists the user
// turn (best-effort) and composes the provider-bound prompt.
func (s *Service) prepare(ctx context.Context, sessionID, userText string) (string, []prompt.Message, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", nil, apierr.New(apierr.KindInvalidInput, "message must not be empty")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// The user's own words are recorded even if the provider call later
	// fails; a storage failure must not block the answer either.
	if _, err := s.store.Append(ctx, sessionID, store.RoleUser, userText); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist user turn")
	}

	history, err := s.store.Read(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to read history, composing without it")
		history = nil
	}
	if n := len(history); n > 0 && history[n-1].Role == store.RoleUser && history[n-1].Content == userText {
		// The turn just persisted is appended separately by Compose.
		history = history[:n-1]
	}

	return sessionID, prompt.Compose(s.instructions, history, userText), nil
}

// Answer performs one synchronous chat turn.
func (s *Service) Answer(ctx context.Context, sessionID, userText string) (Answer, error) {
	sessionID, msgs, err := s.prepare(ctx, sessionID, userText)
	if err != nil {
		return Answer{}, err
	}

	reply, err := s.provider.Complete(ctx, s.model, msgs)
	if err != nil {
		return Answer{}, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Answer{}, apierr.New(apierr.KindEmptyUpstream, "completion provider returned empty text")
	}

	messageID := s.persistAssistant(ctx, sessionID, reply)
	return Answer{Response: reply, SessionID: sessionID, MessageID: messageID}, nil
}

// AnswerStream performs one streaming chat turn. Events carry the cumulative
// text so far; the final event has Done set, or Err if the provider stream
// failed after partial output.
func (s *Service) AnswerStream(ctx context.Context, sessionID, userText string) (<-chan Event, error) {
	sessionID, msgs, err := s.prepare(ctx, sessionID, userText)
	if err != nil {
		return nil, err
	}

	textCh, errCh := s.provider.StreamComplete(ctx, s.model, msgs)
	events := make(chan Event, 16)

	go func() {
		defer close(events)
		var b strings.Builder
		for textCh != nil || errCh != nil {
			select {
			case frag, ok := <-textCh:
				if !ok {
					textCh = nil
					continue
				}
				b.WriteString(frag)
				select {
				case events <- Event{Content: b.String()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					select {
					case events <- Event{Err: err}:
					case <-ctx.Done():
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}

		full := strings.TrimSpace(b.String())
		if full == "" {
			select {
			case events <- Event{Err: apierr.New(apierr.KindEmptyUpstream, "completion provider returned empty text")}:
			case <-ctx.Done():
			}
			return
		}
		s.persistAssistant(ctx, sessionID, full)
		select {
		case events <- Event{Content: full, Done: true}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

func (s *Service) persistAssistant(ctx context.Context, sessionID, reply string) string {
	turn, err := s.store.Append(ctx, sessionID, store.RoleAssistant, reply)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist assistant turn")
		return uuid.NewString()
	}
	return turn.ID
}
