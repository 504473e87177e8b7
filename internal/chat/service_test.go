package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PodZamkom/Constitution/internal/apierr"
	"github.com/PodZamkom/Constitution/internal/prompt"
	"github.com/PodZamkom/Constitution/internal/store"
)

type fakeProvider struct {
	calls     int32
	reply     string
	err       error
	fragments []string
	streamErr error
	lastMsgs  []prompt.Message
}

func (f *fakeProvider) Complete(_ context.Context, _ string, msgs []prompt.Message) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastMsgs = msgs
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) StreamComplete(ctx context.Context, _ string, msgs []prompt.Message) (<-chan string, <-chan error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastMsgs = msgs
	textCh := make(chan string, len(f.fragments)+1)
	errCh := make(chan error, 1)
	go func() {
		defer close(textCh)
		defer close(errCh)
		for _, frag := range f.fragments {
			textCh <- frag
		}
		if f.streamErr != nil {
			errCh <- f.streamErr
		}
	}()
	return textCh, errCh
}

type failingStore struct{}

func (failingStore) Append(context.Context, string, store.Role, string) (store.Turn, error) {
	return store.Turn{}, apierr.New(apierr.KindStorageUnavailable, "db down")
}
func (failingStore) Read(context.Context, string) ([]store.Turn, error) {
	return nil, apierr.New(apierr.KindStorageUnavailable, "db down")
}
func (failingStore) Persistent() bool { return true }
func (failingStore) Close()           {}

func TestAnswer_EmptyInputNoProviderCall(t *testing.T) {
	p := &fakeProvider{reply: "hi"}
	svc := NewService(p, store.NewMemoryStore(), "gpt-4o", "sys")
	_, err := svc.Answer(context.Background(), "s1", "   ")
	if !apierr.IsKind(err, apierr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if atomic.LoadInt32(&p.calls) != 0 {
		t.Fatalf("expected no provider call, got %d", p.calls)
	}
}

func TestAnswer_Success(t *testing.T) {
	p := &fakeProvider{reply: "Статья 1 определяет основы строя."}
	st := store.NewMemoryStore()
	svc := NewService(p, st, "gpt-4o", "sys")

	ans, err := svc.Answer(context.Background(), "", "Что в статье 1?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Response != p.reply {
		t.Fatalf("unexpected reply %q", ans.Response)
	}
	if ans.SessionID == "" || ans.MessageID == "" {
		t.Fatalf("expected generated identifiers, got %+v", ans)
	}

	turns, _ := st.Read(context.Background(), ans.SessionID)
	if len(turns) != 2 || turns[0].Role != store.RoleUser || turns[1].Role != store.RoleAssistant {
		t.Fatalf("expected user then assistant persisted, got %+v", turns)
	}
	if turns[1].ID != ans.MessageID {
		t.Fatalf("message id must be the assistant turn id")
	}
}

func TestAnswer_PromptShape(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	st := store.NewMemoryStore()
	svc := NewService(p, st, "gpt-4o", "sys")
	ctx := context.Background()

	if _, err := svc.Answer(ctx, "s1", "first"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := svc.Answer(ctx, "s1", "second"); err != nil {
		t.Fatalf("second answer: %v", err)
	}

	msgs := p.lastMsgs
	if msgs[0].Role != "system" {
		t.Fatalf("expected system message first, got %+v", msgs[0])
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "second" {
		t.Fatalf("expected new user text last, got %+v", last)
	}
	// History for the second call: first exchange only, not a duplicate of
	// the just-persisted user turn.
	if len(msgs) != 4 {
		t.Fatalf("expected system+2 history+user, got %d messages: %+v", len(msgs), msgs)
	}
	if msgs[1].Content != "first" || msgs[2].Content != "ok" {
		t.Fatalf("unexpected history section: %+v", msgs[1:3])
	}
}

func TestAnswer_EmptyUpstreamKeepsUserTurn(t *testing.T) {
	p := &fakeProvider{reply: "   "}
	st := store.NewMemoryStore()
	svc := NewService(p, st, "gpt-4o", "sys")

	_, err := svc.Answer(context.Background(), "s1", "hello")
	if !apierr.IsKind(err, apierr.KindEmptyUpstream) {
		t.Fatalf("expected empty-upstream error, got %v", err)
	}
	turns, _ := st.Read(context.Background(), "s1")
	if len(turns) != 1 || turns[0].Role != store.RoleUser {
		t.Fatalf("expected the user turn to survive, got %+v", turns)
	}
}

func TestAnswer_ProviderFailureKeepsUserTurn(t *testing.T) {
	p := &fakeProvider{err: apierr.New(apierr.KindUpstreamAuth, "bad key")}
	st := store.NewMemoryStore()
	svc := NewService(p, st, "gpt-4o", "sys")

	_, err := svc.Answer(context.Background(), "s1", "hello")
	status, detail := apierr.Translate(err)
	if status != 401 || detail == "" {
		t.Fatalf("expected 401 with detail, got %d %q", status, detail)
	}
	turns, _ := st.Read(context.Background(), "s1")
	if len(turns) != 1 {
		t.Fatalf("expected partial-failure durability, got %+v", turns)
	}
}

func TestAnswer_StorageFailureStillAnswers(t *testing.T) {
	p := &fakeProvider{reply: "answer"}
	svc := NewService(p, failingStore{}, "gpt-4o", "sys")

	ans, err := svc.Answer(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("storage failure must not fail the answer: %v", err)
	}
	if ans.Response != "answer" || ans.MessageID == "" {
		t.Fatalf("unexpected answer %+v", ans)
	}
}

func TestAnswerStream_CumulativeThenDone(t *testing.T) {
	p := &fakeProvider{fragments: []string{"Hello", " world"}}
	st := store.NewMemoryStore()
	svc := NewService(p, st, "gpt-4o", "sys")

	events, err := svc.AnswerStream(context.Background(), "s1", "hi")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	var got []Event
	for e := range events {
		got = append(got, e)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].Content != "Hello" || got[0].Done {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[1].Content != "Hello world" || got[1].Done {
		t.Fatalf("unexpected second event %+v", got[1])
	}
	if !got[2].Done || got[2].Content != "Hello world" || got[2].Err != nil {
		t.Fatalf("unexpected terminal event %+v", got[2])
	}

	turns, _ := st.Read(context.Background(), "s1")
	if len(turns) != 2 || turns[1].Content != "Hello world" {
		t.Fatalf("expected assistant turn persisted after stream, got %+v", turns)
	}
}

func TestAnswerStream_MidflightErrorIsExplicit(t *testing.T) {
	p := &fakeProvider{fragments: []string{"partial"}, streamErr: errors.New("connection reset")}
	svc := NewService(p, store.NewMemoryStore(), "gpt-4o", "sys")

	events, err := svc.AnswerStream(context.Background(), "s1", "hi")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	var last Event
	count := 0
	for e := range events {
		last = e
		count++
	}
	if count == 0 {
		t.Fatalf("expected at least one event")
	}
	if last.Err == nil {
		t.Fatalf("expected the final event to carry the error, got %+v", last)
	}
	if last.Done {
		t.Fatalf("aborted stream must not report done")
	}
}

func TestAnswerStream_EmptyInputNoProviderCall(t *testing.T) {
	p := &fakeProvider{}
	svc := NewService(p, store.NewMemoryStore(), "gpt-4o", "sys")
	_, err := svc.AnswerStream(context.Background(), "s1", "")
	if !apierr.IsKind(err, apierr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if atomic.LoadInt32(&p.calls) != 0 {
		t.Fatalf("expected no provider call")
	}
}

func TestAnswerStream_AbandonedConsumerDoesNotStrandProducer(t *testing.T) {
	// Enough fragments to fill the event buffer so the terminal send
	// would block forever without a cancellation path.
	frags := make([]string, 16)
	for i := range frags {
		frags[i] = "x"
	}
	p := &fakeProvider{fragments: frags}
	svc := NewService(p, store.NewMemoryStore(), "gpt-4o", "sys")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.AnswerStream(ctx, "s1", "hi")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	cancel() // consumer walks away without reading a single event

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("producer still blocked after consumer abandoned the stream")
		}
	}
}

func TestAnswerStream_ClientCancellation(t *testing.T) {
	p := &fakeProvider{fragments: []string{"a", "b", "c"}}
	svc := NewService(p, store.NewMemoryStore(), "gpt-4o", "sys")

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.AnswerStream(ctx, "s1", "hi")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return // channel closed promptly after cancellation
			}
		case <-deadline:
			t.Fatalf("events channel not closed after cancellation")
		}
	}
}
