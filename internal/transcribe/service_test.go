package transcribe

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PodZamkom/Constitution/internal/apierr"
)

type fakeSTT struct {
	calls    int32
	text     string
	err      error
	filename string
	payload  []byte
	tempPath string
}

func (f *fakeSTT) Transcribe(_ context.Context, audio io.Reader, filename string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.filename = filename
	if file, ok := audio.(*os.File); ok {
		f.tempPath = file.Name()
	}
	b, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	f.payload = b
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestTranscribe_RejectsUnsupportedTypeBeforeProvider(t *testing.T) {
	f := &fakeSTT{text: "irrelevant"}
	svc := NewService(f)

	_, err := svc.Transcribe(context.Background(), strings.NewReader("\x89PNG"), "image/png")
	if !apierr.IsKind(err, apierr.KindUnsupportedMedia) {
		t.Fatalf("expected unsupported media, got %v", err)
	}
	if atomic.LoadInt32(&f.calls) != 0 {
		t.Fatalf("provider must not be called for rejected types")
	}
	if status, _ := apierr.Translate(err); status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestTranscribe_RejectsEmptyPayload(t *testing.T) {
	f := &fakeSTT{text: "irrelevant"}
	svc := NewService(f)

	_, err := svc.Transcribe(context.Background(), strings.NewReader(""), "audio/wav")
	if !apierr.IsKind(err, apierr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if atomic.LoadInt32(&f.calls) != 0 {
		t.Fatalf("provider must not be called for empty payloads")
	}
}

func TestTranscribe_Success(t *testing.T) {
	f := &fakeSTT{text: "  Привет, Алеся  "}
	svc := NewService(f)

	got, err := svc.Transcribe(context.Background(), strings.NewReader("RIFFdata"), "audio/wav; codecs=1")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "Привет, Алеся" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
	if f.filename != "audio.wav" {
		t.Fatalf("expected wav filename hint, got %q", f.filename)
	}
	if string(f.payload) != "RIFFdata" {
		t.Fatalf("payload not forwarded intact: %q", f.payload)
	}
}

func TestTranscribe_EmptyTranscript(t *testing.T) {
	f := &fakeSTT{text: "   "}
	svc := NewService(f)

	_, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "audio/mpeg")
	if !apierr.IsKind(err, apierr.KindEmptyUpstream) {
		t.Fatalf("expected empty upstream, got %v", err)
	}
}

func TestTranscribe_TempFileRemovedOnEveryPath(t *testing.T) {
	cases := []struct {
		name string
		stt  *fakeSTT
	}{
		{"success", &fakeSTT{text: "ok"}},
		{"provider failure", &fakeSTT{err: apierr.New(apierr.KindUpstreamRateLimit, "slow down")}},
		{"empty transcript", &fakeSTT{text: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.stt)
			_, _ = svc.Transcribe(context.Background(), strings.NewReader("audio"), "audio/ogg")
			if tc.stt.tempPath == "" {
				t.Fatalf("provider did not observe a staged file")
			}
			if _, err := os.Stat(tc.stt.tempPath); !os.IsNotExist(err) {
				t.Fatalf("staged file %s not removed (stat err %v)", tc.stt.tempPath, err)
			}
			if ext := filepath.Ext(tc.stt.tempPath); ext != ".ogg" {
				t.Fatalf("staged file extension %q, want .ogg", ext)
			}
		})
	}
}
