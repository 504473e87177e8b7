package capability

import (
	"testing"

	"github.com/PodZamkom/Constitution/internal/config"
)

func TestCompute_NoCredential(t *testing.T) {
	snap := Compute(config.Config{ChatModel: "gpt-4o", RealtimeModel: "rt"}, false)
	if snap.Chat || snap.Whisper || snap.VoiceMode {
		t.Fatalf("expected all provider capabilities off without a key: %+v", snap)
	}
	if snap.Storage {
		t.Fatalf("expected storage off for in-memory store")
	}
}

func TestCompute_WithCredential(t *testing.T) {
	cfg := config.Config{
		OpenAIAPIKey:  "sk-test",
		ChatModel:     "gpt-4o",
		RealtimeModel: "gpt-4o-realtime-preview-2024-12-17",
		VoiceName:     "shimmer",
	}
	snap := Compute(cfg, true)
	if !snap.Chat || !snap.Whisper || !snap.VoiceMode || !snap.Storage {
		t.Fatalf("expected all capabilities on: %+v", snap)
	}
	if snap.VoiceModel != cfg.RealtimeModel || snap.VoiceName != "shimmer" {
		t.Fatalf("expected voice metadata carried through: %+v", snap)
	}
}

func TestCompute_VoiceNeedsRealtimeModel(t *testing.T) {
	snap := Compute(config.Config{OpenAIAPIKey: "sk", ChatModel: "gpt-4o"}, false)
	if snap.VoiceMode {
		t.Fatalf("expected voice mode off without a realtime model")
	}
	if !snap.Chat {
		t.Fatalf("expected chat on")
	}
}
