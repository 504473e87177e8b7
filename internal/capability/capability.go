package capability

import "github.com/PodZamkom/Constitution/internal/config"

// Snapshot is a point-in-time description of which integrations are usable.
// It is derived from configuration on every query, never cached.
type Snapshot struct {
	Chat       bool   `json:"chat"`
	Whisper    bool   `json:"whisper_available"`
	VoiceMode  bool   `json:"voice_mode_available"`
	Storage    bool   `json:"storage_available"`
	VoiceModel string `json:"voice_model"`
	VoiceName  string `json:"voice_name"`
}

// Compute derives the snapshot from process configuration. The provider
// credential gates chat, transcription and voice mode alike; persistent
// reports whether a durable turn store is attached.
func Compute(cfg config.Config, persistent bool) Snapshot {
	hasKey := cfg.OpenAIAPIKey != ""
	return Snapshot{
		Chat:       hasKey && cfg.ChatModel != "",
		Whisper:    hasKey,
		VoiceMode:  hasKey && cfg.RealtimeModel != "",
		Storage:    persistent,
		VoiceModel: cfg.RealtimeModel,
		VoiceName:  cfg.VoiceName,
	}
}
