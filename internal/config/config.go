package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration. It is loaded once at startup and
// never mutated afterwards.
type Config struct {
	HTTPAddress   string
	OpenAIAPIKey  string
	ChatModel     string
	RealtimeModel string
	VoiceName     string
	DatabaseURL   string
	CORSOrigins   []string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8001"
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set - chat, transcription and voice mode will not work")
	}

	chatModel := os.Getenv("CHAT_MODEL")
	if chatModel == "" {
		chatModel = "gpt-4o"
	}

	realtimeModel := os.Getenv("REALTIME_MODEL")
	if realtimeModel == "" {
		realtimeModel = "gpt-4o-realtime-preview-2024-12-17"
	}

	voiceName := os.Getenv("VOICE_NAME")
	if voiceName == "" {
		voiceName = "shimmer"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Info().Msg("DATABASE_URL not set - using in-memory conversation store")
	}

	origins := splitOrigins(os.Getenv("CORS_ORIGINS"))

	log.Info().Str("http_address", addr).Str("chat_model", chatModel).Str("realtime_model", realtimeModel).Msg("config loaded")
	return Config{
		HTTPAddress:   addr,
		OpenAIAPIKey:  apiKey,
		ChatModel:     chatModel,
		RealtimeModel: realtimeModel,
		VoiceName:     voiceName,
		DatabaseURL:   databaseURL,
		CORSOrigins:   origins,
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
