package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apihttp "github.com/PodZamkom/Constitution/api/http"
	"github.com/PodZamkom/Constitution/internal/chat"
	"github.com/PodZamkom/Constitution/internal/config"
	"github.com/PodZamkom/Constitution/internal/httpserver"
	"github.com/PodZamkom/Constitution/internal/openai"
	"github.com/PodZamkom/Constitution/internal/prompt"
	"github.com/PodZamkom/Constitution/internal/store"
	"github.com/PodZamkom/Constitution/internal/transcribe"
	"github.com/PodZamkom/Constitution/internal/voice"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	st := newStore(cfg)
	defer st.Close()

	client := openai.NewClient(cfg.OpenAIAPIKey)
	chatSvc := chat.NewService(client, st, cfg.ChatModel, prompt.SystemPrompt)
	transcriber := transcribe.NewService(client)
	bridge := voice.NewBridge(client, cfg.RealtimeModel, cfg.VoiceName, prompt.VoiceInstructions)

	e := httpserver.New(cfg.CORSOrigins)
	handlers := &apihttp.Handlers{
		Cfg:         cfg,
		Chat:        chatSvc,
		Transcriber: transcriber,
		Voice:       bridge,
		Store:       st,
	}
	handlers.Register(e)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.HTTPAddress).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

// newStore prefers the durable store when a DSN is configured, falling back
// to memory so a broken database never keeps the assistant offline.
func newStore(cfg config.Config) store.Store {
	if cfg.DatabaseURL == "" {
		return store.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, using in-memory conversation store")
		return store.NewMemoryStore()
	}
	log.Info().Msg("connected to conversation database")
	return st
}
