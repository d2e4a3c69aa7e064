package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"article-video-gen/internal/ai"
	"article-video-gen/internal/api"
	"article-video-gen/internal/bot"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/scheduler"

	"github.com/joho/godotenv"
)

const errorsLog = "errors.log"

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	log, err := logging.New(errorsLog)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	svc, err := scheduler.BuildService(ctx, log)
	if err != nil {
		log.Errorf("build service: %v", err)
		return
	}
	cfg := svc.GetConfig()

	if cfg.TelegramToken != "" {
		captions := ai.NewCaptionGenerator(cfg.GeminiAPIKey, log)
		b, err := bot.NewTelegramBot(svc, captions, log, errorsLog)
		if err != nil {
			log.Errorf("bot init: %v", err)
			return
		}
		b.SetCancelFunc(cancel)
		svc.SetNotifier(b)
		go func() {
			if err := b.Run(ctx); err != nil {
				log.Errorf("bot run: %v", err)
			}
		}()
	} else {
		log.Warnf("TELEGRAM_BOT_TOKEN not set, videos will not be published")
	}

	h := api.NewHandler(ctx, svc.Content(), svc, log)
	server := &http.Server{
		Addr: ":" + cfg.APIPort,
		Handler: api.NewRouter(h, api.RouterConfig{
			BackendAPIKey:      cfg.BackendAPIKey,
			CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("api: listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("api server: %v", err)
			cancel()
		}
	}()

	if err := svc.Run(ctx); err != nil {
		log.Errorf("scheduler stopped: %v", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("api shutdown: %v", err)
	}
	log.Infof("stopped")
}
