package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"birthday-rsvp/internal/config"
	"birthday-rsvp/internal/handler"
	"birthday-rsvp/internal/logging"
	"birthday-rsvp/internal/server"
	"birthday-rsvp/internal/storage"
	"birthday-rsvp/internal/whatsapp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("RSVP server failed")
	}
	log.Info().Msg("Goodbye")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handlers need a nil interface, not a typed nil, when storage is absent.
	var store handler.RSVPStore
	if cfg.DatabaseConfigured() {
		st, err := storage.NewStorage(cfg.DatabaseDriver, cfg.DSN(), log.With().Str("component", "Storage").Logger())
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close storage")
			}
		}()
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}
		store = st
	} else {
		log.Warn().Msg("No database URL configured; submissions will be rejected and stats reported as unconfigured")
	}

	var notifier handler.Notifier
	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.NewService(ctx, &whatsapp.Config{
			DataDir:       cfg.WhatsAppDataDir,
			PartyName:     cfg.PartyName,
			PartyDate:     cfg.PartyDate,
			PartyLocation: cfg.PartyLocation,
			HostName:      cfg.HostName,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize WhatsApp: %w", err)
		}
		if err := wa.Connect(ctx); err != nil {
			return err
		}
		defer wa.Disconnect()
		notifier = wa
	}

	rsvpHandler := handler.NewRSVPHandler(store, notifier, log)
	defer rsvpHandler.Wait()

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.RouterConfig{
		RSVPHandler:      rsvpHandler,
		AllowedOrigins:   cfg.AllowedOrigins,
		RequestBodyLimit: cfg.RequestBodyLimit,
		Log:              log.With().Str("component", "HTTP").Logger(),
	})

	return server.NewServer(cfg.HTTPAddr, router, cfg.ShutdownTimeout, log).Run(ctx)
}
