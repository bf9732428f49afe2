// Command server runs the knowledge base web application.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sakif/knowledgebase/internal/server"
)

// config is loaded from environment variables. SESSION_SECRET is the
// only required value: it signs both session and verification tokens,
// so rotating it invalidates all of them at once.
type config struct {
	Port           int           `env:"PORT" envDefault:"8080"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/knowledgebase.db"`
	SessionSecret  string        `env:"SESSION_SECRET,required"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	TokenTTL       time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"72h"`
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"15m"`
	SiteURL        string        `env:"SITE_URL" envDefault:"http://localhost:8080"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		DBPath:         cfg.DBPath,
		SessionSecret:  cfg.SessionSecret,
		SessionTTL:     cfg.SessionTTL,
		TokenTTL:       cfg.TokenTTL,
		ResendCooldown: cfg.ResendCooldown,
		SiteURL:        cfg.SiteURL,
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SMTPFrom:       cfg.SMTPFrom,
		SMTPUsername:   cfg.SMTPUsername,
		SMTPPassword:   cfg.SMTPPassword,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
