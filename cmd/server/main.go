// @title           Dead-Man's-Switch Backend API
// @version         1.0
// @description     Check-in based notification service: switches, recipients, messages, and trigger evaluation.
//
// @host      localhost:8080
// @BasePath  /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/afoster/go-switch-backend/internal/config"
	httpapi "github.com/afoster/go-switch-backend/internal/http"
	"github.com/afoster/go-switch-backend/internal/mail"
	"github.com/afoster/go-switch-backend/internal/observability"
	"github.com/afoster/go-switch-backend/internal/repo"
	"github.com/afoster/go-switch-backend/internal/scheduler"
	"github.com/afoster/go-switch-backend/internal/services"
	"github.com/afoster/go-switch-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	// Tracing
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	// Outbound mail transport. Misconfiguration is fatal here rather than at
	// trigger time: a switch service that cannot alert is worse than one that
	// refuses to start.
	mailer, err := mail.New(mail.Settings{
		Enabled:  cfg.SMTP.Enabled,
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		ReplyTo:  cfg.SMTP.ReplyTo,
		UseTLS:   cfg.SMTP.UseTLS,
		Timeout:  cfg.SMTP.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("configure smtp transport")
	}
	if !cfg.SMTP.Enabled {
		log.Warn().Msg("smtp delivery disabled; evaluation runs will fail until configured")
	}

	// HTTP transport
	r := gin.New()
	httpapi.RegisterRoutes(r, db, mailer, cfg)

	// Background schedule
	var sched *scheduler.Scheduler
	if cfg.Evaluator.ScheduleEnabled {
		eval := &services.Evaluator{
			DB:               db,
			Mailer:           mailer,
			ReplyTo:          cfg.SMTP.ReplyTo,
			FailureSampleCap: cfg.Evaluator.FailureSampleCap,
		}
		sched = scheduler.New(db, eval, scheduler.WithEvaluationSchedule(cfg.Evaluator.Schedule))
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Evaluator.Schedule).Msg("start scheduler")
		}
		log.Info().Str("schedule", cfg.Evaluator.Schedule).Msg("in-process evaluation schedule started")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if sched != nil {
		<-sched.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
