package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"presswatch/app/internal/config"
	appdb "presswatch/app/internal/db"
	"presswatch/app/internal/digest"
	apphttp "presswatch/app/internal/http"
	applog "presswatch/app/internal/log"
	appmail "presswatch/app/internal/mail"
	"presswatch/app/internal/press"
	"presswatch/app/internal/search"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{URL: cfg.DatabaseURL})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := press.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running migrations")
	}

	repository, err := press.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building article repository")
	}

	searcher, err := search.NewClient(search.Options{
		Endpoint: cfg.Search.Endpoint,
		APIKey:   cfg.Search.APIKey,
		EngineID: cfg.Search.EngineID,
		Logger:   logger,
	})
	if err != nil {
		return eris.Wrap(err, "creating search client")
	}

	scanner, err := press.NewService(press.ServiceOptions{
		Sources:    cfg.Sources,
		Queries:    cfg.Queries,
		Searcher:   searcher,
		Classifier: press.NewClassifier(cfg.Sources),
		Repository: repository,
		Logger:     logger,
		SentryHub:  sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "creating scan service")
	}

	notifier := appmail.NewNotifier(cfg.Mail, cfg.Brand, logger)

	job, err := digest.NewJob(digest.JobOptions{
		Brand:      cfg.Brand,
		Scanner:    scanner,
		Repository: repository,
		Notifier:   notifier,
		Logger:     logger,
		SentryHub:  sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "creating digest job")
	}

	scheduler, err := digest.NewScheduler(cfg.Schedule, job, logger)
	if err != nil {
		return eris.Wrap(err, "creating scheduler")
	}

	transport, err := apphttp.NewServer(apphttp.Options{
		Trigger:          job,
		Repository:       repository,
		Database:         dbConn,
		Logger:           logger,
		SentryHub:        sentryHub,
		Brand:            cfg.Brand,
		Newspapers:       config.NewspaperNames(cfg.Sources),
		SearchConfigured: searcher.Configured(),
		MailConfigured:   notifier.Configured(),
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}

	scheduler.Start()

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr": httpServer.Addr,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	if err := scheduler.Stop(shutdownCtx); err != nil {
		return eris.Wrap(err, "stopping scheduler")
	}

	logger.Info("server shut down cleanly")
	return nil
}
