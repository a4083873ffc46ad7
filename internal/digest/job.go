package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"presswatch/app/internal/press"
)

// digestWindow is how far back the daily report looks for fresh articles.
const digestWindow = 24 * time.Hour

// Scanner runs one ingestion sweep and returns the committed batch.
type Scanner interface {
	Scan(ctx context.Context) ([]press.Article, error)
}

// Notifier delivers a digest of articles under the given subject.
type Notifier interface {
	Send(ctx context.Context, articles []press.Article, subject string) error
}

// Job orchestrates scans and digest delivery. Scan and notification failures
// are logged and never propagate; from the outside a failed run looks like a
// run that found nothing new.
type Job struct {
	brand     string
	scanner   Scanner
	repo      press.Repository
	notifier  Notifier
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

// JobOptions wires the digest job with its dependencies.
type JobOptions struct {
	Brand      string
	Scanner    Scanner
	Repository press.Repository
	Notifier   Notifier
	Logger     *logrus.Logger
	SentryHub  *sentry.Hub
}

// NewJob validates the dependencies and returns a digest job.
func NewJob(opts JobOptions) (*Job, error) {
	if opts.Scanner == nil {
		return nil, eris.New("scanner is required")
	}
	if opts.Repository == nil {
		return nil, eris.New("article repository is required")
	}
	if opts.Notifier == nil {
		return nil, eris.New("notifier is required")
	}

	return &Job{
		brand:     opts.Brand,
		scanner:   opts.Scanner,
		repo:      opts.Repository,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
	}, nil
}

// RunDaily performs the scheduled run: sweep silently, then email every
// article ingested during the trailing 24 hours. The window is evaluated in
// UTC against ingestion timestamps, so a failed sweep still reports articles
// found by earlier runs.
func (j *Job) RunDaily(ctx context.Context) {
	if _, err := j.scanner.Scan(ctx); err != nil {
		j.recordError(nil, err, "daily scan failed")
	}

	now := time.Now().UTC()
	window, err := j.repo.CreatedBetween(ctx, now.Add(-digestWindow), now)
	if err != nil {
		j.recordError(nil, err, "querying daily digest window")
		return
	}

	if len(window) == 0 {
		if j.logger != nil {
			j.logger.Info("no new articles in last 24 hours; skipping daily email")
		}
		return
	}

	if err := j.notifier.Send(ctx, window, j.subject("Daily Report (Last 24 hours)")); err != nil {
		j.recordError(logrus.Fields{"articles": len(window)}, err, "sending daily digest")
	}
}

// RunManual performs one sweep and immediately emails exactly the batch it
// inserted. A failed sweep is reported as zero new articles.
func (j *Job) RunManual(ctx context.Context) []press.Article {
	inserted, err := j.scanner.Scan(ctx)
	if err != nil {
		j.recordError(nil, err, "manual scan failed")
		return nil
	}

	if len(inserted) == 0 {
		return inserted
	}

	if err := j.notifier.Send(ctx, inserted, j.subject("Manual Trigger")); err != nil {
		j.recordError(logrus.Fields{"articles": len(inserted)}, err, "sending manual digest")
	}

	return inserted
}

func (j *Job) subject(suffix string) string {
	return fmt.Sprintf("%s Press Monitoring – %s", j.brand, suffix)
}

func (j *Job) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if j.logger != nil {
		entry := j.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if j.sentryHub != nil {
		j.sentryHub.CaptureException(err)
	}
}
