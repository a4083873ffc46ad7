package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"presswatch/app/internal/config"
)

// Scheduler fires the daily digest job once per day at the configured local
// wall-clock time.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	location *time.Location
	logger   *logrus.Logger
}

// NewScheduler registers the daily job with a cron runner bound to the
// configured timezone.
func NewScheduler(schedule config.ScheduleConfig, job *Job, logger *logrus.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, eris.New("digest job is required")
	}

	location := schedule.Location()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	runner := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(cronLogger{logger: logger})),
	)

	spec := fmt.Sprintf("%d %d * * *", schedule.Minute, schedule.Hour)
	scheduler := &Scheduler{cron: runner, spec: spec, location: location, logger: logger}

	if _, err := runner.AddFunc(spec, func() {
		if logger != nil {
			logger.WithField("spec", spec).Info("daily digest job triggered")
		}
		job.RunDaily(context.Background())
	}); err != nil {
		return nil, eris.Wrapf(err, "registering daily job: %s", spec)
	}

	return scheduler, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"spec":     s.spec,
			"timezone": s.location.String(),
			"next_run": s.NextRun().Format(time.RFC3339),
		}).Info("daily digest scheduled")
	}
}

// Stop halts the cron loop and waits for an in-flight job to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "waiting for scheduler to stop")
	}
}

// NextRun reports when the daily job fires next.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}

	entry := entries[0]
	if !entry.Next.IsZero() {
		return entry.Next
	}
	return entry.Schedule.Next(time.Now().In(s.location))
}

// cronLogger adapts logrus to the cron logging interface so panics inside
// scheduled runs are reported through the application logger.
type cronLogger struct {
	logger *logrus.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.WithFields(cronFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.WithFields(cronFields(keysAndValues)).WithField("error", err.Error()).Error(msg)
}

func cronFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
