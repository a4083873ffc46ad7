package digest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"presswatch/app/internal/press"
)

type stubScanner struct {
	batch []press.Article
	err   error
	calls int
}

var _ Scanner = (*stubScanner)(nil)

func (s *stubScanner) Scan(ctx context.Context) ([]press.Article, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.batch, nil
}

type stubNotifier struct {
	err      error
	calls    int
	articles [][]press.Article
	subjects []string
}

var _ Notifier = (*stubNotifier)(nil)

func (s *stubNotifier) Send(ctx context.Context, articles []press.Article, subject string) error {
	s.calls++
	s.articles = append(s.articles, articles)
	s.subjects = append(s.subjects, subject)
	return s.err
}

type stubRepository struct {
	window    []press.Article
	windowErr error
	from, to  time.Time
	calls     int
}

var _ press.Repository = (*stubRepository)(nil)

func (s *stubRepository) GetByURL(ctx context.Context, url string) (*press.Article, error) {
	return nil, nil
}

func (s *stubRepository) InsertBatch(ctx context.Context, articles []press.Article) ([]press.Article, error) {
	return articles, nil
}

func (s *stubRepository) CreatedBetween(ctx context.Context, from, to time.Time) ([]press.Article, error) {
	s.calls++
	s.from = from
	s.to = to
	if s.windowErr != nil {
		return nil, s.windowErr
	}
	return s.window, nil
}

func (s *stubRepository) List(ctx context.Context, filter press.Filter) ([]press.Article, error) {
	return nil, nil
}

func (s *stubRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

type errStub string

func (e errStub) Error() string {
	return string(e)
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestJob(t *testing.T, scanner *stubScanner, repo *stubRepository, notifier *stubNotifier) *Job {
	t.Helper()

	job, err := NewJob(JobOptions{
		Brand:      "Cargills",
		Scanner:    scanner,
		Repository: repo,
		Notifier:   notifier,
		Logger:     silentLogger(),
	})
	if err != nil {
		t.Fatalf("NewJob returned error: %v", err)
	}

	return job
}

func TestRunDailySendsWindowedDigest(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{}
	repo := &stubRepository{window: []press.Article{
		{URL: "https://example.lk/recent"},
		{URL: "https://example.lk/yesterday"},
	}}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	job.RunDaily(context.Background())

	if scanner.calls != 1 {
		t.Errorf("expected one scan, got %d", scanner.calls)
	}

	if repo.calls != 1 {
		t.Fatalf("expected one window query, got %d", repo.calls)
	}
	if !repo.from.Equal(repo.to.Add(-24 * time.Hour)) {
		t.Errorf("expected a 24 hour window, got %s to %s", repo.from, repo.to)
	}
	if repo.to.Location() != time.UTC {
		t.Errorf("expected the window to be evaluated in UTC, got %s", repo.to.Location())
	}
	if delta := time.Since(repo.to); delta < 0 || delta > time.Minute {
		t.Errorf("expected the window to end now, ends %s", repo.to)
	}

	if notifier.calls != 1 {
		t.Fatalf("expected one digest, got %d", notifier.calls)
	}
	if notifier.subjects[0] != "Cargills Press Monitoring – Daily Report (Last 24 hours)" {
		t.Errorf("unexpected subject %q", notifier.subjects[0])
	}
	if len(notifier.articles[0]) != 2 {
		t.Errorf("expected the windowed articles in the digest, got %d", len(notifier.articles[0]))
	}
}

func TestRunDailySkipsEmptyWindow(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{}
	repo := &stubRepository{}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	job.RunDaily(context.Background())

	if notifier.calls != 0 {
		t.Errorf("expected no digest for an empty window, got %d sends", notifier.calls)
	}
}

func TestRunDailyContinuesAfterScanFailure(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{err: errStub("search api down")}
	repo := &stubRepository{window: []press.Article{{URL: "https://example.lk/earlier"}}}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	job.RunDaily(context.Background())

	if repo.calls != 1 {
		t.Errorf("expected the window query to run despite the failed scan, got %d", repo.calls)
	}
	if notifier.calls != 1 {
		t.Errorf("expected the digest to be sent despite the failed scan, got %d", notifier.calls)
	}
}

func TestRunDailySwallowsWindowQueryError(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{}
	repo := &stubRepository{windowErr: errStub("database gone")}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	job.RunDaily(context.Background())

	if notifier.calls != 0 {
		t.Errorf("expected no digest when the window query fails, got %d", notifier.calls)
	}
}

func TestRunDailySwallowsNotifierError(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{}
	repo := &stubRepository{window: []press.Article{{URL: "https://example.lk/a"}}}
	notifier := &stubNotifier{err: errStub("smtp refused")}

	job := newTestJob(t, scanner, repo, notifier)
	job.RunDaily(context.Background())

	if notifier.calls != 1 {
		t.Errorf("expected the send to be attempted once, got %d", notifier.calls)
	}
}

func TestRunManualNotifiesWithInsertedBatch(t *testing.T) {
	t.Parallel()

	batch := []press.Article{
		{URL: "https://example.lk/one"},
		{URL: "https://example.lk/two"},
	}
	scanner := &stubScanner{batch: batch}
	repo := &stubRepository{}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	inserted := job.RunManual(context.Background())

	if len(inserted) != 2 {
		t.Fatalf("expected the batch to be returned, got %d", len(inserted))
	}

	if notifier.calls != 1 {
		t.Fatalf("expected one digest, got %d", notifier.calls)
	}
	if notifier.subjects[0] != "Cargills Press Monitoring – Manual Trigger" {
		t.Errorf("unexpected subject %q", notifier.subjects[0])
	}
	if len(notifier.articles[0]) != 2 || notifier.articles[0][0].URL != "https://example.lk/one" {
		t.Errorf("expected exactly the inserted batch in the digest, got %#v", notifier.articles[0])
	}

	if repo.calls != 0 {
		t.Errorf("expected no window query on the manual path, got %d", repo.calls)
	}
}

func TestRunManualSkipsNotifyWhenNothingNew(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{}
	repo := &stubRepository{}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	inserted := job.RunManual(context.Background())

	if len(inserted) != 0 {
		t.Errorf("expected no new articles, got %d", len(inserted))
	}
	if notifier.calls != 0 {
		t.Errorf("expected no digest for an empty batch, got %d", notifier.calls)
	}
}

func TestRunManualReportsZeroOnScanFailure(t *testing.T) {
	t.Parallel()

	scanner := &stubScanner{err: errStub("search api down")}
	repo := &stubRepository{}
	notifier := &stubNotifier{}

	job := newTestJob(t, scanner, repo, notifier)
	inserted := job.RunManual(context.Background())

	if inserted != nil {
		t.Errorf("expected nil batch after a failed scan, got %#v", inserted)
	}
	if notifier.calls != 0 {
		t.Errorf("expected no digest after a failed scan, got %d", notifier.calls)
	}
}

func TestNewJobValidatesDependencies(t *testing.T) {
	t.Parallel()

	valid := JobOptions{
		Brand:      "Cargills",
		Scanner:    &stubScanner{},
		Repository: &stubRepository{},
		Notifier:   &stubNotifier{},
	}

	cases := []struct {
		name   string
		mutate func(*JobOptions)
	}{
		{"missing scanner", func(o *JobOptions) { o.Scanner = nil }},
		{"missing repository", func(o *JobOptions) { o.Repository = nil }},
		{"missing notifier", func(o *JobOptions) { o.Notifier = nil }},
	}

	for _, tc := range cases {
		opts := valid
		tc.mutate(&opts)
		if _, err := NewJob(opts); err == nil {
			t.Errorf("expected error for %s", tc.name)
		}
	}

	if _, err := NewJob(valid); err != nil {
		t.Errorf("expected valid options to construct, got %v", err)
	}
}
