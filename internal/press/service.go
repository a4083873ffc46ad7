package press

import (
	"context"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"presswatch/app/internal/config"
	"presswatch/app/internal/search"
)

// Service runs brand-mention scans across the configured sources.
type Service interface {
	Scan(ctx context.Context) ([]Article, error)
}

type service struct {
	sources    []config.Source
	queries    config.Queries
	searcher   search.Searcher
	classifier *Classifier
	repo       Repository
	logger     *logrus.Logger
	sentryHub  *sentry.Hub

	mu sync.Mutex
}

var _ Service = (*service)(nil)

// ServiceOptions wires the scan service with its dependencies.
type ServiceOptions struct {
	Sources    []config.Source
	Queries    config.Queries
	Searcher   search.Searcher
	Classifier *Classifier
	Repository Repository
	Logger     *logrus.Logger
	SentryHub  *sentry.Hub
}

// NewService validates the dependencies and returns a scan service.
func NewService(opts ServiceOptions) (Service, error) {
	if len(opts.Sources) == 0 {
		return nil, eris.New("at least one monitored source is required")
	}
	if opts.Searcher == nil {
		return nil, eris.New("searcher is required")
	}
	if opts.Classifier == nil {
		return nil, eris.New("classifier is required")
	}
	if opts.Repository == nil {
		return nil, eris.New("article repository is required")
	}

	return &service{
		sources:    opts.Sources,
		queries:    opts.Queries,
		searcher:   opts.Searcher,
		classifier: opts.Classifier,
		repo:       opts.Repository,
		logger:     opts.Logger,
		sentryHub:  opts.SentryHub,
	}, nil
}

// Scan sweeps every configured source with the query set for its language,
// drops results that are already stored or repeated within the sweep, and
// persists the remainder as one batch. The returned slice is exactly the
// committed batch; on any failure nothing is committed. Scans are
// serialized, so a second caller blocks until the first one finishes.
func (s *service) Scan(ctx context.Context) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []Article
	seen := make(map[string]struct{})

	for _, source := range s.sources {
		for _, query := range s.queriesFor(source) {
			results, err := s.searcher.Search(ctx, query, source.Domain)
			if err != nil {
				s.recordError(logrus.Fields{"domain": source.Domain, "query": query}, err, "searching source")
				return nil, eris.Wrapf(err, "searching %s", source.Domain)
			}

			for _, result := range results {
				link := strings.TrimSpace(result.Link)
				if link == "" {
					continue
				}
				if _, ok := seen[link]; ok {
					continue
				}

				existing, err := s.repo.GetByURL(ctx, link)
				if err != nil {
					s.recordError(logrus.Fields{"url": link}, err, "checking for existing article")
					return nil, eris.Wrap(err, "checking for existing article")
				}
				if existing != nil {
					continue
				}

				seen[link] = struct{}{}
				batch = append(batch, Article{
					Newspaper:   s.classifier.NewspaperFor(link),
					Language:    s.classifier.LanguageFor(link),
					Title:       result.Title,
					URL:         link,
					Snippet:     result.Snippet,
					QueryUsed:   query,
					PublishDate: result.PublishedTime(),
				})
			}
		}
	}

	var inserted []Article
	if len(batch) > 0 {
		var err error
		inserted, err = s.repo.InsertBatch(ctx, batch)
		if err != nil {
			s.recordError(logrus.Fields{"batch_size": len(batch)}, err, "persisting scan batch")
			return nil, eris.Wrap(err, "persisting scan batch")
		}
	}

	if s.logger != nil {
		s.logger.WithField("new_articles", len(inserted)).Info("scan complete")
	}

	return inserted, nil
}

func (s *service) queriesFor(source config.Source) []string {
	if source.Language == config.LanguageSinhala {
		return s.queries.Sinhala
	}
	return s.queries.English
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
