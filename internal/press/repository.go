package press

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Filter narrows List results. Zero-valued fields are ignored.
type Filter struct {
	Language    string
	Newspaper   string
	PublishDate string
}

// Repository defines persistence operations for press articles.
type Repository interface {
	GetByURL(ctx context.Context, url string) (*Article, error)
	InsertBatch(ctx context.Context, articles []Article) ([]Article, error)
	CreatedBetween(ctx context.Context, from, to time.Time) ([]Article, error)
	List(ctx context.Context, filter Filter) ([]Article, error)
	Count(ctx context.Context) (int64, error)
}

// GormRepository persists articles using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// GetByURL returns the article stored under the exact URL or nil when not found.
func (r *GormRepository) GetByURL(ctx context.Context, url string) (*Article, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, eris.New("url is required")
	}

	var article Article
	err := r.db.WithContext(ctx).First(&article, "url = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"url": trimmed}, err, "fetching article by url")
		return nil, eris.Wrapf(err, "fetching article by url: %s", trimmed)
	}

	return &article, nil
}

// InsertBatch persists the batch inside a single transaction. Either every
// article is stored or none are. Articles with a zero CreatedAt are stamped
// with the current UTC time before insertion.
func (r *GormRepository) InsertBatch(ctx context.Context, articles []Article) ([]Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	for i := range articles {
		if articles[i].CreatedAt.IsZero() {
			articles[i].CreatedAt = now
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range articles {
			if err := tx.Create(&articles[i]).Error; err != nil {
				return eris.Wrapf(err, "inserting article: %s", articles[i].URL)
			}
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"batch_size": len(articles)}, err, "inserting article batch")
		return nil, eris.Wrap(err, "inserting article batch")
	}

	return articles, nil
}

// CreatedBetween returns articles whose ingestion time falls inside the
// window, most recent first.
func (r *GormRepository) CreatedBetween(ctx context.Context, from, to time.Time) ([]Article, error) {
	var articles []Article

	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at DESC, id DESC").
		Find(&articles).Error
	if err != nil {
		r.logError(logrus.Fields{"from": from, "to": to}, err, "querying articles by window")
		return nil, eris.Wrap(err, "querying articles by window")
	}

	return articles, nil
}

// List returns stored articles, newest insertions first, honouring the
// optional filters. The publish date filter is a prefix match so a bare
// "2025-08" selects a whole month.
func (r *GormRepository) List(ctx context.Context, filter Filter) ([]Article, error) {
	query := r.db.WithContext(ctx).Model(&Article{})

	if filter.Language != "" {
		query = query.Where("language = ?", filter.Language)
	}
	if filter.Newspaper != "" {
		query = query.Where("newspaper = ?", filter.Newspaper)
	}
	if filter.PublishDate != "" {
		query = query.Where("publish_date LIKE ?", filter.PublishDate+"%")
	}

	var articles []Article
	if err := query.Order("id DESC").Find(&articles).Error; err != nil {
		r.logError(nil, err, "listing articles")
		return nil, eris.Wrap(err, "listing articles")
	}

	return articles, nil
}

// Count returns the total number of stored articles.
func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Article{}).Count(&count).Error; err != nil {
		r.logError(nil, err, "counting articles")
		return 0, eris.Wrap(err, "counting articles")
	}

	return count, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
