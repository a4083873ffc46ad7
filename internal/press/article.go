package press

import "time"

// Article represents one discovered brand mention persisted in the database.
// Rows are immutable once created; the URL is the dedup key.
type Article struct {
	ID          uint   `gorm:"primaryKey"`
	Newspaper   string `gorm:"size:100"`
	Language    string `gorm:"size:20"`
	Title       string `gorm:"type:text"`
	URL         string `gorm:"type:text;uniqueIndex:idx_press_articles_url;not null"`
	Snippet     string `gorm:"type:text"`
	QueryUsed   string `gorm:"size:255"`
	PublishDate string `gorm:"type:text"`
	CreatedAt   time.Time
}

// TableName defines the table name for the Article model.
func (Article) TableName() string {
	return "press_articles"
}
