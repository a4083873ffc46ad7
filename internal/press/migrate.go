package press

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the press schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "press.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying press schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Article{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("press schema migration failed")
		}
		return eris.Wrap(err, "auto migrating press schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("press schema migration complete")
	}

	return nil
}
