package db

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

// ChangeChannel is the postgres NOTIFY channel fed by the bookmarks trigger.
const ChangeChannel = "bookmark_changes"

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email     string `gorm:"unique;not null"`
		Password  string `gorm:"not null"`
		Token     string `gorm:"not null;index"`
		Bookmarks []Bookmark
	}

	Bookmark struct {
		GormForkedModel
		Title  string `gorm:"not null"`
		URL    string `gorm:"not null"`
		UserID uint64 `gorm:"not null;index"`
		User   User
	}
)

// ToModel converts a stored row into its wire representation.
func (b *Bookmark) ToModel() models.Bookmark {
	return models.Bookmark{
		ID:        b.ID,
		Title:     b.Title,
		URL:       b.URL,
		UserID:    b.UserID,
		CreatedAt: b.CreatedAt,
	}
}

func NewGormClient(cfg *config.Config, l *zap.SugaredLogger) (*gorm.DB, error) {
	newLogger := logger.New(zap.NewStdLog(l.Desugar()), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DBDriverSQLite:
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the schema, and on postgres the change notification trigger.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return errors.Wrap(err, "migrate user")
	}
	if err := db.AutoMigrate(&Bookmark{}); err != nil {
		return errors.Wrap(err, "migrate bookmark")
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range notifyTriggerSQL {
		if err := db.Exec(stmt).Error; err != nil {
			return errors.Wrap(err, "install notify trigger")
		}
	}
	return nil
}

var notifyTriggerSQL = []string{
	`CREATE OR REPLACE FUNCTION notify_bookmark_change() RETURNS trigger AS $$
BEGIN
	IF TG_OP = 'DELETE' THEN
		PERFORM pg_notify('` + ChangeChannel + `', json_build_object('eventType', TG_OP, 'old', row_to_json(OLD))::text);
		RETURN OLD;
	END IF;
	PERFORM pg_notify('` + ChangeChannel + `', json_build_object(
		'eventType', TG_OP,
		'new', row_to_json(NEW),
		'old', CASE WHEN TG_OP = 'UPDATE' THEN row_to_json(OLD) END
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS bookmarks_notify ON bookmarks`,
	`CREATE TRIGGER bookmarks_notify AFTER INSERT OR UPDATE OR DELETE ON bookmarks
	FOR EACH ROW EXECUTE PROCEDURE notify_bookmark_change()`,
}
