package service

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/feed"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

var (
	ErrLoginUserNotFound         = errors.New("user not found")
	ErrLoginPasswordDoesNotMatch = errors.New("password does not match")
	ErrEmailTaken                = errors.New("email already registered")
	ErrInvalidToken              = errors.New("invalid token")
	ErrBookmarkNotFound          = errors.New("bookmark not found")
)

type General struct {
	db         *gorm.DB
	publisher  feed.Publisher
	logger     *zap.SugaredLogger
	bcryptCost int
}

func NewGeneral(db *gorm.DB, publisher feed.Publisher, l *zap.SugaredLogger) *General {
	return &General{
		db:         db,
		publisher:  publisher,
		logger:     l,
		bcryptCost: 14,
	}
}

// WithBcryptCost lowers hashing cost, for tests.
func (s *General) WithBcryptCost(cost int) *General {
	s.bcryptCost = cost
	return s
}

func (s *General) Register(email, pass string) (string, error) {
	var count int64
	if res := s.db.Model(&db.User{}).Where("email = ?", email).Count(&count); res.Error != nil {
		return "", errors.Wrap(res.Error, "check email")
	}
	if count > 0 {
		return "", ErrEmailTaken
	}

	hash, err := s.bcryptGen(pass)
	if err != nil {
		return "", errors.Wrap(err, "bcryptGen")
	}
	token := uuid.New().String()
	res := s.db.Create(&db.User{
		Email:    email,
		Password: hash,
		Token:    token,
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return "", ErrEmailTaken
		}
		return "", res.Error
	}
	return token, nil
}

func (s *General) Login(email, pass string) (string, error) {
	user := db.User{}
	res := s.db.Where("email = ?", email).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return "", ErrLoginUserNotFound
		}
		return "", res.Error
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return "", ErrLoginPasswordDoesNotMatch
	}

	token := uuid.New().String()
	res = s.db.Model(&user).Update("token", token)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "update token")
	}

	return token, nil
}

// Logout invalidates the user's current token by rotating it to a value nobody holds.
func (s *General) Logout(user *db.User) error {
	res := s.db.Model(user).Update("token", uuid.New().String())
	if res.Error != nil {
		return errors.Wrap(res.Error, "rotate token")
	}
	return nil
}

func (s *General) UserByToken(token string) (*db.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user := db.User{}
	res := s.db.Where("token = ?", token).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(res.Error, "find user")
	}
	return &user, nil
}

// BookmarkList returns the owner's bookmarks, newest first.
func (s *General) BookmarkList(userID uint64) ([]models.Bookmark, error) {
	sql, args, err := squirrel.
		Select("b.id", "b.title", "b.url", "b.user_id", "b.created_at").From("bookmarks b").
		Where(squirrel.Eq{"b.user_id": userID}).
		OrderBy("b.created_at DESC", "b.id DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]db.Bookmark, 0)
	res := s.db.Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	bookmarks := make([]models.Bookmark, len(rows))
	for i := range rows {
		bookmarks[i] = rows[i].ToModel()
	}
	return bookmarks, nil
}

func (s *General) BookmarkCreate(ctx context.Context, userID uint64, title, url string) (*models.Bookmark, error) {
	model := db.Bookmark{
		Title:  title,
		URL:    url,
		UserID: userID,
	}

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create bookmark")
	}

	created := model.ToModel()
	s.publish(ctx, models.Change{EventType: models.EventInsert, New: &created})
	return &created, nil
}

func (s *General) BookmarkDelete(ctx context.Context, userID, id uint64) error {
	model := db.Bookmark{}
	res := s.db.Where("id = ? AND user_id = ?", id, userID).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrBookmarkNotFound
		}
		return errors.Wrap(res.Error, "find bookmark")
	}

	res = s.db.Where("user_id = ?", userID).Delete(&db.Bookmark{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete bookmark")
	}
	if res.RowsAffected == 0 {
		return ErrBookmarkNotFound
	}

	deleted := model.ToModel()
	s.publish(ctx, models.Change{EventType: models.EventDelete, Old: &deleted})
	return nil
}

// publish failures are logged, not returned: the row change is already committed.
func (s *General) publish(ctx context.Context, change models.Change) {
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Errorw("publish change", "event", change.EventType, "error", err)
	}
}

func (s *General) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), s.bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *General) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
