package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/veeky/veeky-backend/internal/domain"
	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

type VideoRepo interface {
	GetWithRelations(ctx context.Context, tx *gorm.DB, id uint) (*domain.Video, error)
	TitlesByIDs(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]VideoMeta, error)
	UpdateDescription(ctx context.Context, tx *gorm.DB, id uint, description string) error
	// TransitionStatus atomically moves the video from one of the given
	// states to the target state. It reports false when the row was not in
	// any of the expected states, which callers use as an idempotency guard.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from []domain.VideoStatus, to domain.VideoStatus) (bool, error)
}

type VideoMeta struct {
	Title           string
	UploadTimestamp time.Time
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{
		db:  db,
		log: baseLog.With("repo", "VideoRepo"),
	}
}

func (r *videoRepo) GetWithRelations(ctx context.Context, tx *gorm.DB, id uint) (*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var video domain.Video
	err := transaction.WithContext(ctx).
		Preload("Category").
		Preload("Intervals", func(db *gorm.DB) *gorm.DB {
			return db.Order("ordinal ASC, start_second ASC")
		}).
		First(&video, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) TitlesByIDs(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]VideoMeta, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uint]VideoMeta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Video
	err := transaction.WithContext(ctx).
		Select("id", "name", "created_at").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = VideoMeta{Title: row.Name, UploadTimestamp: row.CreatedAt}
	}
	return out, nil
}

func (r *videoRepo) UpdateDescription(ctx context.Context, tx *gorm.DB, id uint, description string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.Video{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"description": description,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *videoRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from []domain.VideoStatus, to domain.VideoStatus) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	query := transaction.WithContext(ctx).
		Model(&domain.Video{}).
		Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	result := query.Updates(map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
