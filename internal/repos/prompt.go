package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

type PromptRepo interface {
	// ActiveTemplate returns the most recently updated active template for
	// the purpose, or "" when none is configured.
	ActiveTemplate(ctx context.Context, tx *gorm.DB, purpose string) (string, error)
}

type promptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptRepo(db *gorm.DB, baseLog *logger.Logger) PromptRepo {
	return &promptRepo{
		db:  db,
		log: baseLog.With("repo", "PromptRepo"),
	}
}

func (r *promptRepo) ActiveTemplate(ctx context.Context, tx *gorm.DB, purpose string) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var prompt domain.Prompt
	err := transaction.WithContext(ctx).
		Where("purpose = ? AND is_active = ?", purpose, true).
		Order("updated_at DESC").
		Limit(1).
		Find(&prompt).Error
	if err != nil {
		return "", err
	}
	return prompt.Template, nil
}
