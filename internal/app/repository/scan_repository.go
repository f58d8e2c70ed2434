package repository

import (
	"context"

	"github.com/mkteagle/teaglink/internal/app/model"
	"gorm.io/gorm"
)

// ScanRepository defines the data access contract for scan events. Writes are
// append-only; events only disappear when their link is deleted.
type ScanRepository interface {
	Create(ctx context.Context, event *model.ScanEvent) error
	ListByLinkID(ctx context.Context, linkID string) ([]model.ScanEvent, error)
	CountByLinkID(ctx context.Context, linkID string) (int64, error)
	DeleteByLinkID(ctx context.Context, linkID string) (int64, error)
}

type scanRepository struct {
	db *gorm.DB
}

// NewScanRepository returns a GORM-backed ScanRepository.
func NewScanRepository(db *gorm.DB) ScanRepository {
	return &scanRepository{db: db}
}

func (r *scanRepository) Create(ctx context.Context, event *model.ScanEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *scanRepository) ListByLinkID(ctx context.Context, linkID string) ([]model.ScanEvent, error) {
	var events []model.ScanEvent
	if err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("timestamp DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *scanRepository) CountByLinkID(ctx context.Context, linkID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ScanEvent{}).
		Where("link_id = ?", linkID).
		Count(&count).Error
	return count, err
}

func (r *scanRepository) DeleteByLinkID(ctx context.Context, linkID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Delete(&model.ScanEvent{})
	return result.RowsAffected, result.Error
}
