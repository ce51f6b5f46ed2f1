package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrUnavailable wraps storage failures on the trail. Write-path callers
// treat it as fatal for the triggering operation; the read path may degrade
// it to a warning.
var ErrUnavailable = errors.New("audit store unavailable")

// Repository appends to and pages through the trail. There deliberately is
// no update or delete: audit integrity rests on append-only semantics.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Entry{})
}

func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	return r.append(ctx, r.db, entry)
}

// AppendTx writes the entry through the caller's transaction so the trail
// line commits or rolls back together with the mutation it describes.
func (r *Repository) AppendTx(ctx context.Context, tx *gorm.DB, entry *Entry) error {
	return r.append(ctx, tx, entry)
}

func (r *Repository) append(ctx context.Context, db *gorm.DB, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// List returns the principal's entries newest-first. Ordering by
// (timestamp, id) keeps pages stable while new entries keep arriving.
func (r *Repository) List(ctx context.Context, performedBy string, page, limit int) ([]Entry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Model(&Entry{}).Where("performed_by = ?", performedBy)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var entries []Entry
	err := query.
		Order("timestamp DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return entries, total, nil
}
