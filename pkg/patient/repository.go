package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the only path to patient rows. Every read is structurally
// scoped to an owning manager; no cross-manager query exists here. Protected
// fields pass through already encrypted, the repository never touches the
// cipher.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

func (r *Repository) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicatePatientID, rec.PatientID)
		}
		return fmt.Errorf("persisting patient record: %w", err)
	}
	return nil
}

// FindByManager pages through one manager's records, newest-first. The
// manager filter is unconditional. Search matches the plaintext patient_id
// only; encrypted columns are opaque to SQL by design.
func (r *Repository) FindByManager(ctx context.Context, managerID, search string, page, limit int) ([]Record, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&Record{}).Where("manager_id = ?", managerID)
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("LOWER(patient_id) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting patient records: %w", err)
	}

	var records []Record
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing patient records: %w", err)
	}

	return records, total, nil
}

// Transaction runs fn in one database transaction. The edit path uses it so
// a record mutation and its trail entry commit or roll back together.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Update applies a prepared column set to one record. Ownership is checked
// before the write; a cross-manager attempt is ErrNotOwner, never a silent
// no-op. The write itself is a single-row atomic update.
func (r *Repository) Update(ctx context.Context, id, managerID string, changes map[string]interface{}) (*Record, error) {
	return r.update(ctx, r.db, id, managerID, changes)
}

// UpdateTx is Update through the caller's transaction handle.
func (r *Repository) UpdateTx(ctx context.Context, tx *gorm.DB, id, managerID string, changes map[string]interface{}) (*Record, error) {
	return r.update(ctx, tx, id, managerID, changes)
}

func (r *Repository) update(ctx context.Context, db *gorm.DB, id, managerID string, changes map[string]interface{}) (*Record, error) {
	var rec Record
	result := db.WithContext(ctx).First(&rec, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("loading patient record: %w", result.Error)
	}
	if rec.ManagerID != managerID {
		return nil, ErrNotOwner
	}

	if len(changes) > 0 {
		changes["updated_at"] = time.Now().UTC()
		err := db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(changes).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("%w", ErrDuplicatePatientID)
			}
			return nil, fmt.Errorf("updating patient record: %w", err)
		}
	}

	if err := db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("reloading patient record: %w", err)
	}
	return &rec, nil
}
