package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KashishBagga/pamm/pkg/audit"
	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/crypto"
	"github.com/KashishBagga/pamm/pkg/observability/metrics"
	"gorm.io/gorm"
)

// Service is the access mediator: the one place where the decryption key
// and plaintext protected fields coexist, and only for the span of a single
// request. Everything it returns is built fresh per call; nothing plaintext
// is retained or logged.
type Service struct {
	repo      *Repository
	keyring   crypto.Keyring
	recorder  *audit.Recorder
	validator *RowValidator
}

func NewService(repo *Repository, keyring crypto.Keyring, recorder *audit.Recorder, validator *RowValidator) *Service {
	return &Service{repo: repo, keyring: keyring, recorder: recorder, validator: validator}
}

type ListResult struct {
	Records   []View
	Total     int64
	Corrupted int
}

// List returns one page of the manager's records, decrypted. A record whose
// blob fails authentication is dropped from the page rather than failing the
// call: fail-closed per record, not per request. One ACCESS entry covers the
// whole call; its loss never fails a read.
func (s *Service) List(ctx context.Context, managerID, search string, page, limit int) (*ListResult, error) {
	records, total, err := s.repo.FindByManager(ctx, managerID, search, page, limit)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Records: make([]View, 0, len(records)), Total: total}
	for i := range records {
		view, err := s.decrypt(&records[i])
		if err != nil {
			result.Corrupted++
			metrics.ObserveIntegrityFailure()
			logger.Log.WithFields(map[string]interface{}{
				"record_id":  records[i].ID,
				"manager_id": managerID,
			}).Error("stored record failed integrity check, omitted from response")
			continue
		}
		result.Records = append(result.Records, *view)
	}

	metrics.ObserveList()
	s.recorder.RecordBestEffort(ctx, audit.Event{
		Action:      audit.ActionAccess,
		PerformedBy: managerID,
		Details:     "Accessed patient list",
		Metadata: map[string]interface{}{
			"page":      page,
			"limit":     limit,
			"search":    search,
			"returned":  len(result.Records),
			"corrupted": result.Corrupted,
		},
		ClientIP: "internal",
	})

	return result, nil
}

// UpdatePatch is a partial edit: nil means leave the field alone. PatientID
// is the one non-protected field editable here.
type UpdatePatch struct {
	PatientID   *string `json:"patient_id"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
}

// Update re-encrypts exactly the supplied fields and writes them through the
// repository's ownership check. The EDIT entry names the changed fields,
// never their values, and must land for the edit to succeed.
func (s *Service) Update(ctx context.Context, managerID, recordID string, patch UpdatePatch, clientIP string) (*View, error) {
	changes := make(map[string]interface{})
	var changed []string

	if patch.PatientID != nil {
		id := strings.TrimSpace(*patch.PatientID)
		if id == "" {
			return nil, ValidationError{reason: errMissingPatientID}
		}
		changes["patient_id"] = id
		changed = append(changed, "patient_id")
	}
	if patch.FirstName != nil {
		if *patch.FirstName == "" {
			return nil, ValidationError{reason: errMissingFirstName}
		}
		if err := s.stageEncrypted(changes, "first_name", *patch.FirstName); err != nil {
			return nil, err
		}
		changed = append(changed, "first_name")
	}
	if patch.LastName != nil {
		if *patch.LastName == "" {
			return nil, ValidationError{reason: errMissingLastName}
		}
		if err := s.stageEncrypted(changes, "last_name", *patch.LastName); err != nil {
			return nil, err
		}
		changed = append(changed, "last_name")
	}
	if patch.DateOfBirth != nil {
		dob, err := s.validator.ParseDate(*patch.DateOfBirth)
		if err != nil {
			return nil, err
		}
		if err := s.stageEncrypted(changes, "date_of_birth", dob); err != nil {
			return nil, err
		}
		changed = append(changed, "date_of_birth")
	}
	if patch.Gender != nil {
		gender := strings.TrimSpace(strings.ToLower(*patch.Gender))
		if !s.validator.ValidGender(gender) {
			return nil, ValidationError{reason: fmt.Errorf("%w: %q", errBadGender, *patch.Gender)}
		}
		if err := s.stageEncrypted(changes, "gender", gender); err != nil {
			return nil, err
		}
		changed = append(changed, "gender")
	}

	if len(changed) == 0 {
		return nil, ValidationError{reason: errors.New("no fields to update")}
	}

	// The mutation and its trail line commit as one transaction: a failed
	// audit append rolls the edit back, never leaving an unaudited change.
	var rec *Record
	var entry *audit.Entry
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		rec, err = s.repo.UpdateTx(ctx, tx, recordID, managerID, changes)
		if err != nil {
			return err
		}
		entry, err = s.recorder.RecordTx(ctx, tx, audit.Event{
			Action:          audit.ActionEdit,
			PerformedBy:     managerID,
			PatientRecordID: rec.ID,
			Details:         "Edited patient record",
			Metadata:        map[string]interface{}{"fields": changed},
			ClientIP:        clientIP,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Publish(ctx, entry)
	metrics.ObserveEdit()
	return s.decrypt(rec)
}

func (s *Service) stageEncrypted(changes map[string]interface{}, column, plaintext string) error {
	blob, err := s.keyring.EncryptString(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", column, err)
	}
	changes[column] = blob
	return nil
}

func (s *Service) decrypt(rec *Record) (*View, error) {
	firstName, err := s.keyring.DecryptString(rec.FirstName)
	if err != nil {
		return nil, err
	}
	lastName, err := s.keyring.DecryptString(rec.LastName)
	if err != nil {
		return nil, err
	}
	dateOfBirth, err := s.keyring.DecryptString(rec.DateOfBirth)
	if err != nil {
		return nil, err
	}
	gender, err := s.keyring.DecryptString(rec.Gender)
	if err != nil {
		return nil, err
	}

	return &View{
		ID:          rec.ID,
		PatientID:   rec.PatientID,
		FirstName:   firstName,
		LastName:    lastName,
		DateOfBirth: dateOfBirth,
		Gender:      gender,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}
