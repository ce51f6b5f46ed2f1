package patient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/KashishBagga/pamm/pkg/audit"
	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/crypto"
	"github.com/KashishBagga/pamm/pkg/observability/metrics"
	"github.com/google/uuid"
)

// RowError ties a failure reason to the 1-based row in the original file.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// UploadReport is the terminal aggregate of one batch.
type UploadReport struct {
	BatchID        string     `json:"batch_id"`
	TotalRows      int        `json:"total_rows"`
	ProcessedCount int        `json:"processed_count"`
	Errors         []RowError `json:"errors"`
	UploadedAt     time.Time  `json:"uploaded_at"`
}

// Uploader drives one batch: parse, then per row validate, encrypt and
// insert, in file order. Row failures are collected and processing moves
// on; only parse-level problems, storage loss or a failed UPLOAD audit
// write abort the batch. Rows committed before an abort stay committed.
type Uploader struct {
	repo      *Repository
	keyring   crypto.Keyring
	recorder  *audit.Recorder
	validator *RowValidator
	reports   *ReportStore
	maxRows   int
}

func NewUploader(repo *Repository, keyring crypto.Keyring, recorder *audit.Recorder, validator *RowValidator, reports *ReportStore, maxRows int) *Uploader {
	return &Uploader{
		repo:      repo,
		keyring:   keyring,
		recorder:  recorder,
		validator: validator,
		reports:   reports,
		maxRows:   maxRows,
	}
}

func (u *Uploader) Upload(ctx context.Context, managerID, filename string, r io.Reader, clientIP string) (*UploadReport, error) {
	rows, err := ParseSheet(filename, r, u.maxRows)
	if err != nil {
		return nil, err
	}

	report := &UploadReport{
		BatchID:    uuid.New().String(),
		TotalRows:  len(rows),
		Errors:     []RowError{},
		UploadedAt: time.Now().UTC(),
	}

	for _, raw := range rows {
		row, err := u.validator.Validate(raw)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: raw.Line, Reason: err.Error()})
			continue
		}

		rec, err := u.encryptRow(row, managerID)
		if err != nil {
			return nil, err
		}

		if err := u.repo.Insert(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicatePatientID) {
				report.Errors = append(report.Errors, RowError{Row: row.Line, Reason: err.Error()})
				continue
			}
			// Storage loss is not a row problem. Abort; committed rows stay.
			return nil, err
		}
		report.ProcessedCount++
	}

	// Exactly one UPLOAD entry per batch, and the batch does not succeed
	// without it.
	if _, err := u.recorder.Record(ctx, audit.Event{
		Action:      audit.ActionUpload,
		PerformedBy: managerID,
		Details:     fmt.Sprintf("Uploaded %d patients from spreadsheet", report.ProcessedCount),
		Metadata: map[string]interface{}{
			"batch_id":   report.BatchID,
			"total_rows": report.TotalRows,
			"processed":  report.ProcessedCount,
			"failed":     len(report.Errors),
		},
		ClientIP: clientIP,
	}); err != nil {
		return nil, err
	}

	metrics.ObserveUpload(report.ProcessedCount, len(report.Errors))

	if u.reports != nil {
		if err := u.reports.Save(ctx, managerID, report); err != nil {
			logger.Log.WithError(err).WithField("batch_id", report.BatchID).Warn("upload report not cached")
		}
	}

	return report, nil
}

func (u *Uploader) encryptRow(row Row, managerID string) (*Record, error) {
	firstName, err := u.keyring.EncryptString(row.FirstName)
	if err != nil {
		return nil, fmt.Errorf("encrypting first name: %w", err)
	}
	lastName, err := u.keyring.EncryptString(row.LastName)
	if err != nil {
		return nil, fmt.Errorf("encrypting last name: %w", err)
	}
	dateOfBirth, err := u.keyring.EncryptString(row.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("encrypting date of birth: %w", err)
	}
	gender, err := u.keyring.EncryptString(row.Gender)
	if err != nil {
		return nil, fmt.Errorf("encrypting gender: %w", err)
	}

	return &Record{
		PatientID:   row.PatientID,
		FirstName:   firstName,
		LastName:    lastName,
		DateOfBirth: dateOfBirth,
		Gender:      gender,
		ManagerID:   managerID,
	}, nil
}
