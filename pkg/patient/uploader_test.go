package patient

import (
	"context"
	"strings"
	"testing"

	"github.com/KashishBagga/pamm/pkg/audit"
)

func newTestUploader(t *testing.T) (*Uploader, *Repository, *audit.Repository) {
	t.Helper()
	db := testDB(t)
	repo := NewRepository(db)
	recorder, auditRepo := testRecorder(t, db)
	validator := NewRowValidator(DefaultPolicy())
	uploader := NewUploader(repo, testKeyring(t), recorder, validator, nil, 1000)
	return uploader, repo, auditRepo
}

func TestUploadAggregatesPartialFailures(t *testing.T) {
	uploader, _, auditRepo := newTestUploader(t)
	ctx := context.Background()

	content := csvHeader +
		"PT-001,Jane,Doe,1990-05-14,female\n" + // row 2: ok
		"PT-002,John,Smith,31-31-1985,male\n" + // row 3: bad date
		"PT-003,,Brown,1972-01-09,male\n" + // row 4: missing first name
		"PT-001,Dup,Doe,1990-05-14,female\n" + // row 5: duplicate patient id
		"PT-004,Ann,Lee,1968-07-23,nonbinary?\n" + // row 6: gender outside set
		"PT-005,Sam,Rae,2001-12-31,other\n" // row 7: ok

	report, err := uploader.Upload(ctx, "mgr-a", "patients.csv", strings.NewReader(content), "10.0.0.1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if report.TotalRows != 6 {
		t.Fatalf("total rows = %d, want 6", report.TotalRows)
	}
	if report.ProcessedCount != 2 {
		t.Fatalf("processed = %d, want 2", report.ProcessedCount)
	}
	if len(report.Errors) != 4 {
		t.Fatalf("errors = %d, want 4", len(report.Errors))
	}

	wantRows := []int{3, 4, 5, 6}
	for i, rowErr := range report.Errors {
		if rowErr.Row != wantRows[i] {
			t.Fatalf("error %d points at row %d, want %d", i, rowErr.Row, wantRows[i])
		}
	}

	// Exactly one UPLOAD entry regardless of row count.
	entries, total, err := auditRepo.List(ctx, "mgr-a", 1, 10)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if total != 1 || entries[0].Action != audit.ActionUpload {
		t.Fatalf("got %d entries (first action %q), want one UPLOAD", total, entries[0].Action)
	}
	if entries[0].Metadata["processed"] != float64(2) && entries[0].Metadata["processed"] != int64(2) && entries[0].Metadata["processed"] != 2 {
		t.Fatalf("upload metadata processed = %v", entries[0].Metadata["processed"])
	}
}

func TestUploadStoresOnlyCiphertext(t *testing.T) {
	uploader, repo, _ := newTestUploader(t)
	ctx := context.Background()

	content := csvHeader + "PT-001,Jane,Doe,1990-05-14,female\n"
	if _, err := uploader.Upload(ctx, "mgr-a", "patients.csv", strings.NewReader(content), "10.0.0.1"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	records, _, err := repo.FindByManager(ctx, "mgr-a", "", 1, 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	rec := records[0]
	if rec.PatientID != "PT-001" {
		t.Fatalf("patient_id = %q, want plaintext PT-001", rec.PatientID)
	}
	for field, blob := range map[string]string{
		"first_name":    rec.FirstName,
		"last_name":     rec.LastName,
		"date_of_birth": rec.DateOfBirth,
		"gender":        rec.Gender,
	} {
		for _, plaintext := range []string{"Jane", "Doe", "1990-05-14", "female"} {
			if strings.Contains(blob, plaintext) {
				t.Fatalf("%s stores plaintext %q", field, plaintext)
			}
		}
	}
}

func TestUploadEncryptsSamePlaintextDistinctly(t *testing.T) {
	uploader, repo, _ := newTestUploader(t)
	ctx := context.Background()

	content := csvHeader +
		"PT-001,Jane,Doe,1990-05-14,female\n" +
		"PT-002,Jane,Doe,1990-05-14,female\n"
	if _, err := uploader.Upload(ctx, "mgr-a", "patients.csv", strings.NewReader(content), "10.0.0.1"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	records, _, err := repo.FindByManager(ctx, "mgr-a", "", 1, 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if records[0].FirstName == records[1].FirstName {
		t.Fatal("identical plaintext produced identical blobs across rows")
	}
}

func TestUploadParseFailureIsBatchFatal(t *testing.T) {
	uploader, repo, auditRepo := newTestUploader(t)
	ctx := context.Background()

	_, err := uploader.Upload(ctx, "mgr-a", "patients.csv", strings.NewReader("Wrong,Header\nx,y\n"), "10.0.0.1")
	if err == nil || !IsParseError(err) {
		t.Fatalf("got err %v, want ParseError", err)
	}

	if _, total, _ := repo.FindByManager(ctx, "mgr-a", "", 1, 10); total != 0 {
		t.Fatalf("fatal parse persisted %d records", total)
	}
	if _, total, _ := auditRepo.List(ctx, "mgr-a", 1, 10); total != 0 {
		t.Fatalf("fatal parse wrote %d audit entries", total)
	}
}

func TestUploadKeepsRowOrderAcrossManagersIndependently(t *testing.T) {
	uploader, _, _ := newTestUploader(t)
	ctx := context.Background()

	// Same patient ids from a second manager still collide: uniqueness is
	// global, recorded as row errors for the later batch.
	content := csvHeader + "PT-001,Jane,Doe,1990-05-14,female\n"
	if _, err := uploader.Upload(ctx, "mgr-a", "patients.csv", strings.NewReader(content), "10.0.0.1"); err != nil {
		t.Fatalf("first upload: %v", err)
	}

	report, err := uploader.Upload(ctx, "mgr-b", "patients.csv", strings.NewReader(content), "10.0.0.2")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if report.ProcessedCount != 0 || len(report.Errors) != 1 || report.Errors[0].Row != 2 {
		t.Fatalf("unexpected report for colliding batch: %+v", report)
	}
}
