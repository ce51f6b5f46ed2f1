package patient

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRowValidatorRejectsBadRows(t *testing.T) {
	validator := NewRowValidator(DefaultPolicy())

	base := Row{Line: 2, PatientID: "PT-001", FirstName: "Jane", LastName: "Doe", DateOfBirth: "1990-05-14", Gender: "Female"}

	cases := []struct {
		name   string
		mutate func(Row) Row
		ok     bool
	}{
		{"valid row", func(r Row) Row { return r }, true},
		{"missing patient id", func(r Row) Row { r.PatientID = "  "; return r }, false},
		{"missing first name", func(r Row) Row { r.FirstName = ""; return r }, false},
		{"missing last name", func(r Row) Row { r.LastName = ""; return r }, false},
		{"empty dob", func(r Row) Row { r.DateOfBirth = ""; return r }, false},
		{"nonsense dob", func(r Row) Row { r.DateOfBirth = "not-a-date"; return r }, false},
		{"impossible calendar date", func(r Row) Row { r.DateOfBirth = "1990-02-30"; return r }, false},
		{"future dob", func(r Row) Row { r.DateOfBirth = "2999-01-01"; return r }, false},
		{"us format dob", func(r Row) Row { r.DateOfBirth = "05/14/1990"; return r }, true},
		{"gender outside closed set", func(r Row) Row { r.Gender = "yes"; return r }, false},
		{"gender case-insensitive", func(r Row) Row { r.Gender = "MALE"; return r }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.mutate(base))
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				if !IsValidationError(err) {
					t.Fatalf("error %v is not a ValidationError", err)
				}
			}
		})
	}
}

func TestRowValidatorCanonicalises(t *testing.T) {
	validator := NewRowValidator(DefaultPolicy())

	row, err := validator.Validate(Row{Line: 2, PatientID: " PT-001 ", FirstName: " Jane ", LastName: "Doe", DateOfBirth: "05/14/1990", Gender: "FEMALE"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if row.PatientID != "PT-001" || row.FirstName != "Jane" {
		t.Fatalf("fields not trimmed: %+v", row)
	}
	if row.DateOfBirth != "1990-05-14" {
		t.Fatalf("dob = %q, want 1990-05-14", row.DateOfBirth)
	}
	if row.Gender != "female" {
		t.Fatalf("gender = %q, want female", row.Gender)
	}
}

func TestLoadPolicyFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := []byte("max_rows: 50\ngenders:\n  - male\n  - female\ndate_layouts:\n  - \"2006-01-02\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if policy.MaxRows != 50 || len(policy.Genders) != 2 || len(policy.DateLayouts) != 1 {
		t.Fatalf("unexpected policy: %+v", policy)
	}

	validator := NewRowValidator(policy)
	if _, err := validator.Validate(Row{Line: 2, PatientID: "PT-1", FirstName: "A", LastName: "B", DateOfBirth: "1990-05-14", Gender: "other"}); err == nil {
		t.Fatal("gender outside the configured set should fail")
	}
}

func TestLoadPolicyDefaultsWhenUnset(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if policy.MaxRows != 10000 || len(policy.Genders) == 0 || len(policy.DateLayouts) == 0 {
		t.Fatalf("unexpected default policy: %+v", policy)
	}
}
