package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errMissingPatientID = errors.New("patient id is required")
	errMissingFirstName = errors.New("first name is required")
	errMissingLastName  = errors.New("last name is required")
	errBadDateOfBirth   = errors.New("date of birth is not a valid calendar date")
	errFutureDate       = errors.New("date of birth is in the future")
	errBadGender        = errors.New("gender is not in the accepted set")
)

// RowValidator checks one parsed row against the upload policy. Validate
// also canonicalises: the date of birth is normalised to ISO 2006-01-02 and
// gender to lower case before encryption, so stored values compare stably
// across upload formats.
type RowValidator struct {
	genders map[string]struct{}
	layouts []string
}

func NewRowValidator(policy UploadPolicy) *RowValidator {
	genders := make(map[string]struct{}, len(policy.Genders))
	for _, g := range policy.Genders {
		if trimmed := strings.TrimSpace(strings.ToLower(g)); trimmed != "" {
			genders[trimmed] = struct{}{}
		}
	}
	return &RowValidator{genders: genders, layouts: policy.DateLayouts}
}

func (v *RowValidator) Validate(row Row) (Row, error) {
	if strings.TrimSpace(row.PatientID) == "" {
		return row, ValidationError{reason: errMissingPatientID}
	}
	if strings.TrimSpace(row.FirstName) == "" {
		return row, ValidationError{reason: errMissingFirstName}
	}
	if strings.TrimSpace(row.LastName) == "" {
		return row, ValidationError{reason: errMissingLastName}
	}

	dob, err := v.ParseDate(row.DateOfBirth)
	if err != nil {
		return row, err
	}

	gender := strings.TrimSpace(strings.ToLower(row.Gender))
	if _, ok := v.genders[gender]; !ok {
		return row, ValidationError{reason: fmt.Errorf("%w: %q", errBadGender, row.Gender)}
	}

	row.PatientID = strings.TrimSpace(row.PatientID)
	row.FirstName = strings.TrimSpace(row.FirstName)
	row.LastName = strings.TrimSpace(row.LastName)
	row.DateOfBirth = dob
	row.Gender = gender
	return row, nil
}

// ParseDate tries the policy's layouts in order and returns the ISO form.
func (v *RowValidator) ParseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ValidationError{reason: errBadDateOfBirth}
	}

	for _, layout := range v.layouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if parsed.After(time.Now()) {
			return "", ValidationError{reason: errFutureDate}
		}
		return parsed.Format("2006-01-02"), nil
	}
	return "", ValidationError{reason: fmt.Errorf("%w: %q", errBadDateOfBirth, raw)}
}

// ValidGender reports whether the value is acceptable on an edit.
func (v *RowValidator) ValidGender(raw string) bool {
	_, ok := v.genders[strings.TrimSpace(strings.ToLower(raw))]
	return ok
}
