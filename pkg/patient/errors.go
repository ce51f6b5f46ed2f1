package patient

import "errors"

var (
	// ErrNotFound means no record with the given id exists.
	ErrNotFound = errors.New("patient record not found")
	// ErrNotOwner means the record exists but belongs to another manager.
	ErrNotOwner = errors.New("patient record owned by another manager")
	// ErrDuplicatePatientID means the external patient id is already
	// registered. The constraint is global, not per manager.
	ErrDuplicatePatientID = errors.New("patient_id already registered")
)

// ValidationError marks malformed input: a bad spreadsheet row or an
// unacceptable patch value. Always recoverable at row scope.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ParseError marks a batch-fatal problem with an uploaded file: corrupt
// content, missing required columns, too many rows. Distinct from row-level
// validation failures, which never abort the batch.
type ParseError struct {
	reason error
}

func (e ParseError) Error() string {
	return e.reason.Error()
}

func (e ParseError) Unwrap() error {
	return e.reason
}

func IsParseError(err error) bool {
	var pe ParseError
	return errors.As(err, &pe)
}
