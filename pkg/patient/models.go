package patient

import "time"

// Record is the persisted shape. The four protected fields hold Field
// Cipher blobs; they are never written or read in plaintext by this layer.
// PatientID is the external business identifier, kept plaintext because it
// is the search and uniqueness key, not a protected field.
type Record struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	PatientID   string    `json:"patient_id" gorm:"column:patient_id;uniqueIndex"`
	FirstName   string    `json:"-" gorm:"column:first_name"`
	LastName    string    `json:"-" gorm:"column:last_name"`
	DateOfBirth string    `json:"-" gorm:"column:date_of_birth"`
	Gender      string    `json:"-" gorm:"column:gender"`
	ManagerID   string    `json:"manager_id" gorm:"column:manager_id;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "patients"
}

// View is the plaintext-shaped record handed to callers. It exists only in
// memory for the lifetime of one response.
type View struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
