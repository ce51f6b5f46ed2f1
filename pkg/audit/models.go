package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions. DELETE has no endpoint yet but is part of the recorded
// vocabulary so historical entries stay interpretable if one is added.
const (
	ActionUpload = "UPLOAD"
	ActionEdit   = "EDIT"
	ActionAccess = "ACCESS"
	ActionDelete = "DELETE"
)

// Entry is one immutable line of the compliance trail. Details and Metadata
// carry operation metadata only; decrypted field values never appear here.
type Entry struct {
	ID              string            `json:"id" gorm:"primaryKey;column:id"`
	Action          string            `json:"action" gorm:"column:action;index"`
	PerformedBy     string            `json:"performed_by" gorm:"column:performed_by;index"`
	PatientRecordID *string           `json:"patient_record_id,omitempty" gorm:"column:patient_record_id"`
	Details         string            `json:"details,omitempty" gorm:"column:details"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	ClientIP        string            `json:"client_ip,omitempty" gorm:"column:client_ip"`
	Timestamp       time.Time         `json:"timestamp" gorm:"column:timestamp;index"`
}

func (Entry) TableName() string {
	return "patient_audit_logs"
}
