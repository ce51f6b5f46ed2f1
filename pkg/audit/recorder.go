package audit

import (
	"context"

	"github.com/KashishBagga/pamm/pkg/common/kafka"
	"github.com/KashishBagga/pamm/pkg/common/logger"
	"github.com/KashishBagga/pamm/pkg/observability/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is a pending trail entry from a caller's point of view.
type Event struct {
	Action          string
	PerformedBy     string
	PatientRecordID string
	Details         string
	Metadata        map[string]interface{}
	ClientIP        string
}

// Recorder turns events into persisted entries. The database append is the
// compliance guarantee; the optional kafka copy is best-effort and its
// failure only warns.
type Recorder struct {
	repo      *Repository
	producer  *kafka.Producer
	sanitizer *Sanitizer
}

func NewRecorder(repo *Repository, producer *kafka.Producer, sanitizer *Sanitizer) *Recorder {
	return &Recorder{repo: repo, producer: producer, sanitizer: sanitizer}
}

// Record appends the entry and propagates append failure. UPLOAD and EDIT
// paths call this so a mutation without its trail line cannot commit the
// caller's success response.
func (r *Recorder) Record(ctx context.Context, event Event) (*Entry, error) {
	entry := r.buildEntry(event)
	if err := r.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	r.Publish(ctx, entry)
	return entry, nil
}

// RecordTx stages the entry inside the caller's transaction, so the trail
// line and the mutation it describes commit as one unit. No stream copy
// happens here: the caller publishes after the transaction commits, and a
// rolled-back mutation never reaches the stream.
func (r *Recorder) RecordTx(ctx context.Context, tx *gorm.DB, event Event) (*Entry, error) {
	entry := r.buildEntry(event)
	if err := r.repo.AppendTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordBestEffort is Record with the failure policy of the read path:
// ACCESS logging must not take reads down with the audit store.
func (r *Recorder) RecordBestEffort(ctx context.Context, event Event) {
	entry := r.buildEntry(event)
	if err := r.repo.Append(ctx, entry); err != nil {
		metrics.ObserveAuditDropped()
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"action":       event.Action,
			"performed_by": event.PerformedBy,
		}).Warn("access audit entry dropped")
		return
	}
	r.Publish(ctx, entry)
}

func (r *Recorder) buildEntry(event Event) *Entry {
	entry := &Entry{
		Action:      event.Action,
		PerformedBy: event.PerformedBy,
		Details:     r.sanitizer.Scrub(event.Details),
		ClientIP:    event.ClientIP,
	}
	if event.PatientRecordID != "" {
		id := event.PatientRecordID
		entry.PatientRecordID = &id
	}
	if len(event.Metadata) > 0 {
		metadata := make(datatypes.JSONMap, len(event.Metadata))
		for key, value := range event.Metadata {
			if text, ok := value.(string); ok {
				metadata[key] = r.sanitizer.Scrub(text)
				continue
			}
			metadata[key] = value
		}
		entry.Metadata = metadata
	}
	return entry
}

// Publish sends the best-effort stream copy of an already-persisted entry.
// Failure only warns.
func (r *Recorder) Publish(ctx context.Context, entry *Entry) {
	if r.producer == nil {
		return
	}

	event := kafka.AuditEvent{
		ID:          entry.ID,
		Action:      entry.Action,
		PerformedBy: entry.PerformedBy,
		Details:     entry.Details,
		Metadata:    entry.Metadata,
		ClientIP:    entry.ClientIP,
		Timestamp:   entry.Timestamp,
	}
	if entry.PatientRecordID != nil {
		event.PatientRecordID = *entry.PatientRecordID
	}

	if err := r.producer.PublishAuditEvent(ctx, event); err != nil {
		logger.Log.WithError(err).Warn("audit stream copy dropped")
	}
}
