package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrReportNotFound = errors.New("upload report not found")

// ReportStore caches recent upload reports in redis so the UI can poll a
// batch after the upload response is gone. Entries expire on their own; the
// cache is disposable and never authoritative for anything.
type ReportStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportStore(client *redis.Client, ttl time.Duration) *ReportStore {
	return &ReportStore{client: client, ttl: ttl}
}

func reportKey(managerID, batchID string) string {
	return fmt.Sprintf("upload:report:%s:%s", managerID, batchID)
}

func (s *ReportStore) Save(ctx context.Context, managerID string, report *UploadReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling upload report: %w", err)
	}
	return s.client.Set(ctx, reportKey(managerID, report.BatchID), data, s.ttl).Err()
}

// Get is manager-scoped like every other read path: a batch id alone is not
// enough to see another manager's report.
func (s *ReportStore) Get(ctx context.Context, managerID, batchID string) (*UploadReport, error) {
	data, err := s.client.Get(ctx, reportKey(managerID, batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching upload report: %w", err)
	}

	var report UploadReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decoding upload report: %w", err)
	}
	return &report, nil
}
