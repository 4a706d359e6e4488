package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/opensource-finance/agencysim/internal/domain"
)

// byteStore is the raw key/value surface every cache implementation shares.
type byteStore interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
}

func reportKey(reportID string) string {
	return "report:" + reportID
}

func getReport(ctx context.Context, s byteStore, tenantID, reportID string) (*domain.ComprehensiveReport, error) {
	data, err := s.Get(ctx, tenantID, reportKey(reportID))
	if err != nil || data == nil {
		return nil, err
	}

	var report domain.ComprehensiveReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func setReport(ctx context.Context, s byteStore, tenantID string, report *domain.ComprehensiveReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.Set(ctx, tenantID, reportKey(report.ID), data, ttl)
}
