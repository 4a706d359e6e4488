package ingest

import (
	"context"
	"time"

	"github.com/opensource-finance/agencysim/internal/domain"
)

// LeadSource supplies leads from an export.
type LeadSource interface {
	Leads(ctx context.Context) ([]domain.Lead, []string, error)
}

// CustomerSource supplies the customer book from an export.
type CustomerSource interface {
	Customers(ctx context.Context) ([]domain.CustomerRecord, []string, error)
}

// FileSource reads a CSV or HTML export from disk.
type FileSource struct {
	Path     string
	Location *time.Location // zone for timestamps without one; UTC when nil
}

// Leads implements LeadSource.
func (s FileSource) Leads(ctx context.Context) ([]domain.Lead, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	t, err := Open(s.Path)
	if err != nil {
		return nil, nil, err
	}
	return Leads(t, s.Location)
}

// Customers implements CustomerSource.
func (s FileSource) Customers(ctx context.Context) ([]domain.CustomerRecord, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	t, err := Open(s.Path)
	if err != nil {
		return nil, nil, err
	}
	return Customers(t)
}

var (
	_ LeadSource     = FileSource{}
	_ CustomerSource = FileSource{}
)
