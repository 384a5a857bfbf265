// Package analytics surfaces search-log aggregates for the admin API.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/lattice-vc/scout/internal/repository/searchlog"
)

// LogReader reads the persisted search log.
type LogReader interface {
	Recent(ctx context.Context, limit int) ([]searchlog.Entry, error)
	SegmentUsage(ctx context.Context, since time.Time) ([]searchlog.SegmentUsage, error)
}

// Report is the admin analytics payload.
type Report struct {
	Window       time.Duration
	SegmentUsage []searchlog.SegmentUsage
	Recent       []searchlog.Entry
}

// Service aggregates search analytics.
type Service struct {
	logs   LogReader
	window time.Duration
}

// New creates an analytics service. window bounds the usage aggregation.
func New(logs LogReader, window time.Duration) *Service {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &Service{logs: logs, window: window}
}

// Report builds the analytics report: per-segment filter usage over the
// window plus the most recent searches.
func (s *Service) Report(ctx context.Context, recentLimit int) (Report, error) {
	usage, err := s.logs.SegmentUsage(ctx, time.Now().Add(-s.window))
	if err != nil {
		return Report{}, fmt.Errorf("aggregate segment usage: %w", err)
	}
	recent, err := s.logs.Recent(ctx, recentLimit)
	if err != nil {
		return Report{}, fmt.Errorf("read recent searches: %w", err)
	}
	return Report{Window: s.window, SegmentUsage: usage, Recent: recent}, nil
}
