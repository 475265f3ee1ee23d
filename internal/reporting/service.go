// Package reporting exposes the dashboard aggregates. Revenue always means
// the sum of finalAmount over orders that are not cancelled.
package reporting

import (
	"context"
	"strings"
	"time"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	dateOnly = "2006-01-02"
)

type Service struct {
	reports store.ReportRepository
	loc     *time.Location
}

// NewService reads reports from st. loc is the shop time zone used for
// date-only bounds and revenue buckets; nil means UTC.
func NewService(st store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{reports: st.Reports(), loc: loc}
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// ParseRange reads optional startDate/endDate values given as YYYY-MM-DD or
// RFC 3339. A date-only end covers that whole day.
func (s *Service) ParseRange(start, end string) (domain.DateRange, error) {
	var r domain.DateRange
	if v := strings.TrimSpace(start); v != "" {
		t, _, err := s.parseBound(v)
		if err != nil {
			return r, domain.Validationf("invalid startDate %q", v)
		}
		r.Start = &t
	}
	if v := strings.TrimSpace(end); v != "" {
		t, dayOnly, err := s.parseBound(v)
		if err != nil {
			return r, domain.Validationf("invalid endDate %q", v)
		}
		if dayOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return r, domain.Validationf("startDate must not be after endDate")
	}
	return r, nil
}

func (s *Service) parseBound(v string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateOnly, v, s.loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

func (s *Service) OrderStats(ctx context.Context, r domain.DateRange) (domain.OrderStats, error) {
	return s.reports.OrderStats(ctx, r)
}

func (s *Service) BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error) {
	return s.reports.BestSelling(ctx, clampLimit(limit))
}

func (s *Service) RevenueByPeriod(ctx context.Context, p domain.Period, r domain.DateRange) ([]domain.RevenueBucket, error) {
	if p == "" {
		p = domain.PeriodDay
	}
	if !p.Valid() {
		return nil, domain.Validationf("invalid period %q", p)
	}
	return s.reports.RevenueByPeriod(ctx, p, r, s.loc)
}

func (s *Service) CustomerStats(ctx context.Context, top int) (domain.CustomerStatsReport, error) {
	return s.reports.CustomerStats(ctx, clampLimit(top))
}
