package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/adam-a-i/ruya/internal/domain"
)

const (
	trendWindow       = 50
	trendBucket       = 20
	trendMinCalls     = 10
	trendTopObjection = 5
)

// Trend statuses.
const (
	TrendStatusOK               = "ok"
	TrendStatusInsufficientData = "insufficient_data"
)

// LearningTrends compares the conversion of the newest decided calls against
// the ones before them and counts objections from their analyses.
func (s *Service) LearningTrends(ctx context.Context) (*domain.TrendReport, error) {
	calls, err := s.store.ListDecidedCalls(ctx, trendWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	report := &domain.TrendReport{
		TotalCallsAnalyzed: len(calls),
		TopObjections:      []domain.ObjectionCount{},
	}
	if len(calls) < trendMinCalls {
		report.Status = TrendStatusInsufficientData
		return report, nil
	}
	report.Status = TrendStatusOK

	recent := calls[:min(trendBucket, len(calls))]
	older := calls[len(recent):min(2*trendBucket, len(calls))]
	report.RecentConversionRate = bookedShare(recent)
	report.OlderConversionRate = bookedShare(older)
	switch {
	case report.RecentConversionRate > report.OlderConversionRate:
		report.Trend = "improving"
	case report.RecentConversionRate < report.OlderConversionRate:
		report.Trend = "declining"
	default:
		report.Trend = "stable"
	}
	report.TopObjections = topObjections(recent, trendTopObjection)
	return report, nil
}

func bookedShare(calls []domain.CallRecord) float64 {
	booked := 0
	for _, c := range calls {
		if c.Outcome == domain.OutcomeBooked {
			booked++
		}
	}
	return domain.ConversionRate(len(calls), booked)
}

func topObjections(calls []domain.CallRecord, n int) []domain.ObjectionCount {
	counts := map[string]int{}
	for _, c := range calls {
		if len(c.Analysis) == 0 {
			continue
		}
		var a struct {
			Objections []string `json:"objections"`
		}
		if err := json.Unmarshal(c.Analysis, &a); err != nil {
			continue
		}
		for _, o := range a.Objections {
			if key := strings.ToLower(strings.TrimSpace(o)); key != "" {
				counts[key]++
			}
		}
	}

	out := make([]domain.ObjectionCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, domain.ObjectionCount{Objection: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Objection < out[j].Objection
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
