package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"
)

const (
	riskWindowDays = 14
	// volumeSpikeRatio flags a category whose trailing-7-day volume exceeds
	// this multiple of the prior 7 days.
	volumeSpikeRatio = 1.4
	// volumeSpikeFloor keeps nearly-zero baselines from producing noise flags.
	volumeSpikeFloor = 3000.0
	highStreakLimit  = 3
	restDeficitDays  = 6
)

// RiskService scans recent history for heuristic safety signals. The output
// is advisory context for the LLM, never a hard gate; all checks are
// independent and may fire together.
type RiskService interface {
	DetectRisk(ctx context.Context, userID string) ([]string, error)
}

// riskService implements the RiskService interface.
type riskService struct {
	records repository.TrainingRecordRepository
	loc     *time.Location
	now     func() time.Time
}

// NewRiskService creates a new instance of riskService.
func NewRiskService(records repository.TrainingRecordRepository, loc *time.Location) RiskService {
	if loc == nil {
		loc = time.Local
	}
	return &riskService{
		records: records,
		loc:     loc,
		now:     time.Now,
	}
}

// DetectRisk runs the three checks over the last 14 days of records.
func (s *riskService) DetectRisk(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	today := startOfDay(s.now(), s.loc)
	records, err := s.records.GetByUserSince(ctx, userID, today.AddDate(0, 0, -riskWindowDays))
	if err != nil {
		return nil, err
	}

	// Keep only live records, most recent first.
	live := make([]domain.TrainingRecord, 0, len(records))
	for _, record := range records {
		if !record.Deleted {
			live = append(live, record)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].PerformedAt.After(live[j].PerformedAt)
	})

	risks := []string{}
	if streak := longestHighStreak(live); streak >= highStreakLimit {
		risks = append(risks, fmt.Sprintf(
			"%d consecutive high-intensity sessions without an easier session in between; consider a lighter day", streak))
	}
	if active := activeDaysInTrailingWeek(live, today); active >= restDeficitDays {
		risks = append(risks, fmt.Sprintf(
			"%d active days in the last 7; at least one full rest day is recommended", active))
	}
	risks = append(risks, volumeSpikes(live, today)...)
	return risks, nil
}

// longestHighStreak scans most-recent-first and returns the longest run of
// HIGH/VERY_HIGH sessions uninterrupted by a lower-intensity one.
func longestHighStreak(records []domain.TrainingRecord) int {
	longest, current := 0, 0
	for _, record := range records {
		if record.Intensity.IsHigh() {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// activeDaysInTrailingWeek counts distinct calendar days with a session in the
// trailing 7-day window.
func activeDaysInTrailingWeek(records []domain.TrainingRecord, today time.Time) int {
	weekAgo := today.AddDate(0, 0, -6) // today plus the 6 days before it
	days := map[string]struct{}{}
	for _, record := range records {
		if record.PerformedAt.Before(weekAgo) {
			continue
		}
		days[record.Date] = struct{}{}
	}
	return len(days)
}

// volumeSpikes flags categories whose trailing-7-day volume jumped past the
// spike ratio and the absolute floor relative to the prior 7 days.
func volumeSpikes(records []domain.TrainingRecord, today time.Time) []string {
	weekAgo := today.AddDate(0, 0, -7)
	trailing := map[string]float64{}
	prior := map[string]float64{}
	for _, record := range records {
		target := prior
		if !record.PerformedAt.Before(weekAgo) {
			target = trailing
		}
		for category, volume := range record.VolumeByCategory {
			target[category] += volume
		}
	}

	categories := make([]string, 0, len(trailing))
	for category := range trailing {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var risks []string
	for _, category := range categories {
		current := trailing[category]
		previous := prior[category]
		if current > volumeSpikeFloor && current > previous*volumeSpikeRatio {
			risks = append(risks, fmt.Sprintf(
				"%s volume jumped from %.0f to %.0f week-over-week; ramp up more gradually", category, previous, current))
		}
	}
	return risks
}
