package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrRecordNotFound  = errors.New("training record not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// RecentStats summarizes a trailing window of training history.
type RecentStats struct {
	Weeks              int                `json:"weeks"`
	SessionCount       int                `json:"sessionCount"`
	AvgSessionsPerWeek float64            `json:"avgSessionsPerWeek"`
	TotalSets          int                `json:"totalSets"`
	TotalReps          int                `json:"totalReps"`
	TotalVolume        float64            `json:"totalVolume"`
	VolumeByCategory   map[string]float64 `json:"volumeByCategory"`
}

// WeekAggregate is one ISO week (Monday start) of a single exercise's history.
type WeekAggregate struct {
	WeekStart string  `json:"weekStart"`
	Volume    float64 `json:"volume"`
	Sets      int     `json:"sets"`
	Reps      int     `json:"reps"`
	TopWeight float64 `json:"topWeight"`
	Est1RM    float64 `json:"est1RM"`
}

// CategoryShare is one category's slice of total volume.
type CategoryShare struct {
	Category string  `json:"category"`
	Volume   float64 `json:"volume"`
	Share    float64 `json:"share"`
}

// SessionSummary is a compact view of one logged session.
type SessionSummary struct {
	RecordID    string           `json:"recordId"`
	Date        string           `json:"date"`
	Intensity   domain.Intensity `json:"intensity"`
	TotalVolume float64          `json:"totalVolume"`
	Exercises   []string         `json:"exercises"`
	Memo        string           `json:"memo,omitempty"`
}

// BestSetResult is the heaviest single set found for an exercise.
type BestSetResult struct {
	ExerciseName string  `json:"exerciseName"`
	Weight       float64 `json:"weight"`
	Reps         int     `json:"reps"`
	Date         string  `json:"date"`
	Est1RM       float64 `json:"est1RM"`
}

// PRPoint is one week's best estimated one-rep-max.
type PRPoint struct {
	WeekStart string  `json:"weekStart"`
	Est1RM    float64 `json:"est1RM"`
}

// ExerciseSummary is the per-exercise portion of a day record summary.
type ExerciseSummary struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	SetCount  int     `json:"setCount"`
	TopWeight float64 `json:"topWeight"`
	TotalReps int     `json:"totalReps"`
	Volume    float64 `json:"volume"`
}

// DayRecordSummary is the expanded view of one record, for the LLM to reason
// over a specific day.
type DayRecordSummary struct {
	RecordID    string            `json:"recordId"`
	Date        string            `json:"date"`
	Intensity   domain.Intensity  `json:"intensity"`
	Memo        string            `json:"memo,omitempty"`
	TotalVolume float64           `json:"totalVolume"`
	Exercises   []ExerciseSummary `json:"exercises"`
}

// AggregationService computes read-only projections over a user's training
// history. Every operation is deterministic and side-effect-free; soft-deleted
// records never contribute. Windows are bounded in the user's local calendar,
// not UTC, to avoid day-boundary skew.
type AggregationService interface {
	RecentStats(ctx context.Context, userID string, weeks int) (*RecentStats, error)
	ExerciseTimeseries(ctx context.Context, userID, exerciseName string, sinceDays int) ([]WeekAggregate, error)
	CategoryBreakdown(ctx context.Context, userID string, weeks int) ([]CategoryShare, error)
	RecentSessions(ctx context.Context, userID string, limit int) ([]SessionSummary, error)
	BestSet(ctx context.Context, userID, exerciseName string, sinceDays int) (*BestSetResult, error)
	PRTrend(ctx context.Context, userID, exerciseName string, sinceDays int) ([]PRPoint, error)
	DayRecordSummary(ctx context.Context, userID, recordID string) (*DayRecordSummary, error)
}

// aggregationService implements the AggregationService interface.
type aggregationService struct {
	records repository.TrainingRecordRepository
	loc     *time.Location
	now     func() time.Time
}

// NewAggregationService creates a new instance of aggregationService.
// loc is the user-local calendar; pass nil for the server's local time.
func NewAggregationService(records repository.TrainingRecordRepository, loc *time.Location) AggregationService {
	if loc == nil {
		loc = time.Local
	}
	return &aggregationService{
		records: records,
		loc:     loc,
		now:     time.Now,
	}
}

// epley estimates a one-rep-max from a single weight/reps pair.
func epley(weight float64, reps int) float64 {
	return weight * (1 + float64(reps)/30)
}

// weekStartKey returns the Monday of t's ISO week as "2006-01-02".
func weekStartKey(t time.Time) string {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // Sunday belongs to the week started the previous Monday
	}
	monday := t.AddDate(0, 0, -(wd - 1))
	return monday.Format("2006-01-02")
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (s *aggregationService) windowStart(days int) time.Time {
	return startOfDay(s.now(), s.loc).AddDate(0, 0, -days)
}

// RecentStats aggregates session count, set/rep/volume totals, and the
// per-category volume map over the trailing `weeks` weeks.
func (s *aggregationService) RecentStats(ctx context.Context, userID string, weeks int) (*RecentStats, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if weeks <= 0 {
		weeks = 4
	}
	records, err := s.records.GetByUserSince(ctx, userID, s.windowStart(7*weeks))
	if err != nil {
		return nil, err
	}

	stats := &RecentStats{
		Weeks:            weeks,
		VolumeByCategory: map[string]float64{},
	}
	for i := range records {
		record := &records[i]
		if record.Deleted {
			continue
		}
		stats.SessionCount++
		for category, volume := range record.VolumeByCategory {
			stats.VolumeByCategory[category] += volume
			stats.TotalVolume += volume
		}
		for _, exercise := range record.Exercises {
			for _, set := range exercise.Sets {
				stats.TotalSets++
				stats.TotalReps += set.Reps
			}
		}
	}
	stats.AvgSessionsPerWeek = float64(stats.SessionCount) / float64(weeks)
	return stats, nil
}

// ExerciseTimeseries buckets one exercise's history into ISO weeks and
// estimates a one-rep-max per week with Epley's formula.
func (s *aggregationService) ExerciseTimeseries(ctx context.Context, userID, exerciseName string, sinceDays int) ([]WeekAggregate, error) {
	if userID == "" || exerciseName == "" {
		return nil, ErrInvalidArgument
	}
	if sinceDays <= 0 {
		sinceDays = 90
	}
	records, err := s.records.GetByUserSince(ctx, userID, s.windowStart(sinceDays))
	if err != nil {
		return nil, err
	}

	byWeek := map[string]*WeekAggregate{}
	for i := range records {
		record := &records[i]
		if record.Deleted {
			continue
		}
		day, err := record.LocalDate(s.loc)
		if err != nil {
			day = record.PerformedAt.In(s.loc)
		}
		week := weekStartKey(day)
		for _, exercise := range record.Exercises {
			if !strings.EqualFold(exercise.Name, exerciseName) {
				continue
			}
			agg := byWeek[week]
			if agg == nil {
				agg = &WeekAggregate{WeekStart: week}
				byWeek[week] = agg
			}
			for _, set := range exercise.Sets {
				agg.Volume += set.Weight * float64(set.Reps)
				agg.Sets++
				agg.Reps += set.Reps
				if set.Weight > agg.TopWeight {
					agg.TopWeight = set.Weight
				}
			}
		}
	}

	weeks := make([]WeekAggregate, 0, len(byWeek))
	for _, agg := range byWeek {
		agg.Est1RM = epley(agg.TopWeight, agg.Reps)
		weeks = append(weeks, *agg)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekStart < weeks[j].WeekStart })
	return weeks, nil
}

// CategoryBreakdown returns per-category volume and its share of the total,
// largest first.
func (s *aggregationService) CategoryBreakdown(ctx context.Context, userID string, weeks int) ([]CategoryShare, error) {
	stats, err := s.RecentStats(ctx, userID, weeks)
	if err != nil {
		return nil, err
	}
	shares := make([]CategoryShare, 0, len(stats.VolumeByCategory))
	for category, volume := range stats.VolumeByCategory {
		share := 0.0
		if stats.TotalVolume > 0 {
			share = volume / stats.TotalVolume
		}
		shares = append(shares, CategoryShare{Category: category, Volume: volume, Share: share})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Volume != shares[j].Volume {
			return shares[i].Volume > shares[j].Volume
		}
		return shares[i].Category < shares[j].Category
	})
	return shares, nil
}

// RecentSessions returns compact summaries of the latest sessions.
func (s *aggregationService) RecentSessions(ctx context.Context, userID string, limit int) ([]SessionSummary, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	records, err := s.records.GetRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]SessionSummary, 0, len(records))
	for i := range records {
		record := &records[i]
		if record.Deleted {
			continue
		}
		names := make([]string, 0, len(record.Exercises))
		for _, exercise := range record.Exercises {
			names = append(names, exercise.Name)
		}
		summaries = append(summaries, SessionSummary{
			RecordID:    record.ID.Hex(),
			Date:        record.Date,
			Intensity:   record.Intensity,
			TotalVolume: record.TotalVolume(),
			Exercises:   names,
			Memo:        record.Memo,
		})
	}
	return summaries, nil
}

// BestSet finds the heaviest single set for an exercise within the window.
// Returns (nil, nil) when the user never logged that exercise.
func (s *aggregationService) BestSet(ctx context.Context, userID, exerciseName string, sinceDays int) (*BestSetResult, error) {
	if userID == "" || exerciseName == "" {
		return nil, ErrInvalidArgument
	}
	if sinceDays <= 0 {
		sinceDays = 180
	}
	records, err := s.records.GetByUserSince(ctx, userID, s.windowStart(sinceDays))
	if err != nil {
		return nil, err
	}

	var best *BestSetResult
	for i := range records {
		record := &records[i]
		if record.Deleted {
			continue
		}
		for _, exercise := range record.Exercises {
			if !strings.EqualFold(exercise.Name, exerciseName) {
				continue
			}
			for _, set := range exercise.Sets {
				if best == nil || set.Weight > best.Weight {
					best = &BestSetResult{
						ExerciseName: exercise.Name,
						Weight:       set.Weight,
						Reps:         set.Reps,
						Date:         record.Date,
						Est1RM:       epley(set.Weight, set.Reps),
					}
				}
			}
		}
	}
	return best, nil
}

// PRTrend returns the per-week best estimated one-rep-max (per-set Epley) for
// one exercise.
func (s *aggregationService) PRTrend(ctx context.Context, userID, exerciseName string, sinceDays int) ([]PRPoint, error) {
	if userID == "" || exerciseName == "" {
		return nil, ErrInvalidArgument
	}
	if sinceDays <= 0 {
		sinceDays = 180
	}
	records, err := s.records.GetByUserSince(ctx, userID, s.windowStart(sinceDays))
	if err != nil {
		return nil, err
	}

	byWeek := map[string]float64{}
	for i := range records {
		record := &records[i]
		if record.Deleted {
			continue
		}
		day, err := record.LocalDate(s.loc)
		if err != nil {
			day = record.PerformedAt.In(s.loc)
		}
		week := weekStartKey(day)
		for _, exercise := range record.Exercises {
			if !strings.EqualFold(exercise.Name, exerciseName) {
				continue
			}
			for _, set := range exercise.Sets {
				if est := epley(set.Weight, set.Reps); est > byWeek[week] {
					byWeek[week] = est
				}
			}
		}
	}

	points := make([]PRPoint, 0, len(byWeek))
	for week, est := range byWeek {
		points = append(points, PRPoint{WeekStart: week, Est1RM: est})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].WeekStart < points[j].WeekStart })
	return points, nil
}

// DayRecordSummary expands one record into per-exercise totals.
func (s *aggregationService) DayRecordSummary(ctx context.Context, userID, recordID string) (*DayRecordSummary, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	record, err := s.records.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	summary := &DayRecordSummary{
		RecordID:    record.ID.Hex(),
		Date:        record.Date,
		Intensity:   record.Intensity,
		Memo:        record.Memo,
		TotalVolume: record.TotalVolume(),
	}
	for _, exercise := range record.Exercises {
		es := ExerciseSummary{
			Name:     exercise.Name,
			Category: exercise.Category,
			SetCount: len(exercise.Sets),
		}
		for _, set := range exercise.Sets {
			es.TotalReps += set.Reps
			es.Volume += set.Weight * float64(set.Reps)
			if set.Weight > es.TopWeight {
				es.TopWeight = set.Weight
			}
		}
		summary.Exercises = append(summary.Exercises, es)
	}
	return summary, nil
}
