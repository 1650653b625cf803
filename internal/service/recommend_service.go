package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"
)

const (
	// Category share thresholds for the focus classification.
	overTrainedShare  = 0.35
	underTrainedShare = 0.10

	weightScanDays     = 180
	weightScanSessions = 60
	weightRoundStep    = 2.5
	// Suggested working weight as a fraction of the most recent top set.
	heavyWeightFactor = 0.90 // schemes at 8 reps or fewer
	lightWeightFactor = 0.85
)

// Training categories used by the split template and exercise pools.
const (
	CategoryChest    = "chest"
	CategoryBack     = "back"
	CategoryShoulder = "shoulder"
	CategoryLeg      = "leg"
	CategoryArm      = "arm"
	CategoryAbdomen  = "abdomen"
)

// exercisePools are the canonical per-category candidate exercises the
// generator samples from. Order matters: pickN walks each pool front to back,
// which is what keeps the whole engine deterministic.
var exercisePools = map[string][]string{
	CategoryChest:    {"Bench Press", "Incline Dumbbell Press", "Chest Press Machine", "Cable Crossover", "Dips", "Push Up"},
	CategoryBack:     {"Deadlift", "Lat Pulldown", "Barbell Row", "Seated Cable Row", "Pull Up", "One-Arm Dumbbell Row"},
	CategoryShoulder: {"Overhead Press", "Dumbbell Shoulder Press", "Lateral Raise", "Face Pull", "Rear Delt Fly", "Arnold Press"},
	CategoryLeg:      {"Squat", "Leg Press", "Romanian Deadlift", "Leg Extension", "Leg Curl", "Lunge"},
	CategoryArm:      {"Barbell Curl", "Dumbbell Curl", "Hammer Curl", "Triceps Pushdown", "Overhead Triceps Extension", "Close-Grip Bench Press"},
	CategoryAbdomen:  {"Plank", "Crunch", "Leg Raise", "Cable Crunch", "Hanging Knee Raise", "Russian Twist"},
}

// bigCompounds get the heavier 8x3 scheme.
var bigCompounds = map[string]bool{
	"bench press":       true,
	"deadlift":          true,
	"squat":             true,
	"overhead press":    true,
	"barbell row":       true,
	"romanian deadlift": true,
	"leg press":         true,
}

// daySpec declares how many exercises one day draws from each category.
type daySpec struct {
	name       string
	categories []categoryCount
}

type categoryCount struct {
	category string
	count    int
}

// splitTemplate is the fixed 4-day Upper/Lower/Pull/Push split.
var splitTemplate = []daySpec{
	{name: "Day 1 - Upper", categories: []categoryCount{
		{CategoryChest, 2}, {CategoryShoulder, 1}, {CategoryArm, 1},
	}},
	{name: "Day 2 - Lower", categories: []categoryCount{
		{CategoryLeg, 3}, {CategoryAbdomen, 1},
	}},
	{name: "Day 3 - Pull", categories: []categoryCount{
		{CategoryBack, 3}, {CategoryArm, 1},
	}},
	{name: "Day 4 - Push", categories: []categoryCount{
		{CategoryChest, 1}, {CategoryShoulder, 2}, {CategoryAbdomen, 1},
	}},
}

// SetPlan is one planned set of a recommended exercise.
type SetPlan struct {
	SetNumber int     `json:"setNumber"`
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
}

// ExercisePlan is one recommended exercise with its generated set scheme.
type ExercisePlan struct {
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	SuggestedWeight float64   `json:"suggestedWeight"`
	Sets            []SetPlan `json:"sets"`
}

// DayPlan is one day block of the recommendation.
type DayPlan struct {
	Name      string         `json:"name"`
	Exercises []ExercisePlan `json:"exercises"`
}

// DraftExercise mirrors the add_routine exercise contract.
type DraftExercise struct {
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Order    int       `json:"order"`
	Sets     []SetPlan `json:"sets"`
}

// DraftRoutine is the ready-to-persist payload a confirming user submits to
// add_routine unchanged.
type DraftRoutine struct {
	Name      string          `json:"name"`
	Memo      string          `json:"memo"`
	Exercises []DraftExercise `json:"exercises"`
}

// RecommendationPlan is the full transient artifact of one recommendation
// call. It only becomes durable if the user confirms the draft.
type RecommendationPlan struct {
	Days                 []DayPlan    `json:"days"`
	FocusCategories      []string     `json:"focusCategories"`
	MissingExerciseTypes []string     `json:"missingExerciseTypes"`
	Draft                DraftRoutine `json:"draft"`
	CallToAction         string       `json:"callToAction"`
}

// RecommendService synthesizes a structured multi-day training plan from
// historical performance data. It is a deterministic, explainable heuristic
// generator: identical history and catalog always produce an identical draft.
type RecommendService interface {
	RecommendRoutine(ctx context.Context, userID string, focusTargets []string) (*RecommendationPlan, error)
}

// recommendService implements the RecommendService interface.
type recommendService struct {
	agg     AggregationService
	records repository.TrainingRecordRepository
	types   repository.ExerciseTypeRepository
	loc     *time.Location
	now     func() time.Time
}

// NewRecommendService creates a new instance of recommendService.
func NewRecommendService(
	agg AggregationService,
	records repository.TrainingRecordRepository,
	types repository.ExerciseTypeRepository,
	loc *time.Location,
) RecommendService {
	if loc == nil {
		loc = time.Local
	}
	return &recommendService{
		agg:     agg,
		records: records,
		types:   types,
		loc:     loc,
		now:     time.Now,
	}
}

// RecommendRoutine builds the 4-day plan.
func (s *recommendService) RecommendRoutine(ctx context.Context, userID string, focusTargets []string) (*RecommendationPlan, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}

	stats, err := s.agg.RecentStats(ctx, userID, 4)
	if err != nil {
		return nil, err
	}
	focus, overTrained := classifyCategories(stats, focusTargets)

	// One history fetch backs every weight suggestion; the per-exercise scan
	// below walks it most-recent-first, first non-empty top set wins.
	history, err := s.records.GetRecent(ctx, userID, weightScanSessions)
	if err != nil {
		// Degrade to zero-weight suggestions rather than failing the plan.
		log.Printf("WARN: weight suggestion history unavailable for user %s: %v", userID, err)
		history = nil
	}
	cutoff := startOfDay(s.now(), s.loc).AddDate(0, 0, -weightScanDays)

	used := map[string]bool{}
	plan := &RecommendationPlan{FocusCategories: focus}
	for _, day := range splitTemplate {
		dayPlan := DayPlan{Name: day.name}
		for _, cc := range orderFocusFirst(day.categories, focus, overTrained) {
			for _, name := range pickN(exercisePools[cc.category], cc.count, used) {
				reps, sets := repScheme(cc.category, name)
				weight := s.suggestWeight(history, cutoff, name, reps)
				dayPlan.Exercises = append(dayPlan.Exercises, ExercisePlan{
					Name:            name,
					Category:        cc.category,
					SuggestedWeight: weight,
					Sets:            buildSets(sets, reps, weight),
				})
			}
		}
		plan.Days = append(plan.Days, dayPlan)
	}

	plan.MissingExerciseTypes, err = s.missingTypes(ctx, userID, plan)
	if err != nil {
		return nil, err
	}
	plan.Draft = buildDraft(plan)
	plan.CallToAction = callToAction(plan.MissingExerciseTypes)
	return plan, nil
}

// classifyCategories splits categories by volume share: heavy shares are
// deprioritized, light shares are prioritized and unioned with the caller's
// focus targets. With no volume at all nothing is classified, so an empty
// history still yields the plain template order.
func classifyCategories(stats *RecentStats, focusTargets []string) (focus []string, overTrained map[string]bool) {
	overTrained = map[string]bool{}
	focusSet := map[string]bool{}
	if stats != nil && stats.TotalVolume > 0 {
		// Walk the template's category universe in fixed order for
		// deterministic focus ordering.
		for _, category := range []string{CategoryChest, CategoryBack, CategoryShoulder, CategoryLeg, CategoryArm, CategoryAbdomen} {
			share := stats.VolumeByCategory[category] / stats.TotalVolume
			switch {
			case share >= overTrainedShare:
				overTrained[category] = true
			case share <= underTrainedShare:
				focusSet[category] = true
				focus = append(focus, category)
			}
		}
	}
	for _, target := range focusTargets {
		target = strings.ToLower(strings.TrimSpace(target))
		if target == "" || focusSet[target] {
			continue
		}
		focusSet[target] = true
		focus = append(focus, target)
	}
	return focus, overTrained
}

// orderFocusFirst reorders a day's categories so focus categories come first
// and over-trained ones last, keeping the template's relative order within
// each group.
func orderFocusFirst(categories []categoryCount, focus []string, overTrained map[string]bool) []categoryCount {
	focusSet := map[string]bool{}
	for _, category := range focus {
		focusSet[category] = true
	}
	ordered := make([]categoryCount, 0, len(categories))
	for _, cc := range categories {
		if focusSet[cc.category] {
			ordered = append(ordered, cc)
		}
	}
	for _, cc := range categories {
		if !focusSet[cc.category] && !overTrained[cc.category] {
			ordered = append(ordered, cc)
		}
	}
	for _, cc := range categories {
		if !focusSet[cc.category] && overTrained[cc.category] {
			ordered = append(ordered, cc)
		}
	}
	return ordered
}

// pickN samples n names from the pool, preferring names not yet used anywhere
// in the plan and wrapping around once the pool is exhausted.
func pickN(pool []string, n int, used map[string]bool) []string {
	picked := make([]string, 0, n)
	for _, name := range pool {
		if len(picked) == n {
			break
		}
		if used[strings.ToLower(name)] {
			continue
		}
		used[strings.ToLower(name)] = true
		picked = append(picked, name)
	}
	// Pool exhausted: wrap around and accept repeats.
	for i := 0; len(picked) < n && len(pool) > 0; i++ {
		picked = append(picked, pool[i%len(pool)])
	}
	return picked
}

// repScheme assigns the rep/set scheme: abdomen work 15x3, big compounds 8x3,
// everything else 10x3.
func repScheme(category, name string) (reps, sets int) {
	switch {
	case category == CategoryAbdomen:
		return 15, 3
	case bigCompounds[strings.ToLower(name)]:
		return 8, 3
	default:
		return 10, 3
	}
}

// suggestWeight derives a working weight from the most recent top set of the
// same exercise, scanning sessions most-recent-first. No history means 0.
func (s *recommendService) suggestWeight(history []domain.TrainingRecord, cutoff time.Time, exerciseName string, reps int) float64 {
	for i := range history {
		record := &history[i]
		if record.Deleted || record.PerformedAt.Before(cutoff) {
			continue
		}
		var top float64
		found := false
		for _, exercise := range record.Exercises {
			if !strings.EqualFold(exercise.Name, exerciseName) {
				continue
			}
			for _, set := range exercise.Sets {
				found = true
				if set.Weight > top {
					top = set.Weight
				}
			}
		}
		if found {
			factor := lightWeightFactor
			if reps <= 8 {
				factor = heavyWeightFactor
			}
			return roundToStep(top*factor, weightRoundStep)
		}
	}
	return 0
}

func roundToStep(weight, step float64) float64 {
	return math.Round(weight/step) * step
}

func buildSets(sets, reps int, weight float64) []SetPlan {
	plans := make([]SetPlan, 0, sets)
	for i := 1; i <= sets; i++ {
		plans = append(plans, SetPlan{SetNumber: i, Reps: reps, Weight: weight})
	}
	return plans
}

// missingTypes cross-references chosen names against the user's catalog,
// case-insensitively, keeping first-seen plan order.
func (s *recommendService) missingTypes(ctx context.Context, userID string, plan *RecommendationPlan) ([]string, error) {
	catalog, err := s.types.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, entry := range catalog {
		known[strings.ToLower(entry.Name)] = true
	}

	missing := []string{}
	seen := map[string]bool{}
	for _, day := range plan.Days {
		for _, exercise := range day.Exercises {
			lower := strings.ToLower(exercise.Name)
			if known[lower] || seen[lower] {
				continue
			}
			seen[lower] = true
			missing = append(missing, exercise.Name)
		}
	}
	return missing, nil
}

// buildDraft flattens the day plan into the add_routine payload.
func buildDraft(plan *RecommendationPlan) DraftRoutine {
	draft := DraftRoutine{
		Name: "Next Week Plan",
		Memo: "Generated by AI Coach",
	}
	order := 0
	for _, day := range plan.Days {
		for _, exercise := range day.Exercises {
			draft.Exercises = append(draft.Exercises, DraftExercise{
				Name:     exercise.Name,
				Category: exercise.Category,
				Order:    order,
				Sets:     exercise.Sets,
			})
			order++
		}
	}
	return draft
}

func callToAction(missing []string) string {
	if len(missing) > 0 {
		return fmt.Sprintf(
			"Shall I add %s to your exercise list and save this routine for next week?",
			strings.Join(missing, ", "))
	}
	return "Shall I save this routine for next week?"
}
