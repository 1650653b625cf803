package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fitcoach/coach-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecForTest(records []domain.TrainingRecord, types []domain.ExerciseType) *recommendService {
	repo := &fakeRecordRepo{records: records}
	agg := &aggregationService{records: repo, loc: time.UTC, now: fixedTestNow}
	return &recommendService{
		agg:     agg,
		records: repo,
		types:   &fakeTypeRepo{types: types},
		loc:     time.UTC,
		now:     fixedTestNow,
	}
}

func planExercises(plan *RecommendationPlan) map[string]ExercisePlan {
	out := map[string]ExercisePlan{}
	for _, day := range plan.Days {
		for _, exercise := range day.Exercises {
			out[exercise.Name] = exercise
		}
	}
	return out
}

func TestRecommendEmptyHistory(t *testing.T) {
	svc := newRecForTest(nil, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)

	require.Len(t, plan.Days, 4)
	assert.Equal(t, "Day 1 - Upper", plan.Days[0].Name)
	assert.Equal(t, "Day 2 - Lower", plan.Days[1].Name)
	assert.Equal(t, "Day 3 - Pull", plan.Days[2].Name)
	assert.Equal(t, "Day 4 - Push", plan.Days[3].Name)
	for _, day := range plan.Days {
		assert.Len(t, day.Exercises, 4)
		for _, exercise := range day.Exercises {
			assert.Equal(t, 0.0, exercise.SuggestedWeight)
			require.Len(t, exercise.Sets, 3)
			for _, set := range exercise.Sets {
				assert.Equal(t, 0.0, set.Weight)
			}
		}
	}

	assert.Empty(t, plan.FocusCategories)
	// With an empty catalog every chosen exercise is missing.
	assert.Len(t, plan.MissingExerciseTypes, 16)
	assert.Len(t, plan.Draft.Exercises, 16)
	for i, exercise := range plan.Draft.Exercises {
		assert.Equal(t, i, exercise.Order)
	}
	assert.Contains(t, plan.CallToAction, "Shall I add")
}

func TestRecommendNoRepeatsAcrossDays(t *testing.T) {
	svc := newRecForTest(nil, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, day := range plan.Days {
		for _, exercise := range day.Exercises {
			assert.False(t, seen[exercise.Name], "exercise %s picked twice", exercise.Name)
			seen[exercise.Name] = true
		}
	}
}

func TestRecommendDeterministic(t *testing.T) {
	records := []domain.TrainingRecord{
		testRecord("2026-03-16", domain.IntensityNormal,
			map[string]float64{"chest": 3000, "leg": 2000},
			testEntry("Bench Press", "chest", testSet(1, 100, 8)),
			testEntry("Squat", "leg", testSet(1, 140, 5))),
	}
	types := []domain.ExerciseType{
		{Name: "Bench Press", Category: CategoryChest},
		{Name: "Squat", Category: CategoryLeg},
	}

	first, err := newRecForTest(records, types).RecommendRoutine(context.Background(), "user-1", []string{"back"})
	require.NoError(t, err)
	second, err := newRecForTest(records, types).RecommendRoutine(context.Background(), "user-1", []string{"back"})
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestRepSchemes(t *testing.T) {
	svc := newRecForTest(nil, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)
	exercises := planExercises(plan)

	assert.Equal(t, 8, exercises["Squat"].Sets[0].Reps)
	assert.Equal(t, 8, exercises["Bench Press"].Sets[0].Reps)
	assert.Equal(t, 8, exercises["Deadlift"].Sets[0].Reps)
	assert.Equal(t, 15, exercises["Plank"].Sets[0].Reps)
	assert.Equal(t, 15, exercises["Crunch"].Sets[0].Reps)
	assert.Equal(t, 10, exercises["Barbell Curl"].Sets[0].Reps)
	assert.Equal(t, 10, exercises["Lat Pulldown"].Sets[0].Reps)
}

func TestSuggestedWeights(t *testing.T) {
	records := []domain.TrainingRecord{
		testRecord("2026-03-16", domain.IntensityNormal, nil,
			testEntry("Bench Press", "chest", testSet(1, 100, 8), testSet(2, 90, 8)),
			testEntry("Lat Pulldown", "back", testSet(1, 61, 10))),
		// Older heavier session must lose to the most recent one.
		testRecord("2026-03-10", domain.IntensityNormal, nil,
			testEntry("Bench Press", "chest", testSet(1, 120, 5))),
	}
	svc := newRecForTest(records, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)
	exercises := planExercises(plan)

	// 8-rep compound: 100 * 0.90 = 90, already on the 2.5 step.
	assert.Equal(t, 90.0, exercises["Bench Press"].SuggestedWeight)
	// 10-rep accessory: 61 * 0.85 = 51.85, rounded to 52.5.
	assert.Equal(t, 52.5, exercises["Lat Pulldown"].SuggestedWeight)
	// Never logged: no suggestion.
	assert.Equal(t, 0.0, exercises["Squat"].SuggestedWeight)

	for _, set := range exercises["Bench Press"].Sets {
		assert.Equal(t, 90.0, set.Weight)
	}
}

func TestSuggestedWeightIgnoresDeletedAndStale(t *testing.T) {
	deleted := testRecord("2026-03-17", domain.IntensityNormal, nil,
		testEntry("Bench Press", "chest", testSet(1, 200, 8)))
	deleted.Deleted = true
	stale := testRecord("2025-01-05", domain.IntensityNormal, nil,
		testEntry("Bench Press", "chest", testSet(1, 150, 8)))

	svc := newRecForTest([]domain.TrainingRecord{deleted, stale}, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, planExercises(plan)["Bench Press"].SuggestedWeight)
}

func TestFocusAndOverTrainedOrdering(t *testing.T) {
	// leg is 40% of total volume (over-trained), arm 5% and abdomen 0%
	// (under-trained); chest/back/shoulder sit in the neutral band.
	records := []domain.TrainingRecord{
		testRecord("2026-03-16", domain.IntensityNormal, map[string]float64{
			"leg":      4000,
			"chest":    2000,
			"back":     2000,
			"shoulder": 1500,
			"arm":      500,
		}),
	}
	svc := newRecForTest(records, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"arm", "abdomen"}, plan.FocusCategories)
	// Upper day leads with its focus category.
	assert.Equal(t, "arm", plan.Days[0].Exercises[0].Category)
	// Lower day leads with abdomen and pushes over-trained leg work last.
	assert.Equal(t, "abdomen", plan.Days[1].Exercises[0].Category)
	assert.Equal(t, "leg", plan.Days[1].Exercises[3].Category)
}

func TestFocusTargetsUnioned(t *testing.T) {
	svc := newRecForTest(nil, nil)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", []string{" Back ", "back", ""})
	require.NoError(t, err)

	assert.Equal(t, []string{"back"}, plan.FocusCategories)
}

func TestMissingTypesCaseInsensitive(t *testing.T) {
	types := []domain.ExerciseType{
		{Name: "bench press", Category: CategoryChest},
		{Name: "SQUAT", Category: CategoryLeg},
	}
	svc := newRecForTest(nil, types)

	plan, err := svc.RecommendRoutine(context.Background(), "user-1", nil)
	require.NoError(t, err)

	assert.NotContains(t, plan.MissingExerciseTypes, "Bench Press")
	assert.NotContains(t, plan.MissingExerciseTypes, "Squat")
	assert.Contains(t, plan.MissingExerciseTypes, "Deadlift")
	assert.Len(t, plan.MissingExerciseTypes, 14)
}

func TestCallToActionVariants(t *testing.T) {
	assert.Equal(t, "Shall I save this routine for next week?", callToAction(nil))
	assert.Equal(t,
		"Shall I add Dips, Lunge to your exercise list and save this routine for next week?",
		callToAction([]string{"Dips", "Lunge"}))
}

func TestPickNWraparound(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, []string{"A", "B", "A"}, pickN([]string{"A", "B"}, 3, used))

	used = map[string]bool{"a": true}
	assert.Equal(t, []string{"B"}, pickN([]string{"A", "B"}, 1, used))
}

func TestRoundToStep(t *testing.T) {
	assert.Equal(t, 52.5, roundToStep(51.85, 2.5))
	assert.Equal(t, 50.0, roundToStep(51.2, 2.5))
	assert.Equal(t, 0.0, roundToStep(0, 2.5))
}
