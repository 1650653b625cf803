package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Intensity labels how hard a logged session felt to the user.
type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityNormal   Intensity = "normal"
	IntensityHigh     Intensity = "high"
	IntensityVeryHigh Intensity = "very_high"
)

// IsHigh reports whether the session counts toward high-intensity streaks.
func (i Intensity) IsHigh() bool {
	return i == IntensityHigh || i == IntensityVeryHigh
}

// TrainingRecord is one logged training session. Records are created by the
// mobile CRUD layer and are read-only to the coach backend; a soft-deleted
// record must be invisible to every aggregation.
type TrainingRecord struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           string             `bson:"userId" json:"userId"`
	Date             string             `bson:"date" json:"date"` // user-local calendar day, "2006-01-02"
	PerformedAt      time.Time          `bson:"performedAt" json:"performedAt"`
	Memo             string             `bson:"memo,omitempty" json:"memo,omitempty"`
	Intensity        Intensity          `bson:"intensity" json:"intensity"`
	VolumeByCategory map[string]float64 `bson:"volumeByCategory,omitempty" json:"volumeByCategory,omitempty"`
	Exercises        []ExerciseEntry    `bson:"exercises,omitempty" json:"exercises,omitempty"`
	Deleted          bool               `bson:"deleted" json:"-"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}

// TotalVolume sums the per-category volume map.
func (r *TrainingRecord) TotalVolume() float64 {
	var total float64
	for _, v := range r.VolumeByCategory {
		total += v
	}
	return total
}

// LocalDate parses the user-local calendar day in the given location.
func (r *TrainingRecord) LocalDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", r.Date, loc)
}

// ExerciseEntry is one exercise performed within a TrainingRecord.
type ExerciseEntry struct {
	ItemID   string     `bson:"itemId" json:"itemId"`
	Name     string     `bson:"name" json:"name"`
	Category string     `bson:"category" json:"category"`
	Order    int        `bson:"order" json:"order"`
	Memo     string     `bson:"memo,omitempty" json:"memo,omitempty"`
	SetCount int        `bson:"setCount" json:"setCount"`
	Sets     []SetEntry `bson:"sets,omitempty" json:"sets,omitempty"`
}

// SetEntry is a single set. Set numbers are 1-based and contiguous within an
// exercise; renumbering after deletion is the mutating caller's job.
type SetEntry struct {
	SetNumber int       `bson:"setNumber" json:"setNumber"`
	Weight    float64   `bson:"weight" json:"weight"`
	Reps      int       `bson:"reps" json:"reps"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
