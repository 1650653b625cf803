package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Routine is a saved training plan. The coach backend only ever creates one
// from a confirmed recommendation draft; editing is the CRUD layer's concern.
type Routine struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	Name      string             `bson:"name" json:"name"`
	Memo      string             `bson:"memo,omitempty" json:"memo,omitempty"`
	Exercises []RoutineExercise  `bson:"exercises,omitempty" json:"exercises,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RoutineExercise is one exercise slot inside a routine.
type RoutineExercise struct {
	Name     string       `bson:"name" json:"name"`
	Category string       `bson:"category" json:"category"`
	Order    int          `bson:"order" json:"order"`
	Sets     []RoutineSet `bson:"sets,omitempty" json:"sets,omitempty"`
}

// RoutineSet is a planned set within a routine exercise.
type RoutineSet struct {
	SetNumber int     `bson:"setNumber" json:"setNumber"`
	Weight    float64 `bson:"weight" json:"weight"`
	Reps      int     `bson:"reps" json:"reps"`
}
