package synchash

import (
	"testing"
	"time"

	"github.com/marcus/lift/internal/models"
)

func sampleWorkout() *models.Workout {
	created := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	return &models.Workout{
		ID:   "w1",
		Name: "Push Day",
		Kind: models.KindStrength,
		Exercises: []models.Exercise{
			{
				ID: "e1", Name: "Bench Press", Position: 0,
				Sets: []models.SetScheme{
					{ID: "s1", Reps: 5, WeightKg: 80, Position: 0},
					{ID: "s2", Reps: 5, WeightKg: 85, Position: 1},
				},
			},
			{ID: "e2", Name: "Dips", Position: 1},
		},
		CreatedAt:     created,
		UpdatedAt:     created,
		SyncStatus:    models.StatusSynced,
		SchemaVersion: 2,
	}
}

func TestHashStable(t *testing.T) {
	w := sampleWorkout()
	h1, err := Hash(w)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := Hash(w)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %d != %d", h1, h2)
	}
}

func TestHashIgnoresBookkeeping(t *testing.T) {
	a := sampleWorkout()
	b := sampleWorkout()
	b.UpdatedAt = b.UpdatedAt.Add(48 * time.Hour)
	b.SyncStatus = models.StatusPendingSync
	b.SchemaVersion = 1

	dirty, err := NeedsSync(a, b)
	if err != nil {
		t.Fatalf("NeedsSync() error = %v", err)
	}
	if dirty {
		t.Error("bookkeeping-only change reported as dirty")
	}
}

func TestHashIgnoresChildOrder(t *testing.T) {
	a := sampleWorkout()
	b := sampleWorkout()
	b.Exercises[0], b.Exercises[1] = b.Exercises[1], b.Exercises[0]

	dirty, err := NeedsSync(a, b)
	if err != nil {
		t.Fatalf("NeedsSync() error = %v", err)
	}
	if dirty {
		t.Error("reordered children reported as dirty")
	}
}

func TestHashDetectsContentChange(t *testing.T) {
	a := sampleWorkout()

	b := sampleWorkout()
	b.Name = "Pull Day"
	if dirty, _ := NeedsSync(a, b); !dirty {
		t.Error("renamed workout not reported as dirty")
	}

	c := sampleWorkout()
	c.Exercises[0].Sets[1].WeightKg = 90
	if dirty, _ := NeedsSync(a, c); !dirty {
		t.Error("changed nested set scheme not reported as dirty")
	}

	d := sampleWorkout()
	d.Exercises = d.Exercises[:1]
	if dirty, _ := NeedsSync(a, d); !dirty {
		t.Error("removed child not reported as dirty")
	}
}

func TestHashSessionSetLogTimestamps(t *testing.T) {
	// CompletedAt on a set log is domain content, not bookkeeping.
	base := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	a := &models.Session{
		ID: "s1", WorkoutID: "w1", StartedAt: base,
		SetLogs: []models.SetLog{{ID: "l1", Reps: 5, WeightKg: 80, CompletedAt: base}},
	}
	b := &models.Session{
		ID: "s1", WorkoutID: "w1", StartedAt: base,
		SetLogs: []models.SetLog{{ID: "l1", Reps: 5, WeightKg: 80, CompletedAt: base.Add(time.Minute)}},
	}
	dirty, err := NeedsSync(a, b)
	if err != nil {
		t.Fatalf("NeedsSync() error = %v", err)
	}
	if !dirty {
		t.Error("set log completion time change not reported as dirty")
	}
}
