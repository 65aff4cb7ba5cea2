// Package synchash computes content hashes used to decide whether an entity
// actually changed and needs to be pushed. The hash covers domain content
// only: bookkeeping fields (updated_at, sync_status, schema_version) are
// excluded so that touching a timestamp or flipping a sync flag never makes
// an entity look dirty. Child collections hash as unordered sets, so storage
// order does not affect the result.
package synchash

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/marcus/lift/internal/models"
)

// Hash views mirror the domain structs minus bookkeeping fields. Child
// slices carry hash:"set" so two entities with the same children in a
// different order hash identically. Timestamps that count as content are
// flattened to Unix nanoseconds because time.Time exposes no exported
// fields to the hasher.

type workoutView struct {
	ID        string
	Name      string
	Kind      models.WorkoutKind
	Notes     string
	Exercises []exerciseView `hash:"set"`
	CreatedAt int64
}

type exerciseView struct {
	ID       string
	Name     string
	Notes    string
	Position int
	Sets     []setSchemeView `hash:"set"`
}

type setSchemeView struct {
	ID       string
	Reps     int
	WeightKg float64
	RestSec  int
	Position int
}

type sessionView struct {
	ID           string
	WorkoutID    string
	Notes        string
	StartedAt    int64
	EndedAt      int64
	BodyweightKg float64
	SetLogs      []setLogView `hash:"set"`
	CreatedAt    int64
}

type setLogView struct {
	ID          string
	ExerciseID  string
	Reps        int
	WeightKg    float64
	RPE         float64
	CompletedAt int64
}

type messageView struct {
	ID        string
	ThreadID  string
	SenderID  string
	Body      string
	CreatedAt int64
}

type profileView struct {
	ID           string
	DisplayName  string
	BodyweightKg float64
	Unit         string
	CreatedAt    int64
}

func viewOf(e models.Entity) (any, error) {
	switch v := e.(type) {
	case *models.Workout:
		w := workoutView{
			ID:        v.ID,
			Name:      v.Name,
			Kind:      v.Kind,
			Notes:     v.Notes,
			CreatedAt: v.CreatedAt.UnixNano(),
		}
		for _, ex := range v.Exercises {
			ev := exerciseView{
				ID:       ex.ID,
				Name:     ex.Name,
				Notes:    ex.Notes,
				Position: ex.Position,
			}
			for _, s := range ex.Sets {
				ev.Sets = append(ev.Sets, setSchemeView{
					ID:       s.ID,
					Reps:     s.Reps,
					WeightKg: s.WeightKg,
					RestSec:  s.RestSec,
					Position: s.Position,
				})
			}
			w.Exercises = append(w.Exercises, ev)
		}
		return w, nil
	case *models.Session:
		s := sessionView{
			ID:           v.ID,
			WorkoutID:    v.WorkoutID,
			Notes:        v.Notes,
			StartedAt:    v.StartedAt.UnixNano(),
			BodyweightKg: v.BodyweightKg,
			CreatedAt:    v.CreatedAt.UnixNano(),
		}
		if v.EndedAt != nil {
			s.EndedAt = v.EndedAt.UnixNano()
		}
		for _, l := range v.SetLogs {
			s.SetLogs = append(s.SetLogs, setLogView{
				ID:          l.ID,
				ExerciseID:  l.ExerciseID,
				Reps:        l.Reps,
				WeightKg:    l.WeightKg,
				RPE:         l.RPE,
				CompletedAt: l.CompletedAt.UnixNano(),
			})
		}
		return s, nil
	case *models.Message:
		return messageView{
			ID:        v.ID,
			ThreadID:  v.ThreadID,
			SenderID:  v.SenderID,
			Body:      v.Body,
			CreatedAt: v.CreatedAt.UnixNano(),
		}, nil
	case *models.Profile:
		return profileView{
			ID:           v.ID,
			DisplayName:  v.DisplayName,
			BodyweightKg: v.BodyweightKg,
			Unit:         v.Unit,
			CreatedAt:    v.CreatedAt.UnixNano(),
		}, nil
	default:
		return nil, fmt.Errorf("synchash: unsupported entity type %q", e.EntityType())
	}
}

// Hash computes the content hash of an entity.
func Hash(e models.Entity) (uint64, error) {
	view, err := viewOf(e)
	if err != nil {
		return 0, err
	}
	h, err := hashstructure.Hash(view, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("hash %s %s: %w", e.EntityType(), e.EntityID(), err)
	}
	return h, nil
}

// NeedsSync reports whether two snapshots of an entity differ in domain
// content. Differences confined to bookkeeping fields return false.
func NeedsSync(a, b models.Entity) (bool, error) {
	ha, err := Hash(a)
	if err != nil {
		return false, err
	}
	hb, err := Hash(b)
	if err != nil {
		return false, err
	}
	return ha != hb, nil
}
