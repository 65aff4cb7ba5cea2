package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marcus/lift/internal/models"
)

func TestDecodeWorkoutV1LegacyTypeKey(t *testing.T) {
	// Version 1 payload: no schema_version field, modality under "type",
	// exercises without positions or set schemes.
	raw := `{
		"id": "w1",
		"name": "Push Day",
		"type": "strength",
		"exercises": [
			{"id": "e1", "name": "Bench Press"},
			{"id": "e2", "name": "Overhead Press"}
		],
		"updated_at": "2026-01-02T10:00:00Z"
	}`

	w, err := DecodeWorkout([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeWorkout() error = %v", err)
	}
	if w.Kind != models.KindStrength {
		t.Errorf("Kind = %q, want %q", w.Kind, models.KindStrength)
	}
	if w.SchemaVersion != WorkoutVersion {
		t.Errorf("SchemaVersion = %d, want %d", w.SchemaVersion, WorkoutVersion)
	}
	// List order becomes position when the field is absent.
	if w.Exercises[0].Position != 0 || w.Exercises[1].Position != 1 {
		t.Errorf("positions = %d, %d, want 0, 1", w.Exercises[0].Position, w.Exercises[1].Position)
	}
}

func TestDecodeWorkoutPrefersNewKey(t *testing.T) {
	raw := `{"id": "w1", "schema_version": 2, "kind": "cardio", "type": "strength"}`
	w, err := DecodeWorkout([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeWorkout() error = %v", err)
	}
	if w.Kind != models.KindCardio {
		t.Errorf("Kind = %q, want cardio when both keys present", w.Kind)
	}
}

func TestDecodeWorkoutV2Roundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	in := &models.Workout{
		ID:   "w1",
		Name: "Leg Day",
		Kind: models.KindStrength,
		Exercises: []models.Exercise{
			{
				ID: "e1", Name: "Squat", Position: 0,
				Sets:      []models.SetScheme{{ID: "s1", Reps: 5, WeightKg: 100, Position: 0, UpdatedAt: now}},
				UpdatedAt: now,
			},
		},
		UpdatedAt:  now,
		SyncStatus: models.StatusPendingSync,
	}

	data, err := EncodeWorkout(in)
	if err != nil {
		t.Fatalf("EncodeWorkout() error = %v", err)
	}

	// Bookkeeping never travels on the wire.
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if _, ok := wire["sync_status"]; ok {
		t.Error("encoded payload contains sync_status")
	}
	if v := wire["schema_version"]; v != float64(WorkoutVersion) {
		t.Errorf("schema_version = %v, want %d", v, WorkoutVersion)
	}

	out, err := DecodeWorkout(data)
	if err != nil {
		t.Fatalf("DecodeWorkout() error = %v", err)
	}
	if out.ID != in.ID || out.Kind != in.Kind || len(out.Exercises) != 1 {
		t.Errorf("roundtrip mismatch: got %+v", out)
	}
	if len(out.Exercises[0].Sets) != 1 || out.Exercises[0].Sets[0].Reps != 5 {
		t.Errorf("set schemes lost in roundtrip: %+v", out.Exercises[0].Sets)
	}
}

func TestDecodeWorkoutNewerVersionTolerated(t *testing.T) {
	raw := `{"id": "w1", "schema_version": 3, "kind": "mobility", "future_field": true}`
	w, err := DecodeWorkout([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeWorkout() error = %v", err)
	}
	if w.Kind != models.KindMobility {
		t.Errorf("Kind = %q, want mobility", w.Kind)
	}
}

func TestDecodeSessionV1DefaultsBodyweight(t *testing.T) {
	raw := `{"id": "s1", "workout_id": "w1", "started_at": "2026-01-02T18:00:00Z"}`
	s, err := DecodeSession([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeSession() error = %v", err)
	}
	if s.BodyweightKg != 0 {
		t.Errorf("BodyweightKg = %v, want 0 for v1 payload", s.BodyweightKg)
	}
	if s.SchemaVersion != SessionVersion {
		t.Errorf("SchemaVersion = %d, want %d", s.SchemaVersion, SessionVersion)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := DecodeWorkout([]byte(`{not json`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.EntityType != models.TypeWorkouts {
		t.Errorf("EntityType = %q, want workouts", de.EntityType)
	}
	if !strings.Contains(de.Error(), "workouts") {
		t.Errorf("Error() = %q, want entity type mentioned", de.Error())
	}
}

func TestDecodeMissingID(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func([]byte) (models.Entity, error)
	}{
		{"workout", func(b []byte) (models.Entity, error) { return DecodeWorkout(b) }},
		{"session", func(b []byte) (models.Entity, error) { return DecodeSession(b) }},
		{"message", func(b []byte) (models.Entity, error) { return DecodeMessage(b) }},
		{"profile", func(b []byte) (models.Entity, error) { return DecodeProfile(b) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.fn([]byte(`{}`)); err == nil {
				t.Error("expected error for payload without id")
			}
		})
	}
}

func TestDecodeDispatch(t *testing.T) {
	raw := `{"id": "m1", "body": "hello", "updated_at": "2026-01-02T10:00:00Z"}`
	e, err := Decode(models.TypeMessages, []byte(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	m, ok := e.(*models.Message)
	if !ok {
		t.Fatalf("Decode() returned %T, want *models.Message", e)
	}
	if m.Body != "hello" {
		t.Errorf("Body = %q, want hello", m.Body)
	}

	if _, err := Decode(models.EntityType("bogus"), []byte(`{"id":"x"}`)); err == nil {
		t.Error("expected error for unknown entity type")
	}
}

func TestDecodeProfileDefaultsUnit(t *testing.T) {
	p, err := DecodeProfile([]byte(`{"id": "p1", "display_name": "Marcus"}`))
	if err != nil {
		t.Fatalf("DecodeProfile() error = %v", err)
	}
	if p.Unit != "kg" {
		t.Errorf("Unit = %q, want kg default", p.Unit)
	}
}

func TestEncodeDispatch(t *testing.T) {
	p := &models.Profile{ID: "p1", DisplayName: "Marcus", Unit: "kg"}
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(models.TypeProfiles, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.EntityID() != "p1" {
		t.Errorf("EntityID() = %q, want p1", got.EntityID())
	}
}
