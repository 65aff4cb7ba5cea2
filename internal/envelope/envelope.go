// Package envelope handles schema-versioned encoding and decoding of synced
// entities. Every persisted payload carries a schema_version field; decode
// reads the version first (absent means version 1, the version predating the
// field), dispatches to version-specific field-reading rules, and tolerates
// legacy key names. Encode always writes the current version and the current
// field layout; legacy keys are never written back.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/lift/internal/models"
)

// Current schema versions per entity type. Versions only move forward;
// decode accepts anything up to and including these.
const (
	WorkoutVersion = 2
	SessionVersion = 2
	MessageVersion = 1
	ProfileVersion = 1
)

// DecodeError wraps a payload that cannot be decoded even after version
// dispatch. Callers treat it as non-retryable: retrying cannot fix a
// malformed payload.
type DecodeError struct {
	EntityType models.EntityType
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.EntityType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// schemaVersionOf reads the schema_version field from a raw payload,
// defaulting to 1 when absent or zero.
func schemaVersionOf(data []byte) (int, error) {
	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, err
	}
	if probe.SchemaVersion <= 0 {
		return 1, nil
	}
	return probe.SchemaVersion, nil
}

// workoutWire is the decode-side wire layout for workouts across all
// versions. Version 1 wrote the training modality under "type"; version 2
// renamed it to "kind" and introduced per-exercise positions and nested set
// schemes.
type workoutWire struct {
	SchemaVersion int                 `json:"schema_version"`
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Kind          models.WorkoutKind  `json:"kind"`
	LegacyType    models.WorkoutKind  `json:"type"`
	Notes         string              `json:"notes"`
	Exercises     []exerciseWire      `json:"exercises"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type exerciseWire struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Notes     string             `json:"notes"`
	Position  *int               `json:"position"`
	Sets      []models.SetScheme `json:"sets"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// DecodeWorkout decodes a workout payload written by any schema version.
func DecodeWorkout(data []byte) (*models.Workout, error) {
	if _, err := schemaVersionOf(data); err != nil {
		return nil, &DecodeError{EntityType: models.TypeWorkouts, Err: err}
	}

	var wire workoutWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{EntityType: models.TypeWorkouts, Err: err}
	}
	if wire.ID == "" {
		return nil, &DecodeError{EntityType: models.TypeWorkouts, Err: fmt.Errorf("missing id")}
	}

	// Rename: prefer the new key when both are present.
	kind := wire.Kind
	if kind == "" {
		kind = wire.LegacyType
	}
	if kind == "" {
		kind = models.KindStrength
	}

	w := &models.Workout{
		ID:            wire.ID,
		Name:          wire.Name,
		Kind:          kind,
		Notes:         wire.Notes,
		CreatedAt:     wire.CreatedAt,
		UpdatedAt:     wire.UpdatedAt,
		SyncStatus:    models.StatusSynced,
		SchemaVersion: WorkoutVersion,
	}

	for i, ew := range wire.Exercises {
		ex := models.Exercise{
			ID:        ew.ID,
			Name:      ew.Name,
			Notes:     ew.Notes,
			Sets:      ew.Sets,
			CreatedAt: ew.CreatedAt,
			UpdatedAt: ew.UpdatedAt,
		}
		// Version 1 had no position field; list order was the display order.
		if ew.Position != nil {
			ex.Position = *ew.Position
		} else {
			ex.Position = i
		}
		w.Exercises = append(w.Exercises, ex)
	}

	// Payloads written by a newer client land here too: known fields decoded
	// above, unknown fields dropped on re-encode.
	return w, nil
}

// EncodeWorkout encodes a workout in the current schema layout.
func EncodeWorkout(w *models.Workout) ([]byte, error) {
	out := *w
	out.SchemaVersion = WorkoutVersion
	out.SyncStatus = "" // bookkeeping never travels on the wire
	return json.Marshal(&out)
}

// sessionWire carries all session versions. Version 2 added bodyweight_kg;
// on version 1 payloads it defaults to zero (unknown).
type sessionWire struct {
	SchemaVersion int             `json:"schema_version"`
	ID            string          `json:"id"`
	WorkoutID     string          `json:"workout_id"`
	Notes         string          `json:"notes"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       *time.Time      `json:"ended_at"`
	BodyweightKg  float64         `json:"bodyweight_kg"`
	SetLogs       []models.SetLog `json:"set_logs"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DecodeSession decodes a session payload written by any schema version.
func DecodeSession(data []byte) (*models.Session, error) {
	if _, err := schemaVersionOf(data); err != nil {
		return nil, &DecodeError{EntityType: models.TypeSessions, Err: err}
	}

	var wire sessionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{EntityType: models.TypeSessions, Err: err}
	}
	if wire.ID == "" {
		return nil, &DecodeError{EntityType: models.TypeSessions, Err: fmt.Errorf("missing id")}
	}

	return &models.Session{
		ID:            wire.ID,
		WorkoutID:     wire.WorkoutID,
		Notes:         wire.Notes,
		StartedAt:     wire.StartedAt,
		EndedAt:       wire.EndedAt,
		BodyweightKg:  wire.BodyweightKg,
		SetLogs:       wire.SetLogs,
		CreatedAt:     wire.CreatedAt,
		UpdatedAt:     wire.UpdatedAt,
		SyncStatus:    models.StatusSynced,
		SchemaVersion: SessionVersion,
	}, nil
}

// EncodeSession encodes a session in the current schema layout.
func EncodeSession(s *models.Session) ([]byte, error) {
	out := *s
	out.SchemaVersion = SessionVersion
	out.SyncStatus = ""
	return json.Marshal(&out)
}

// DecodeMessage decodes a message payload.
func DecodeMessage(data []byte) (*models.Message, error) {
	if _, err := schemaVersionOf(data); err != nil {
		return nil, &DecodeError{EntityType: models.TypeMessages, Err: err}
	}
	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &DecodeError{EntityType: models.TypeMessages, Err: err}
	}
	if m.ID == "" {
		return nil, &DecodeError{EntityType: models.TypeMessages, Err: fmt.Errorf("missing id")}
	}
	m.SyncStatus = models.StatusSynced
	m.SchemaVersion = MessageVersion
	return &m, nil
}

// EncodeMessage encodes a message in the current schema layout.
func EncodeMessage(m *models.Message) ([]byte, error) {
	out := *m
	out.SchemaVersion = MessageVersion
	out.SyncStatus = ""
	return json.Marshal(&out)
}

// DecodeProfile decodes a profile payload.
func DecodeProfile(data []byte) (*models.Profile, error) {
	if _, err := schemaVersionOf(data); err != nil {
		return nil, &DecodeError{EntityType: models.TypeProfiles, Err: err}
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{EntityType: models.TypeProfiles, Err: err}
	}
	if p.ID == "" {
		return nil, &DecodeError{EntityType: models.TypeProfiles, Err: fmt.Errorf("missing id")}
	}
	if p.Unit == "" {
		p.Unit = "kg"
	}
	p.SyncStatus = models.StatusSynced
	p.SchemaVersion = ProfileVersion
	return &p, nil
}

// EncodeProfile encodes a profile in the current schema layout.
func EncodeProfile(p *models.Profile) ([]byte, error) {
	out := *p
	out.SchemaVersion = ProfileVersion
	out.SyncStatus = ""
	return json.Marshal(&out)
}

// Decode dispatches to the version-aware decoder for the entity type.
func Decode(entityType models.EntityType, data []byte) (models.Entity, error) {
	switch entityType {
	case models.TypeWorkouts:
		return DecodeWorkout(data)
	case models.TypeSessions:
		return DecodeSession(data)
	case models.TypeMessages:
		return DecodeMessage(data)
	case models.TypeProfiles:
		return DecodeProfile(data)
	default:
		return nil, &DecodeError{EntityType: entityType, Err: fmt.Errorf("unknown entity type")}
	}
}

// Encode serializes an entity in its current schema layout.
func Encode(e models.Entity) ([]byte, error) {
	switch v := e.(type) {
	case *models.Workout:
		return EncodeWorkout(v)
	case *models.Session:
		return EncodeSession(v)
	case *models.Message:
		return EncodeMessage(v)
	case *models.Profile:
		return EncodeProfile(v)
	default:
		return nil, fmt.Errorf("encode: unsupported entity type %q", e.EntityType())
	}
}
