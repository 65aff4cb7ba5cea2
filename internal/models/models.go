package models

import (
	"time"
)

// SyncStatus represents an entity's position in the sync lifecycle
type SyncStatus string

const (
	StatusSynced      SyncStatus = "synced"
	StatusPendingSync SyncStatus = "pending_sync"
	StatusSyncing     SyncStatus = "syncing"
	StatusSyncFailed  SyncStatus = "sync_failed"
	// StatusConflict is reserved for merges that cannot be resolved
	// automatically. The default merge always resolves, so this status is
	// surfaced for future manual-resolution flows only.
	StatusConflict SyncStatus = "conflict"
)

// EntityType identifies a syncable entity kind
type EntityType string

const (
	TypeSetLogs  EntityType = "set_logs"
	TypeSessions EntityType = "sessions"
	TypeMessages EntityType = "messages"
	TypeWorkouts EntityType = "workouts"
	TypeProfiles EntityType = "profiles"
)

// drainPriorities fixes the drain order of queued mutations: lower drains
// first. Fine-grained logged data reaches the server before the aggregates
// that reference it, and library/template data goes last.
var drainPriorities = map[EntityType]int{
	TypeSetLogs:  10,
	TypeSessions: 20,
	TypeMessages: 30,
	TypeWorkouts: 40,
	TypeProfiles: 50,
}

// Priority returns the drain priority for the entity type (lower first).
// Unknown types sort after all known ones.
func (t EntityType) Priority() int {
	if p, ok := drainPriorities[t]; ok {
		return p
	}
	return 100
}

// Action represents a queued mutation kind
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entity is the capability every syncable record exposes: stable identity,
// a modification timestamp, a sync status, and a schema version.
type Entity interface {
	EntityID() string
	EntityType() EntityType
	ModifiedAt() time.Time
	Status() SyncStatus
	Version() int
}

// WorkoutKind represents the training modality of a workout template
type WorkoutKind string

const (
	KindStrength WorkoutKind = "strength"
	KindCardio   WorkoutKind = "cardio"
	KindMobility WorkoutKind = "mobility"
)

// Workout is a workout template: a composite entity whose exercises (and
// their set schemes) are independently editable across devices.
type Workout struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Kind          WorkoutKind `json:"kind"`
	Notes         string      `json:"notes,omitempty"`
	Exercises     []Exercise  `json:"exercises,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	SyncStatus    SyncStatus  `json:"sync_status,omitempty"`
	SchemaVersion int         `json:"schema_version,omitempty"`
}

func (w *Workout) EntityID() string       { return w.ID }
func (w *Workout) EntityType() EntityType { return TypeWorkouts }
func (w *Workout) ModifiedAt() time.Time  { return w.UpdatedAt }
func (w *Workout) Status() SyncStatus     { return w.SyncStatus }
func (w *Workout) Version() int           { return w.SchemaVersion }

// Exercise is one movement inside a workout template. It carries its own
// updated_at so concurrent edits to different exercises never collide.
type Exercise struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Notes     string      `json:"notes,omitempty"`
	Position  int         `json:"position"`
	Sets      []SetScheme `json:"sets,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SetScheme is a prescribed set within an exercise (reps x weight, rest).
type SetScheme struct {
	ID        string    `json:"id"`
	Reps      int       `json:"reps"`
	WeightKg  float64   `json:"weight_kg,omitempty"`
	RestSec   int       `json:"rest_sec,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a logged workout: the record of actually performing a template
// (or an ad-hoc workout), holding the set logs completed during it.
type Session struct {
	ID            string     `json:"id"`
	WorkoutID     string     `json:"workout_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	BodyweightKg  float64    `json:"bodyweight_kg,omitempty"`
	SetLogs       []SetLog   `json:"set_logs,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	SyncStatus    SyncStatus `json:"sync_status,omitempty"`
	SchemaVersion int        `json:"schema_version,omitempty"`
}

func (s *Session) EntityID() string       { return s.ID }
func (s *Session) EntityType() EntityType { return TypeSessions }
func (s *Session) ModifiedAt() time.Time  { return s.UpdatedAt }
func (s *Session) Status() SyncStatus     { return s.SyncStatus }
func (s *Session) Version() int           { return s.SchemaVersion }

// SetLog is one completed set inside a session.
type SetLog struct {
	ID          string    `json:"id"`
	ExerciseID  string    `json:"exercise_id,omitempty"`
	Reps        int       `json:"reps"`
	WeightKg    float64   `json:"weight_kg,omitempty"`
	RPE         float64   `json:"rpe,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is a flat syncable entity: a coaching or chat message.
type Message struct {
	ID            string     `json:"id"`
	ThreadID      string     `json:"thread_id,omitempty"`
	SenderID      string     `json:"sender_id,omitempty"`
	Body          string     `json:"body"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	SyncStatus    SyncStatus `json:"sync_status,omitempty"`
	SchemaVersion int        `json:"schema_version,omitempty"`
}

func (m *Message) EntityID() string       { return m.ID }
func (m *Message) EntityType() EntityType { return TypeMessages }
func (m *Message) ModifiedAt() time.Time  { return m.UpdatedAt }
func (m *Message) Status() SyncStatus     { return m.SyncStatus }
func (m *Message) Version() int           { return m.SchemaVersion }

// Profile is the per-user profile record.
type Profile struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"display_name"`
	BodyweightKg  float64    `json:"bodyweight_kg,omitempty"`
	Unit          string     `json:"unit,omitempty"` // "kg" or "lb"
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	SyncStatus    SyncStatus `json:"sync_status,omitempty"`
	SchemaVersion int        `json:"schema_version,omitempty"`
}

func (p *Profile) EntityID() string       { return p.ID }
func (p *Profile) EntityType() EntityType { return TypeProfiles }
func (p *Profile) ModifiedAt() time.Time  { return p.UpdatedAt }
func (p *Profile) Status() SyncStatus     { return p.SyncStatus }
func (p *Profile) Version() int           { return p.SchemaVersion }

// IsValidStatus checks if a sync status is valid
func IsValidStatus(s SyncStatus) bool {
	switch s {
	case StatusSynced, StatusPendingSync, StatusSyncing, StatusSyncFailed, StatusConflict:
		return true
	}
	return false
}

// IsValidEntityType checks if an entity type is valid
func IsValidEntityType(t EntityType) bool {
	_, ok := drainPriorities[t]
	return ok
}

// IsValidAction checks if a queue action is valid
func IsValidAction(a Action) bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// IsValidKind checks if a workout kind is valid
func IsValidKind(k WorkoutKind) bool {
	switch k {
	case KindStrength, KindCardio, KindMobility:
		return true
	}
	return false
}

// EntityTypes returns all syncable entity types in drain-priority order.
func EntityTypes() []EntityType {
	return []EntityType{TypeSetLogs, TypeSessions, TypeMessages, TypeWorkouts, TypeProfiles}
}

// NormalizeEntityType maps singular aliases to canonical entity type names.
// Returns false when the type is not syncable.
func NormalizeEntityType(s string) (EntityType, bool) {
	switch s {
	case "set_log", "set_logs":
		return TypeSetLogs, true
	case "session", "sessions":
		return TypeSessions, true
	case "message", "messages":
		return TypeMessages, true
	case "workout", "workouts":
		return TypeWorkouts, true
	case "profile", "profiles":
		return TypeProfiles, true
	default:
		return "", false
	}
}

// QueueItem is one durable outbound sync operation. Items survive restarts
// and drain oldest-first within an entity type.
type QueueItem struct {
	ID            string
	EntityType    EntityType
	EntityID      string
	Action        Action
	Payload       []byte
	Priority      int
	RetryCount    int
	LastError     string
	LastAttemptAt *time.Time
	Quarantined   bool
	NotBefore     *time.Time
	EnqueuedAt    time.Time
}
