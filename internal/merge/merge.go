// Package merge resolves conflicts between a local and a remote snapshot of
// the same entity using field-group last-write-wins with a deep merge of
// id-keyed child collections.
//
// Top-level scalar fields move as one group: the side with the newer
// updated_at supplies all of them, and on an exact tie the remote side wins
// so every device converges on the same answer. Child collections are
// unioned by id. A child present on only one side is kept; the merge cannot
// distinguish "added here" from "deleted there", so deletions of children do
// not propagate and resurrecting a deleted child is the accepted cost.
// A child present on both sides resolves by its own updated_at, with ties
// keeping the local copy, and its nested collections merge recursively.
//
// Merged output is deterministically ordered, so two devices that merge the
// same pair of snapshots in either direction produce identical bytes.
package merge

import (
	"fmt"
	"sort"
	"time"

	"github.com/marcus/lift/internal/models"
)

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// remoteWinsTopLevel reports whether the remote snapshot supplies the
// top-level scalar group. Ties go to remote.
func remoteWinsTopLevel(local, remote time.Time) bool {
	return !local.After(remote)
}

// localWinsChild reports whether the local copy of a matched child is kept.
// Ties go to local.
func localWinsChild(local, remote time.Time) bool {
	return !local.Before(remote)
}

// Workouts merges two snapshots of the same workout.
func Workouts(local, remote *models.Workout) (*models.Workout, error) {
	if local.ID != remote.ID {
		return nil, fmt.Errorf("merge workouts: id mismatch %q vs %q", local.ID, remote.ID)
	}

	winner, loser := local, remote
	if remoteWinsTopLevel(local.UpdatedAt, remote.UpdatedAt) {
		winner, loser = remote, local
	}

	out := &models.Workout{
		ID:            local.ID,
		Name:          winner.Name,
		Kind:          winner.Kind,
		Notes:         winner.Notes,
		CreatedAt:     winner.CreatedAt,
		UpdatedAt:     maxTime(local.UpdatedAt, remote.UpdatedAt),
		SchemaVersion: max(local.SchemaVersion, remote.SchemaVersion),
		SyncStatus:    models.StatusSynced,
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = loser.CreatedAt
	}

	out.Exercises = mergeExercises(local.Exercises, remote.Exercises)
	return out, nil
}

func mergeExercises(local, remote []models.Exercise) []models.Exercise {
	byID := make(map[string]models.Exercise, len(local)+len(remote))
	for _, ex := range local {
		byID[ex.ID] = ex
	}
	for _, rex := range remote {
		lex, ok := byID[rex.ID]
		if !ok {
			byID[rex.ID] = rex
			continue
		}
		merged := lex
		if !localWinsChild(lex.UpdatedAt, rex.UpdatedAt) {
			merged = rex
		}
		merged.UpdatedAt = maxTime(lex.UpdatedAt, rex.UpdatedAt)
		merged.Sets = mergeSetSchemes(lex.Sets, rex.Sets)
		byID[rex.ID] = merged
	}

	if len(byID) == 0 {
		return nil
	}
	out := make([]models.Exercise, 0, len(byID))
	for _, ex := range byID {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func mergeSetSchemes(local, remote []models.SetScheme) []models.SetScheme {
	byID := make(map[string]models.SetScheme, len(local)+len(remote))
	for _, s := range local {
		byID[s.ID] = s
	}
	for _, rs := range remote {
		ls, ok := byID[rs.ID]
		if !ok {
			byID[rs.ID] = rs
			continue
		}
		merged := ls
		if !localWinsChild(ls.UpdatedAt, rs.UpdatedAt) {
			merged = rs
		}
		merged.UpdatedAt = maxTime(ls.UpdatedAt, rs.UpdatedAt)
		byID[rs.ID] = merged
	}

	if len(byID) == 0 {
		return nil
	}
	out := make([]models.SetScheme, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sessions merges two snapshots of the same training session.
func Sessions(local, remote *models.Session) (*models.Session, error) {
	if local.ID != remote.ID {
		return nil, fmt.Errorf("merge sessions: id mismatch %q vs %q", local.ID, remote.ID)
	}

	winner, loser := local, remote
	if remoteWinsTopLevel(local.UpdatedAt, remote.UpdatedAt) {
		winner, loser = remote, local
	}

	out := &models.Session{
		ID:            local.ID,
		WorkoutID:     winner.WorkoutID,
		Notes:         winner.Notes,
		StartedAt:     winner.StartedAt,
		EndedAt:       winner.EndedAt,
		BodyweightKg:  winner.BodyweightKg,
		CreatedAt:     winner.CreatedAt,
		UpdatedAt:     maxTime(local.UpdatedAt, remote.UpdatedAt),
		SchemaVersion: max(local.SchemaVersion, remote.SchemaVersion),
		SyncStatus:    models.StatusSynced,
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = loser.CreatedAt
	}

	out.SetLogs = mergeSetLogs(local.SetLogs, remote.SetLogs)
	return out, nil
}

func mergeSetLogs(local, remote []models.SetLog) []models.SetLog {
	byID := make(map[string]models.SetLog, len(local)+len(remote))
	for _, l := range local {
		byID[l.ID] = l
	}
	for _, rl := range remote {
		ll, ok := byID[rl.ID]
		if !ok {
			byID[rl.ID] = rl
			continue
		}
		merged := ll
		if !localWinsChild(ll.UpdatedAt, rl.UpdatedAt) {
			merged = rl
		}
		merged.UpdatedAt = maxTime(ll.UpdatedAt, rl.UpdatedAt)
		byID[rl.ID] = merged
	}

	if len(byID) == 0 {
		return nil
	}
	out := make([]models.SetLog, 0, len(byID))
	for _, l := range byID {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Messages merges two snapshots of the same message. Messages have no child
// collections, so this is plain group LWW.
func Messages(local, remote *models.Message) (*models.Message, error) {
	if local.ID != remote.ID {
		return nil, fmt.Errorf("merge messages: id mismatch %q vs %q", local.ID, remote.ID)
	}
	winner := local
	if remoteWinsTopLevel(local.UpdatedAt, remote.UpdatedAt) {
		winner = remote
	}
	out := *winner
	out.UpdatedAt = maxTime(local.UpdatedAt, remote.UpdatedAt)
	out.SchemaVersion = max(local.SchemaVersion, remote.SchemaVersion)
	out.SyncStatus = models.StatusSynced
	return &out, nil
}

// Profiles merges two snapshots of the same profile.
func Profiles(local, remote *models.Profile) (*models.Profile, error) {
	if local.ID != remote.ID {
		return nil, fmt.Errorf("merge profiles: id mismatch %q vs %q", local.ID, remote.ID)
	}
	winner := local
	if remoteWinsTopLevel(local.UpdatedAt, remote.UpdatedAt) {
		winner = remote
	}
	out := *winner
	out.UpdatedAt = maxTime(local.UpdatedAt, remote.UpdatedAt)
	out.SchemaVersion = max(local.SchemaVersion, remote.SchemaVersion)
	out.SyncStatus = models.StatusSynced
	return &out, nil
}

// Entities merges any two snapshots of the same entity, dispatching on
// concrete type. The two sides must be the same entity type and id.
func Entities(local, remote models.Entity) (models.Entity, error) {
	if local.EntityType() != remote.EntityType() {
		return nil, fmt.Errorf("merge: type mismatch %q vs %q", local.EntityType(), remote.EntityType())
	}
	switch l := local.(type) {
	case *models.Workout:
		return Workouts(l, remote.(*models.Workout))
	case *models.Session:
		return Sessions(l, remote.(*models.Session))
	case *models.Message:
		return Messages(l, remote.(*models.Message))
	case *models.Profile:
		return Profiles(l, remote.(*models.Profile))
	default:
		return nil, fmt.Errorf("merge: unsupported entity type %q", local.EntityType())
	}
}
