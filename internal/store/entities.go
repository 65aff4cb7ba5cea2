package store

import (
	"database/sql"
	"fmt"

	"github.com/marcus/lift/internal/envelope"
	"github.com/marcus/lift/internal/models"
	"github.com/marcus/lift/internal/synchash"
)

// ErrNotFound is returned when an entity does not exist locally.
var ErrNotFound = fmt.Errorf("entity not found")

// SaveEntity upserts an entity with the given sync status. The stored
// content hash lets later saves detect whether the entity actually changed.
func (s *Store) SaveEntity(e models.Entity, status models.SyncStatus) error {
	if !models.IsValidStatus(status) {
		return fmt.Errorf("invalid sync status %q", status)
	}
	payload, err := envelope.Encode(e)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", e.EntityType(), e.EntityID(), err)
	}
	hash, err := synchash.Hash(e)
	if err != nil {
		return err
	}

	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO entities (entity_type, id, payload, content_hash, sync_status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_type, id) DO UPDATE SET
				payload = excluded.payload,
				content_hash = excluded.content_hash,
				sync_status = excluded.sync_status,
				updated_at = excluded.updated_at
		`, string(e.EntityType()), e.EntityID(), string(payload), int64(hash), string(status), e.ModifiedAt().UTC())
		if err != nil {
			return fmt.Errorf("save %s %s: %w", e.EntityType(), e.EntityID(), err)
		}
		return nil
	})
}

// GetEntity loads one entity. The stored sync status overrides whatever the
// encoded payload carries.
func (s *Store) GetEntity(entityType models.EntityType, id string) (models.Entity, error) {
	var payload, status string
	err := s.conn.QueryRow(`
		SELECT payload, sync_status FROM entities WHERE entity_type = ? AND id = ?
	`, string(entityType), id).Scan(&payload, &status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", entityType, id, err)
	}

	e, err := envelope.Decode(entityType, []byte(payload))
	if err != nil {
		return nil, err
	}
	applyStatus(e, models.SyncStatus(status))
	return e, nil
}

// ContentHash returns the stored content hash for an entity, or false if the
// entity does not exist.
func (s *Store) ContentHash(entityType models.EntityType, id string) (uint64, bool, error) {
	var hash int64
	err := s.conn.QueryRow(`
		SELECT content_hash FROM entities WHERE entity_type = ? AND id = ?
	`, string(entityType), id).Scan(&hash)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(hash), true, nil
}

// ListEntities returns all entities of one type, ordered by id for
// deterministic output.
func (s *Store) ListEntities(entityType models.EntityType) ([]models.Entity, error) {
	rows, err := s.conn.Query(`
		SELECT payload, sync_status FROM entities WHERE entity_type = ? ORDER BY id
	`, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entityType, err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var payload, status string
		if err := rows.Scan(&payload, &status); err != nil {
			return nil, err
		}
		e, err := envelope.Decode(entityType, []byte(payload))
		if err != nil {
			return nil, err
		}
		applyStatus(e, models.SyncStatus(status))
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListPending returns all entities of one type that still need pushing.
func (s *Store) ListPending(entityType models.EntityType) ([]models.Entity, error) {
	rows, err := s.conn.Query(`
		SELECT payload, sync_status FROM entities
		WHERE entity_type = ? AND sync_status IN (?, ?)
		ORDER BY id
	`, string(entityType), string(models.StatusPendingSync), string(models.StatusSyncFailed))
	if err != nil {
		return nil, fmt.Errorf("list pending %s: %w", entityType, err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var payload, status string
		if err := rows.Scan(&payload, &status); err != nil {
			return nil, err
		}
		e, err := envelope.Decode(entityType, []byte(payload))
		if err != nil {
			return nil, err
		}
		applyStatus(e, models.SyncStatus(status))
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetStatus updates the sync status of one entity.
func (s *Store) SetStatus(entityType models.EntityType, id string, status models.SyncStatus) error {
	if !models.IsValidStatus(status) {
		return fmt.Errorf("invalid sync status %q", status)
	}
	return s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			UPDATE entities SET sync_status = ? WHERE entity_type = ? AND id = ?
		`, string(status), string(entityType), id)
		if err != nil {
			return fmt.Errorf("set status %s %s: %w", entityType, id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MarkSynced flips an entity to synced.
func (s *Store) MarkSynced(entityType models.EntityType, id string) error {
	return s.SetStatus(entityType, id, models.StatusSynced)
}

// DeleteEntity removes an entity locally. Deleting a missing entity is not
// an error.
func (s *Store) DeleteEntity(entityType models.EntityType, id string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			DELETE FROM entities WHERE entity_type = ? AND id = ?
		`, string(entityType), id)
		if err != nil {
			return fmt.Errorf("delete %s %s: %w", entityType, id, err)
		}
		return nil
	})
}

func applyStatus(e models.Entity, status models.SyncStatus) {
	switch v := e.(type) {
	case *models.Workout:
		v.SyncStatus = status
	case *models.Session:
		v.SyncStatus = status
	case *models.Message:
		v.SyncStatus = status
	case *models.Profile:
		v.SyncStatus = status
	}
}
