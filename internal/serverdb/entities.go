package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// UpsertEntity stores an entity payload, replacing any previous version.
func (db *ServerDB) UpsertEntity(entityType, entityID string, payload []byte, deviceID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.conn.Exec(`
		INSERT INTO entities (entity_type, entity_id, payload, device_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			payload = excluded.payload,
			device_id = excluded.device_id,
			updated_at = excluded.updated_at`,
		entityType, entityID, payload, deviceID, now)
	if err != nil {
		return fmt.Errorf("upsert entity %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// GetEntity returns the stored payload for one entity.
func (db *ServerDB) GetEntity(entityType, entityID string) ([]byte, error) {
	var payload []byte
	err := db.conn.QueryRow(
		`SELECT payload FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity %s/%s: %w", entityType, entityID, err)
	}
	return payload, nil
}

// DeleteEntity removes one entity. Returns false if it did not exist.
func (db *ServerDB) DeleteEntity(entityType, entityID string) (bool, error) {
	res, err := db.conn.Exec(
		`DELETE FROM entities WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID)
	if err != nil {
		return false, fmt.Errorf("delete entity %s/%s: %w", entityType, entityID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListEntityIDs returns the ids of all stored entities of one type,
// ordered for stable pagination-free listing.
func (db *ServerDB) ListEntityIDs(entityType string) ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT entity_id FROM entities WHERE entity_type = ? ORDER BY entity_id`,
		entityType)
	if err != nil {
		return nil, fmt.Errorf("list entities %s: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountEntities returns the number of stored entities per type.
func (db *ServerDB) CountEntities() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}
