package store

import (
	"fmt"
	"time"

	"github.com/marcus/lift/internal/models"
)

// HistoryEntry is one row from the sync_history table.
type HistoryEntry struct {
	ID         int64
	Direction  string // "push" or "pull"
	Action     models.Action
	EntityType models.EntityType
	EntityID   string
	DeviceID   string
	Timestamp  time.Time
}

// RecordSync appends one entry to the sync history.
func (s *Store) RecordSync(direction string, action models.Action, entityType models.EntityType, entityID, deviceID string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO sync_history (direction, action, entity_type, entity_id, device_id, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
		`, direction, string(action), string(entityType), entityID, deviceID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("record sync history: %w", err)
		}
		return nil
	})
}

// HistoryTail returns the last limit entries in chronological order, oldest
// first.
func (s *Store) HistoryTail(limit int) ([]HistoryEntry, error) {
	rows, err := s.conn.Query(`
		SELECT id, direction, action, entity_type, entity_id, COALESCE(device_id, ''), timestamp
		FROM sync_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read sync history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e          HistoryEntry
			action     string
			entityType string
		)
		if err := rows.Scan(&e.ID, &e.Direction, &action, &entityType, &e.EntityID, &e.DeviceID, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = models.Action(action)
		e.EntityType = models.EntityType(entityType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
