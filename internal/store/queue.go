package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/lift/internal/models"
)

// AppendQueueItem inserts a new queue item.
func (s *Store) AppendQueueItem(item *models.QueueItem) error {
	return s.withWriteLock(func() error {
		notBefore := nullableTime(item.NotBefore)
		lastAttempt := nullableTime(item.LastAttemptAt)
		_, err := s.conn.Exec(`
			INSERT INTO sync_queue (id, entity_type, entity_id, action, payload, priority, retry_count, last_error, last_attempt_at, quarantined, not_before, enqueued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ID, string(item.EntityType), item.EntityID, string(item.Action), string(item.Payload),
			item.Priority, item.RetryCount, item.LastError, lastAttempt, boolToInt(item.Quarantined), notBefore, item.EnqueuedAt.UTC())
		if err != nil {
			return fmt.Errorf("enqueue %s %s: %w", item.EntityType, item.EntityID, err)
		}
		return nil
	})
}

// QueueBatch returns up to limit drainable items in drain order: priority
// ascending, then enqueue time ascending so mutations to one entity stay
// FIFO. Quarantined items and items still backing off are excluded.
func (s *Store) QueueBatch(now time.Time, limit int) ([]models.QueueItem, error) {
	rows, err := s.conn.Query(`
		SELECT id, entity_type, entity_id, action, COALESCE(payload, ''), priority, retry_count, COALESCE(last_error, ''), last_attempt_at, quarantined, not_before, enqueued_at
		FROM sync_queue
		WHERE quarantined = 0 AND (not_before IS NULL OR not_before <= ?)
		ORDER BY priority ASC, enqueued_at ASC, id ASC
		LIMIT ?
	`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

// UpdateQueueItem persists retry bookkeeping for an item that failed.
func (s *Store) UpdateQueueItem(item *models.QueueItem) error {
	return s.withWriteLock(func() error {
		notBefore := nullableTime(item.NotBefore)
		lastAttempt := nullableTime(item.LastAttemptAt)
		res, err := s.conn.Exec(`
			UPDATE sync_queue
			SET retry_count = ?, last_error = ?, last_attempt_at = ?, quarantined = ?, not_before = ?
			WHERE id = ?
		`, item.RetryCount, item.LastError, lastAttempt, boolToInt(item.Quarantined), notBefore, item.ID)
		if err != nil {
			return fmt.Errorf("update queue item %s: %w", item.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("queue item %s not found", item.ID)
		}
		return nil
	})
}

// DeleteQueueItem removes a drained item. Deleting a missing item is not an
// error.
func (s *Store) DeleteQueueItem(id string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete queue item %s: %w", id, err)
		}
		return nil
	})
}

// QueueCounts returns the number of drainable and quarantined items.
func (s *Store) QueueCounts() (pending, quarantined int, err error) {
	err = s.conn.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE quarantined = 0),
			COUNT(*) FILTER (WHERE quarantined = 1)
		FROM sync_queue
	`).Scan(&pending, &quarantined)
	if err != nil {
		return 0, 0, fmt.Errorf("count queue: %w", err)
	}
	return pending, quarantined, nil
}

// PendingCountFor returns the number of drainable items for one entity type.
func (s *Store) PendingCountFor(entityType models.EntityType) (int, error) {
	var n int
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM sync_queue WHERE quarantined = 0 AND entity_type = ?
	`, string(entityType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queue for %s: %w", entityType, err)
	}
	return n, nil
}

// QuarantinedItems returns items that exhausted their retries and now need
// manual intervention, oldest first.
func (s *Store) QuarantinedItems() ([]models.QueueItem, error) {
	rows, err := s.conn.Query(`
		SELECT id, entity_type, entity_id, action, COALESCE(payload, ''), priority, retry_count, COALESCE(last_error, ''), last_attempt_at, quarantined, not_before, enqueued_at
		FROM sync_queue
		WHERE quarantined = 1
		ORDER BY enqueued_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read quarantine: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

// ReleaseQuarantined puts a quarantined item back into automatic drain with
// its retry budget reset.
func (s *Store) ReleaseQuarantined(id string) error {
	return s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			UPDATE sync_queue
			SET quarantined = 0, retry_count = 0, last_error = '', not_before = NULL
			WHERE id = ? AND quarantined = 1
		`, id)
		if err != nil {
			return fmt.Errorf("release queue item %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("no quarantined item %s", id)
		}
		return nil
	})
}

func scanQueueItems(rows *sql.Rows) ([]models.QueueItem, error) {
	var items []models.QueueItem
	for rows.Next() {
		var (
			item        models.QueueItem
			entityType  string
			action      string
			payload     string
			qflag       int
			lastAttempt sql.NullTime
			notBefore   sql.NullTime
			enqueued    time.Time
		)
		if err := rows.Scan(&item.ID, &entityType, &item.EntityID, &action, &payload,
			&item.Priority, &item.RetryCount, &item.LastError, &lastAttempt, &qflag, &notBefore, &enqueued); err != nil {
			return nil, err
		}
		item.EntityType = models.EntityType(entityType)
		item.Action = models.Action(action)
		if payload != "" {
			item.Payload = []byte(payload)
		}
		item.Quarantined = qflag != 0
		if lastAttempt.Valid {
			t := lastAttempt.Time
			item.LastAttemptAt = &t
		}
		if notBefore.Valid {
			t := notBefore.Time
			item.NotBefore = &t
		}
		item.EnqueuedAt = enqueued
		items = append(items, item)
	}
	return items, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// PendingDeleteExists reports whether a non-quarantined delete is queued for
// the entity. Pulls consult this so a remote copy is not resurrected while
// its local delete is still waiting to propagate.
func (s *Store) PendingDeleteExists(entityType models.EntityType, entityID string) (bool, error) {
	var count int
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM sync_queue
		WHERE entity_type = ? AND entity_id = ? AND action = 'delete' AND quarantined = 0
	`, string(entityType), entityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check pending delete: %w", err)
	}
	return count > 0, nil
}

// PurgeQueueItemsFor removes all non-quarantined queue items for one
// entity. Used after a merge: the merged snapshot supersedes any older
// queued mutations.
func (s *Store) PurgeQueueItemsFor(entityType models.EntityType, entityID string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			DELETE FROM sync_queue
			WHERE entity_type = ? AND entity_id = ? AND quarantined = 0
		`, string(entityType), entityID)
		if err != nil {
			return fmt.Errorf("purge queue items for %s %s: %w", entityType, entityID, err)
		}
		return nil
	})
}
