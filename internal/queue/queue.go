// Package queue implements the durable outbound sync queue. Items are
// persisted through a Storage so they survive restarts, drain in priority
// order against a Remote, and move to quarantine after exhausting their
// retry budget. Quarantined items stay in the queue for inspection but are
// never drained automatically again.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/lift/internal/envelope"
	"github.com/marcus/lift/internal/models"
	"github.com/marcus/lift/internal/store"
)

// MaxRetries is the number of delivery attempts before an item is
// quarantined for manual intervention.
const MaxRetries = 5

const drainBatchSize = 100

// Storage persists queue items and the sync bookkeeping around them.
// *store.Store satisfies it.
type Storage interface {
	AppendQueueItem(item *models.QueueItem) error
	QueueBatch(now time.Time, limit int) ([]models.QueueItem, error)
	UpdateQueueItem(item *models.QueueItem) error
	DeleteQueueItem(id string) error
	QueueCounts() (pending, quarantined int, err error)
	PendingCountFor(entityType models.EntityType) (int, error)
	QuarantinedItems() ([]models.QueueItem, error)
	ReleaseQuarantined(id string) error
	MarkSynced(entityType models.EntityType, id string) error
	RecordSync(direction string, action models.Action, entityType models.EntityType, entityID, deviceID string) error
}

// Remote applies mutations to the remote store.
type Remote interface {
	Put(ctx context.Context, entityType models.EntityType, id string, payload []byte) error
	Delete(ctx context.Context, entityType models.EntityType, id string) error
}

// Queue coordinates durable queue items between Storage and a Remote.
type Queue struct {
	storage  Storage
	deviceID string

	// now and backoff are swappable for tests
	now     func() time.Time
	backoff func(retryCount int) time.Duration
}

// New creates a queue on top of the given storage. deviceID tags sync
// history entries and may be empty.
func New(storage Storage, deviceID string) *Queue {
	return &Queue{
		storage:  storage,
		deviceID: deviceID,
		now:      time.Now,
		backoff:  Backoff,
	}
}

// Enqueue appends one mutation for later delivery. For deletes the payload
// may be nil.
func (q *Queue) Enqueue(entityType models.EntityType, entityID string, action models.Action, payload []byte) (*models.QueueItem, error) {
	if !models.IsValidEntityType(entityType) {
		return nil, fmt.Errorf("enqueue: invalid entity type %q", entityType)
	}
	if !models.IsValidAction(action) {
		return nil, fmt.Errorf("enqueue: invalid action %q", action)
	}
	if entityID == "" {
		return nil, fmt.Errorf("enqueue: empty entity id")
	}

	item := &models.QueueItem{
		ID:         uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Payload:    payload,
		Priority:   entityType.Priority(),
		EnqueuedAt: q.now().UTC(),
	}
	if err := q.storage.AppendQueueItem(item); err != nil {
		return nil, err
	}
	slog.Debug("enqueued", "type", entityType, "id", entityID, "action", action)
	return item, nil
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Delivered   int
	Failed      int
	Quarantined int
}

// Drain attempts to deliver all currently drainable items in priority order.
// Failures increment the item's retry count and schedule a backoff; an item
// whose retry count reaches MaxRetries is quarantined. Drain stops early
// when ctx is cancelled and returns what it managed so far.
func (q *Queue) Drain(ctx context.Context, remote Remote) (DrainResult, error) {
	var result DrainResult

	items, err := q.storage.QueueBatch(q.now(), drainBatchSize)
	if err != nil {
		return result, err
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := &items[i]
		if err := q.deliver(ctx, remote, item); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			q.recordFailure(item, err, &result)
			continue
		}

		if err := q.storage.DeleteQueueItem(item.ID); err != nil {
			return result, err
		}
		if err := q.storage.MarkSynced(item.EntityType, item.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return result, err
		}
		if err := q.storage.RecordSync("push", item.Action, item.EntityType, item.EntityID, q.deviceID); err != nil {
			slog.Warn("record sync history failed", "id", item.EntityID, "err", err)
		}
		result.Delivered++
	}
	return result, nil
}

func (q *Queue) deliver(ctx context.Context, remote Remote, item *models.QueueItem) error {
	switch item.Action {
	case models.ActionCreate, models.ActionUpdate:
		payload, err := q.recodePayload(item)
		if err != nil {
			// A payload that cannot be decoded will never deliver;
			// quarantine immediately instead of burning retries.
			item.RetryCount = MaxRetries - 1
			return err
		}
		return remote.Put(ctx, item.EntityType, item.EntityID, payload)
	case models.ActionDelete:
		return remote.Delete(ctx, item.EntityType, item.EntityID)
	default:
		item.RetryCount = MaxRetries - 1
		return fmt.Errorf("unknown action %q", item.Action)
	}
}

// recodePayload re-encodes the stored payload at the current schema version
// before pushing. Set logs travel as raw JSON; they have no envelope of
// their own.
func (q *Queue) recodePayload(item *models.QueueItem) ([]byte, error) {
	if item.EntityType == models.TypeSetLogs {
		if !json.Valid(item.Payload) {
			return nil, fmt.Errorf("invalid set log payload")
		}
		return item.Payload, nil
	}
	e, err := envelope.Decode(item.EntityType, item.Payload)
	if err != nil {
		return nil, err
	}
	return envelope.Encode(e)
}

func (q *Queue) recordFailure(item *models.QueueItem, cause error, result *DrainResult) {
	item.RetryCount++
	if item.RetryCount > MaxRetries {
		item.RetryCount = MaxRetries
	}
	item.LastError = cause.Error()
	attemptedAt := q.now().UTC()
	item.LastAttemptAt = &attemptedAt

	if item.RetryCount >= MaxRetries {
		item.Quarantined = true
		item.NotBefore = nil
		result.Quarantined++
		slog.Warn("queue item quarantined",
			"type", item.EntityType, "id", item.EntityID,
			"retries", item.RetryCount, "err", cause)
	} else {
		nb := attemptedAt.Add(q.backoff(item.RetryCount))
		item.NotBefore = &nb
		result.Failed++
		slog.Debug("queue item failed, will retry",
			"type", item.EntityType, "id", item.EntityID,
			"retries", item.RetryCount, "err", cause)
	}

	if err := q.storage.UpdateQueueItem(item); err != nil {
		slog.Error("persist queue item failure", "id", item.ID, "err", err)
	}
}

// PendingCount returns the number of drainable items.
func (q *Queue) PendingCount() (int, error) {
	pending, _, err := q.storage.QueueCounts()
	return pending, err
}

// PendingCountFor returns the number of drainable items for one entity type.
func (q *Queue) PendingCountFor(entityType models.EntityType) (int, error) {
	return q.storage.PendingCountFor(entityType)
}

// QuarantinedCount returns the number of items needing manual intervention.
func (q *Queue) QuarantinedCount() (int, error) {
	_, quarantined, err := q.storage.QueueCounts()
	return quarantined, err
}

// Quarantined lists items needing manual intervention, oldest first.
func (q *Queue) Quarantined() ([]models.QueueItem, error) {
	return q.storage.QuarantinedItems()
}

// Release puts a quarantined item back into automatic drain with a fresh
// retry budget.
func (q *Queue) Release(id string) error {
	return q.storage.ReleaseQuarantined(id)
}

// Backoff returns the delay before retry number retryCount, exponential
// from one second with a five minute cap and 20% jitter so a fleet of
// devices does not retry in lockstep.
func Backoff(retryCount int) time.Duration {
	const (
		base     = time.Second
		maxDelay = 5 * time.Minute
	)
	d := base
	if retryCount > 1 {
		d = base << (retryCount - 1)
	}
	if d > maxDelay || d < 0 {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	if rand.Intn(2) == 0 {
		return d - jitter
	}
	return d + jitter
}
