// Package coordinator orchestrates the sync cycle: pull remote snapshots,
// deep-merge them with local state, persist the merged result, and push
// local mutations through the durable queue. One coordinator owns the sync
// lifecycle for a device; passes are serialized so a scheduled pass and a
// manual pass never interleave.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/lift/internal/envelope"
	"github.com/marcus/lift/internal/merge"
	"github.com/marcus/lift/internal/models"
	"github.com/marcus/lift/internal/queue"
	"github.com/marcus/lift/internal/remote"
	"github.com/marcus/lift/internal/store"
	"github.com/marcus/lift/internal/synchash"
)

// State describes what the coordinator is currently doing.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateOffline State = "offline"
	StateError   State = "error"
)

// RemoteStore is the remote side of a sync pass. *remote.Client satisfies
// it.
type RemoteStore interface {
	Get(ctx context.Context, entityType models.EntityType, id string) ([]byte, error)
	Put(ctx context.Context, entityType models.EntityType, id string, payload []byte) error
	Delete(ctx context.Context, entityType models.EntityType, id string) error
	List(ctx context.Context, entityType models.EntityType) ([]string, error)
	Health(ctx context.Context) (*remote.HealthResponse, error)
}

// Status is a point-in-time snapshot of sync health.
type Status struct {
	State       State
	LastSyncAt  time.Time
	LastError   string
	Pending     int
	Quarantined int
}

// Coordinator drives sync between the local store and a remote.
type Coordinator struct {
	local    *store.Store
	remote   RemoteStore
	queue    *queue.Queue
	deviceID string

	syncMu sync.Mutex // serializes sync passes

	mu       sync.RWMutex // guards the fields below
	state    State
	lastSync time.Time
	lastErr  string
}

// New wires a coordinator from its three collaborators.
func New(local *store.Store, rs RemoteStore, q *queue.Queue, deviceID string) *Coordinator {
	return &Coordinator{
		local:    local,
		remote:   rs,
		queue:    q,
		deviceID: deviceID,
		state:    StateIdle,
	}
}

// Status reports current sync state plus queue depth.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	st := Status{State: c.state, LastSyncAt: c.lastSync, LastError: c.lastErr}
	c.mu.RUnlock()

	if pending, err := c.queue.PendingCount(); err == nil {
		st.Pending = pending
	}
	if quarantined, err := c.queue.QuarantinedCount(); err == nil {
		st.Quarantined = quarantined
	}
	return st
}

func (c *Coordinator) setState(s State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	if err != nil {
		c.lastErr = err.Error()
	} else {
		c.lastErr = ""
	}
	if s == StateIdle && err == nil {
		c.lastSync = time.Now().UTC()
	}
}

// Save persists a local edit and queues it for push, unless the entity's
// content is unchanged. Bookkeeping-only edits never hit the network.
// Returns true when the entity was actually dirty.
func (c *Coordinator) Save(e models.Entity) (bool, error) {
	newHash, err := synchash.Hash(e)
	if err != nil {
		return false, err
	}

	oldHash, exists, err := c.local.ContentHash(e.EntityType(), e.EntityID())
	if err != nil {
		return false, err
	}
	if exists && oldHash == newHash {
		return false, nil
	}

	if err := c.local.SaveEntity(e, models.StatusPendingSync); err != nil {
		return false, err
	}

	payload, err := envelope.Encode(e)
	if err != nil {
		return false, err
	}
	action := models.ActionUpdate
	if !exists {
		action = models.ActionCreate
	}
	if _, err := c.queue.Enqueue(e.EntityType(), e.EntityID(), action, payload); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an entity locally and queues the remote delete.
func (c *Coordinator) Delete(entityType models.EntityType, id string) error {
	if err := c.local.DeleteEntity(entityType, id); err != nil {
		return err
	}
	_, err := c.queue.Enqueue(entityType, id, models.ActionDelete, nil)
	return err
}

// Sync runs one full pass: pull and merge every remote entity, then drain
// the outbound queue. A pass that cannot reach the server leaves local
// state untouched and reports offline.
func (c *Coordinator) Sync(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	c.setState(StateSyncing, nil)

	if _, err := c.remote.Health(ctx); err != nil {
		c.setState(StateOffline, err)
		return fmt.Errorf("server unreachable: %w", err)
	}

	if err := c.pullAll(ctx); err != nil {
		c.setState(StateError, err)
		return err
	}

	if _, err := c.queue.Drain(ctx, c.remote); err != nil {
		c.setState(StateError, err)
		return err
	}

	c.setState(StateIdle, nil)
	return nil
}

// Push drains the outbound queue without pulling first.
func (c *Coordinator) Push(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	c.setState(StateSyncing, nil)
	if _, err := c.remote.Health(ctx); err != nil {
		c.setState(StateOffline, err)
		return fmt.Errorf("server unreachable: %w", err)
	}
	if _, err := c.queue.Drain(ctx, c.remote); err != nil {
		c.setState(StateError, err)
		return err
	}
	c.setState(StateIdle, nil)
	return nil
}

// Pull merges every remote entity without draining the queue.
func (c *Coordinator) Pull(ctx context.Context) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	c.setState(StateSyncing, nil)
	if _, err := c.remote.Health(ctx); err != nil {
		c.setState(StateOffline, err)
		return fmt.Errorf("server unreachable: %w", err)
	}
	if err := c.pullAll(ctx); err != nil {
		c.setState(StateError, err)
		return err
	}
	c.setState(StateIdle, nil)
	return nil
}

// pullAll merges every remote entity of every envelope-backed type.
func (c *Coordinator) pullAll(ctx context.Context) error {
	for _, entityType := range models.EntityTypes() {
		if entityType == models.TypeSetLogs {
			// Set logs live inside their session payloads on pull.
			continue
		}
		ids, err := c.remote.List(ctx, entityType)
		if err != nil {
			return fmt.Errorf("list remote %s: %w", entityType, err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.pullOne(ctx, entityType, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncEntity pulls and merges a single entity. A remote copy that does not
// exist is not an error; the local copy simply stays queued for push.
func (c *Coordinator) SyncEntity(ctx context.Context, entityType models.EntityType, id string) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	err := c.pullOne(ctx, entityType, id)
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	return err
}

func (c *Coordinator) pullOne(ctx context.Context, entityType models.EntityType, id string) error {
	payload, err := c.remote.Get(ctx, entityType, id)
	if err != nil {
		return fmt.Errorf("pull %s %s: %w", entityType, id, err)
	}

	remoteEntity, err := envelope.Decode(entityType, payload)
	if err != nil {
		// A payload this device cannot decode is left alone remotely;
		// newer devices may still read it.
		slog.Warn("skipping undecodable remote entity", "type", entityType, "id", id, "err", err)
		return nil
	}

	localEntity, err := c.local.GetEntity(entityType, id)
	if errors.Is(err, store.ErrNotFound) {
		// Do not resurrect an entity whose local delete is still queued.
		deletePending, derr := c.local.PendingDeleteExists(entityType, id)
		if derr != nil {
			return derr
		}
		if deletePending {
			return nil
		}
		if err := c.local.SaveEntity(remoteEntity, models.StatusSynced); err != nil {
			return err
		}
		return c.recordPull(entityType, id)
	}
	if err != nil {
		return err
	}

	merged, err := merge.Entities(localEntity, remoteEntity)
	if err != nil {
		return err
	}

	// The merged snapshot incorporates every local edit that was queued for
	// this entity, so older queued mutations are superseded.
	if err := c.local.PurgeQueueItemsFor(entityType, id); err != nil {
		return err
	}

	// The merged result needs pushing only if it differs from what the
	// server already has.
	needsPush, err := synchash.NeedsSync(merged, remoteEntity)
	if err != nil {
		return err
	}

	status := models.StatusSynced
	if needsPush {
		status = models.StatusPendingSync
	}
	if err := c.local.SaveEntity(merged, status); err != nil {
		return err
	}
	if needsPush {
		mergedPayload, err := envelope.Encode(merged)
		if err != nil {
			return err
		}
		if _, err := c.queue.Enqueue(entityType, id, models.ActionUpdate, mergedPayload); err != nil {
			return err
		}
	}
	return c.recordPull(entityType, id)
}

func (c *Coordinator) recordPull(entityType models.EntityType, id string) error {
	if err := c.local.RecordSync("pull", models.ActionUpdate, entityType, id, c.deviceID); err != nil {
		slog.Warn("record pull history failed", "id", id, "err", err)
	}
	return nil
}
