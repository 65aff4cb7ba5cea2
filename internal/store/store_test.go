package store

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/lift/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresInit(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("Open() on empty dir should fail")
	}
}

func TestInitializeThenOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	s.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	v, err := s.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion() error = %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
}

func TestEntityRoundtrip(t *testing.T) {
	s := setupStore(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w := &models.Workout{
		ID:        "w1",
		Name:      "Push Day",
		Kind:      models.KindStrength,
		Exercises: []models.Exercise{{ID: "e1", Name: "Bench", UpdatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.SaveEntity(w, models.StatusPendingSync); err != nil {
		t.Fatalf("SaveEntity() error = %v", err)
	}

	got, err := s.GetEntity(models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	gw := got.(*models.Workout)
	if gw.Name != "Push Day" || len(gw.Exercises) != 1 {
		t.Errorf("roundtrip mismatch: %+v", gw)
	}
	// Stored status wins over whatever the payload carries.
	if gw.SyncStatus != models.StatusPendingSync {
		t.Errorf("SyncStatus = %q, want pending_sync", gw.SyncStatus)
	}

	if err := s.MarkSynced(models.TypeWorkouts, "w1"); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	got, err = s.GetEntity(models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	if got.Status() != models.StatusSynced {
		t.Errorf("Status() = %q, want synced after MarkSynced", got.Status())
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.GetEntity(models.TypeWorkouts, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestContentHashTracksChanges(t *testing.T) {
	s := setupStore(t)

	w := &models.Workout{ID: "w1", Name: "Push Day", Kind: models.KindStrength, UpdatedAt: time.Now().UTC()}
	if err := s.SaveEntity(w, models.StatusSynced); err != nil {
		t.Fatalf("SaveEntity() error = %v", err)
	}

	h1, ok, err := s.ContentHash(models.TypeWorkouts, "w1")
	if err != nil || !ok {
		t.Fatalf("ContentHash() = %v, %v, %v", h1, ok, err)
	}

	// Bookkeeping change keeps the hash.
	w.UpdatedAt = w.UpdatedAt.Add(time.Hour)
	if err := s.SaveEntity(w, models.StatusSynced); err != nil {
		t.Fatalf("SaveEntity() error = %v", err)
	}
	h2, _, err := s.ContentHash(models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("ContentHash() error = %v", err)
	}
	if h1 != h2 {
		t.Error("hash changed on bookkeeping-only save")
	}

	w.Name = "Pull Day"
	if err := s.SaveEntity(w, models.StatusPendingSync); err != nil {
		t.Fatalf("SaveEntity() error = %v", err)
	}
	h3, _, err := s.ContentHash(models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("ContentHash() error = %v", err)
	}
	if h1 == h3 {
		t.Error("hash unchanged after content edit")
	}

	if _, ok, _ := s.ContentHash(models.TypeWorkouts, "missing"); ok {
		t.Error("ContentHash() reported a hash for a missing entity")
	}
}

func TestListPending(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()

	for _, tc := range []struct {
		id     string
		status models.SyncStatus
	}{
		{"w1", models.StatusSynced},
		{"w2", models.StatusPendingSync},
		{"w3", models.StatusSyncFailed},
	} {
		w := &models.Workout{ID: tc.id, Name: tc.id, Kind: models.KindStrength, UpdatedAt: now}
		if err := s.SaveEntity(w, tc.status); err != nil {
			t.Fatalf("SaveEntity(%s) error = %v", tc.id, err)
		}
	}

	pending, err := s.ListPending(models.TypeWorkouts)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].EntityID() != "w2" || pending[1].EntityID() != "w3" {
		t.Errorf("pending ids = %s, %s", pending[0].EntityID(), pending[1].EntityID())
	}
}

func TestQueueDrainOrder(t *testing.T) {
	s := setupStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Enqueued out of order: a workout first, then a set log, then a session.
	items := []models.QueueItem{
		{ID: "q1", EntityType: models.TypeWorkouts, EntityID: "w1", Action: models.ActionUpdate, Priority: models.TypeWorkouts.Priority(), EnqueuedAt: base},
		{ID: "q2", EntityType: models.TypeSetLogs, EntityID: "l1", Action: models.ActionCreate, Priority: models.TypeSetLogs.Priority(), EnqueuedAt: base.Add(time.Second)},
		{ID: "q3", EntityType: models.TypeSessions, EntityID: "s1", Action: models.ActionCreate, Priority: models.TypeSessions.Priority(), EnqueuedAt: base.Add(2 * time.Second)},
		{ID: "q4", EntityType: models.TypeSetLogs, EntityID: "l2", Action: models.ActionCreate, Priority: models.TypeSetLogs.Priority(), EnqueuedAt: base.Add(3 * time.Second)},
	}
	for i := range items {
		if err := s.AppendQueueItem(&items[i]); err != nil {
			t.Fatalf("AppendQueueItem(%s) error = %v", items[i].ID, err)
		}
	}

	batch, err := s.QueueBatch(base.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	var order []string
	for _, it := range batch {
		order = append(order, it.ID)
	}
	want := []string{"q2", "q4", "q3", "q1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drain order = %v, want %v", order, want)
		}
	}
}

func TestQueueBackoffExcludesFutureItems(t *testing.T) {
	s := setupStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)

	item := models.QueueItem{
		ID: "q1", EntityType: models.TypeWorkouts, EntityID: "w1",
		Action: models.ActionUpdate, Priority: 40,
		NotBefore: &later, EnqueuedAt: base,
	}
	if err := s.AppendQueueItem(&item); err != nil {
		t.Fatalf("AppendQueueItem() error = %v", err)
	}

	batch, err := s.QueueBatch(base.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	if len(batch) != 0 {
		t.Errorf("len(batch) = %d, want 0 while backing off", len(batch))
	}

	batch, err = s.QueueBatch(later.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("len(batch) = %d, want 1 after backoff expires", len(batch))
	}
}

func TestQueueQuarantineLifecycle(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()

	item := models.QueueItem{
		ID: "q1", EntityType: models.TypeProfiles, EntityID: "p1",
		Action: models.ActionUpdate, Priority: 50, EnqueuedAt: now,
	}
	if err := s.AppendQueueItem(&item); err != nil {
		t.Fatalf("AppendQueueItem() error = %v", err)
	}

	item.RetryCount = 5
	item.LastError = "server rejected payload"
	item.Quarantined = true
	if err := s.UpdateQueueItem(&item); err != nil {
		t.Fatalf("UpdateQueueItem() error = %v", err)
	}

	batch, err := s.QueueBatch(now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	if len(batch) != 0 {
		t.Error("quarantined item still drainable")
	}

	pending, quarantined, err := s.QueueCounts()
	if err != nil {
		t.Fatalf("QueueCounts() error = %v", err)
	}
	if pending != 0 || quarantined != 1 {
		t.Errorf("counts = %d pending, %d quarantined, want 0, 1", pending, quarantined)
	}

	qs, err := s.QuarantinedItems()
	if err != nil {
		t.Fatalf("QuarantinedItems() error = %v", err)
	}
	if len(qs) != 1 || qs[0].LastError != "server rejected payload" {
		t.Errorf("QuarantinedItems() = %+v", qs)
	}

	if err := s.ReleaseQuarantined("q1"); err != nil {
		t.Fatalf("ReleaseQuarantined() error = %v", err)
	}
	batch, err = s.QueueBatch(now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	if len(batch) != 1 || batch[0].RetryCount != 0 {
		t.Errorf("released item = %+v, want drainable with retry budget reset", batch)
	}

	if err := s.ReleaseQuarantined("q1"); err == nil {
		t.Error("ReleaseQuarantined() on non-quarantined item should fail")
	}
}

func TestDeleteQueueItemIdempotent(t *testing.T) {
	s := setupStore(t)
	if err := s.DeleteQueueItem("never-existed"); err != nil {
		t.Errorf("DeleteQueueItem() error = %v, want nil for missing item", err)
	}
}

func TestSyncHistory(t *testing.T) {
	s := setupStore(t)

	for _, id := range []string{"w1", "w2", "w3"} {
		if err := s.RecordSync("push", models.ActionUpdate, models.TypeWorkouts, id, "dev-1"); err != nil {
			t.Fatalf("RecordSync(%s) error = %v", id, err)
		}
	}

	tail, err := s.HistoryTail(2)
	if err != nil {
		t.Fatalf("HistoryTail() error = %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("len(tail) = %d, want 2", len(tail))
	}
	// Oldest first within the tail.
	if tail[0].EntityID != "w2" || tail[1].EntityID != "w3" {
		t.Errorf("tail ids = %s, %s, want w2, w3", tail[0].EntityID, tail[1].EntityID)
	}
	if tail[0].DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", tail[0].DeviceID)
	}
}

func TestPendingDeleteExists(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()

	item := models.QueueItem{
		ID: "q1", EntityType: models.TypeWorkouts, EntityID: "w1",
		Action: models.ActionDelete, Priority: 40, EnqueuedAt: now,
	}
	if err := s.AppendQueueItem(&item); err != nil {
		t.Fatalf("AppendQueueItem() error = %v", err)
	}

	got, err := s.PendingDeleteExists(models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("PendingDeleteExists() error = %v", err)
	}
	if !got {
		t.Error("queued delete not reported")
	}

	got, err = s.PendingDeleteExists(models.TypeWorkouts, "other")
	if err != nil {
		t.Fatalf("PendingDeleteExists() error = %v", err)
	}
	if got {
		t.Error("delete reported for unrelated entity")
	}

	// Quarantined deletes do not block pulls.
	item.Quarantined = true
	item.RetryCount = 5
	if err := s.UpdateQueueItem(&item); err != nil {
		t.Fatalf("UpdateQueueItem() error = %v", err)
	}
	got, err = s.PendingDeleteExists(models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("PendingDeleteExists() error = %v", err)
	}
	if got {
		t.Error("quarantined delete still reported as pending")
	}
}

func TestPurgeQueueItemsFor(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()

	for i, id := range []string{"q1", "q2", "q3"} {
		entityID := "w1"
		if id == "q3" {
			entityID = "w2"
		}
		item := models.QueueItem{
			ID: id, EntityType: models.TypeWorkouts, EntityID: entityID,
			Action: models.ActionUpdate, Priority: 40,
			EnqueuedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendQueueItem(&item); err != nil {
			t.Fatalf("AppendQueueItem(%s) error = %v", id, err)
		}
	}

	if err := s.PurgeQueueItemsFor(models.TypeWorkouts, "w1"); err != nil {
		t.Fatalf("PurgeQueueItemsFor() error = %v", err)
	}

	batch, err := s.QueueBatch(now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	if len(batch) != 1 || batch[0].EntityID != "w2" {
		t.Errorf("batch = %+v, want only w2's item left", batch)
	}
}

func TestQueueLastAttemptPersists(t *testing.T) {
	s := setupStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	item := models.QueueItem{
		ID: "q1", EntityType: models.TypeWorkouts, EntityID: "w1",
		Action: models.ActionUpdate, Priority: models.TypeWorkouts.Priority(),
		EnqueuedAt: base,
	}
	if err := s.AppendQueueItem(&item); err != nil {
		t.Fatalf("AppendQueueItem() error = %v", err)
	}

	batch, err := s.QueueBatch(base.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	if batch[0].LastAttemptAt != nil {
		t.Fatalf("LastAttemptAt = %v, want nil before any attempt", batch[0].LastAttemptAt)
	}

	attempted := base.Add(time.Minute)
	item.RetryCount = 1
	item.LastError = "server unavailable"
	item.LastAttemptAt = &attempted
	if err := s.UpdateQueueItem(&item); err != nil {
		t.Fatalf("UpdateQueueItem() error = %v", err)
	}

	batch, err = s.QueueBatch(base.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("QueueBatch() error = %v", err)
	}
	got := batch[0].LastAttemptAt
	if got == nil || !got.Equal(attempted) {
		t.Fatalf("LastAttemptAt = %v, want %v", got, attempted)
	}
}

func TestPendingCountForFiltersByType(t *testing.T) {
	s := setupStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	items := []models.QueueItem{
		{ID: "q1", EntityType: models.TypeWorkouts, EntityID: "w1", Action: models.ActionUpdate, Priority: models.TypeWorkouts.Priority(), EnqueuedAt: base},
		{ID: "q2", EntityType: models.TypeWorkouts, EntityID: "w2", Action: models.ActionDelete, Priority: models.TypeWorkouts.Priority(), EnqueuedAt: base},
		{ID: "q3", EntityType: models.TypeSessions, EntityID: "s1", Action: models.ActionCreate, Priority: models.TypeSessions.Priority(), EnqueuedAt: base, Quarantined: true},
	}
	for i := range items {
		if err := s.AppendQueueItem(&items[i]); err != nil {
			t.Fatalf("AppendQueueItem(%s) error = %v", items[i].ID, err)
		}
	}

	if n, err := s.PendingCountFor(models.TypeWorkouts); err != nil || n != 2 {
		t.Errorf("PendingCountFor(workouts) = %d, %v, want 2", n, err)
	}
	// Quarantined items are not pending.
	if n, err := s.PendingCountFor(models.TypeSessions); err != nil || n != 0 {
		t.Errorf("PendingCountFor(sessions) = %d, %v, want 0", n, err)
	}
}
