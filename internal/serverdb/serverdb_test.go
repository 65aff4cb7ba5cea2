package serverdb

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func setupDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "server.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesAndMigrates(t *testing.T) {
	db := setupDB(t)

	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if v := db.getSchemaVersion(); v != ServerSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, ServerSchemaVersion)
	}

	// Re-running migrations on a current database is a no-op.
	n, err := db.RunMigrations()
	if err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if n != 0 {
		t.Errorf("migrations run = %d, want 0", n)
	}
}

func TestEntityRoundtrip(t *testing.T) {
	db := setupDB(t)

	payload := []byte(`{"id":"w1","name":"Push Day"}`)
	if err := db.UpsertEntity("workouts", "w1", payload, "phone"); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}

	got, err := db.GetEntity("workouts", "w1")
	if err != nil {
		t.Fatalf("GetEntity() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %s, want %s", got, payload)
	}

	// Upsert replaces.
	updated := []byte(`{"id":"w1","name":"Pull Day"}`)
	if err := db.UpsertEntity("workouts", "w1", updated, "laptop"); err != nil {
		t.Fatalf("UpsertEntity() replace error = %v", err)
	}
	got, err = db.GetEntity("workouts", "w1")
	if err != nil {
		t.Fatalf("GetEntity() after replace error = %v", err)
	}
	if !bytes.Equal(got, updated) {
		t.Errorf("payload after replace = %s, want %s", got, updated)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	db := setupDB(t)

	_, err := db.GetEntity("workouts", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEntity(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteEntity(t *testing.T) {
	db := setupDB(t)

	if err := db.UpsertEntity("sessions", "s1", []byte(`{}`), "phone"); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}

	deleted, err := db.DeleteEntity("sessions", "s1")
	if err != nil {
		t.Fatalf("DeleteEntity() error = %v", err)
	}
	if !deleted {
		t.Error("DeleteEntity() = false, want true for existing entity")
	}

	deleted, err = db.DeleteEntity("sessions", "s1")
	if err != nil {
		t.Fatalf("second DeleteEntity() error = %v", err)
	}
	if deleted {
		t.Error("DeleteEntity() = true for already-deleted entity")
	}
}

func TestListEntityIDs(t *testing.T) {
	db := setupDB(t)

	for _, id := range []string{"w2", "w1", "w3"} {
		if err := db.UpsertEntity("workouts", id, []byte(`{}`), "phone"); err != nil {
			t.Fatalf("UpsertEntity(%s) error = %v", id, err)
		}
	}
	if err := db.UpsertEntity("sessions", "s1", []byte(`{}`), "phone"); err != nil {
		t.Fatalf("UpsertEntity(s1) error = %v", err)
	}

	ids, err := db.ListEntityIDs("workouts")
	if err != nil {
		t.Fatalf("ListEntityIDs() error = %v", err)
	}
	want := []string{"w1", "w2", "w3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	counts, err := db.CountEntities()
	if err != nil {
		t.Fatalf("CountEntities() error = %v", err)
	}
	if counts["workouts"] != 3 || counts["sessions"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestOpaquePayloads(t *testing.T) {
	db := setupDB(t)

	// Encrypted clients upload ciphertext; the server must store arbitrary
	// bytes without touching them.
	blob := []byte{0x00, 0xff, 0x1f, 0x80, 0x00, 0x42}
	if err := db.UpsertEntity("profiles", "p1", blob, "phone"); err != nil {
		t.Fatalf("UpsertEntity(binary) error = %v", err)
	}
	got, err := db.GetEntity("profiles", "p1")
	if err != nil {
		t.Fatalf("GetEntity(binary) error = %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("binary payload = %x, want %x", got, blob)
	}
}

func TestTouchDevice(t *testing.T) {
	db := setupDB(t)

	if err := db.TouchDevice("phone"); err != nil {
		t.Fatalf("TouchDevice() error = %v", err)
	}
	if err := db.TouchDevice("phone"); err != nil {
		t.Fatalf("second TouchDevice() error = %v", err)
	}
	if err := db.TouchDevice("laptop"); err != nil {
		t.Fatalf("TouchDevice(laptop) error = %v", err)
	}
	// Empty device ids are ignored, not stored.
	if err := db.TouchDevice(""); err != nil {
		t.Fatalf("TouchDevice(empty) error = %v", err)
	}

	devices, err := db.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}
	for _, d := range devices {
		if d.FirstSeen.IsZero() || d.LastSeen.IsZero() {
			t.Errorf("device %s has zero timestamps", d.DeviceID)
		}
		if d.LastSeen.Before(d.FirstSeen) {
			t.Errorf("device %s last_seen before first_seen", d.DeviceID)
		}
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.UpsertEntity("workouts", "w1", []byte(`{"id":"w1"}`), "phone"); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db2.Close()

	got, err := db2.GetEntity("workouts", "w1")
	if err != nil {
		t.Fatalf("GetEntity() after reopen error = %v", err)
	}
	if string(got) != `{"id":"w1"}` {
		t.Errorf("payload after reopen = %s", got)
	}
}
