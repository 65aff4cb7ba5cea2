package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marcus/lift/internal/models"
)

func TestGetPutDelete(t *testing.T) {
	entities := map[string][]byte{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code": "unauthorized", "message": "missing key"}`))
			return
		}
		switch r.Method {
		case "GET":
			payload, ok := entities[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"code": "not_found", "message": "no such entity"}`))
				return
			}
			w.Write(payload)
		case "PUT":
			body, _ := io.ReadAll(r.Body)
			entities[r.URL.Path] = body
			w.WriteHeader(http.StatusNoContent)
		case "DELETE":
			if _, ok := entities[r.URL.Path]; !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"code": "not_found", "message": "no such entity"}`))
				return
			}
			delete(entities, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "dev-1")
	ctx := context.Background()

	payload := []byte(`{"id": "w1", "name": "Push Day", "kind": "strength", "schema_version": 2}`)
	if err := c.Put(ctx, models.TypeWorkouts, "w1", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := c.Get(ctx, models.TypeWorkouts, "w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get() = %s, want roundtrip of payload", got)
	}

	if _, err := c.Get(ctx, models.TypeWorkouts, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := c.Delete(ctx, models.TypeWorkouts, "w1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Second delete hits 404 but still succeeds.
	if err := c.Delete(ctx, models.TypeWorkouts, "w1"); err != nil {
		t.Errorf("repeated Delete() error = %v, want nil", err)
	}
}

func TestUnauthorizedSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code": "unauthorized", "message": "bad key"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "wrong", "dev-1")
	_, err := c.Get(context.Background(), models.TypeWorkouts, "w1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

type rot13Cipher struct{}

func rot13(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c + 13
	}
	return out
}

func (rot13Cipher) Seal(p []byte) ([]byte, error) { return rot13(p), nil }
func (rot13Cipher) Open(p []byte) ([]byte, error) {
	out := make([]byte, len(p))
	for i, c := range p {
		out[i] = c - 13
	}
	return out, nil
}

func TestCipherSealsPayloads(t *testing.T) {
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "PUT":
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		case "GET":
			w.Write(stored)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", "dev-1")
	c.Cipher = rot13Cipher{}
	ctx := context.Background()

	plaintext := []byte(`{"id": "p1", "display_name": "Marcus"}`)
	if err := c.Put(ctx, models.TypeProfiles, "p1", plaintext); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if string(stored) == string(plaintext) {
		t.Error("server received plaintext despite cipher")
	}

	got, err := c.Get(ctx, models.TypeProfiles, "p1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("Get() = %s, want decrypted plaintext", got)
	}
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/entities/workouts" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"ids": ["w1", "w2"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "dev-1")
	ids, err := c.List(context.Background(), models.TypeWorkouts)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "w1" || ids[1] != "w2" {
		t.Errorf("List() = %v, want [w1 w2]", ids)
	}
}
