package jobs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/subtask/pkg/models"
)

func writePayload(t *testing.T, dir, name string, payload *models.CompletionPayload) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func startCorrelator(t *testing.T, dir string) (*Correlator, chan *models.CompletionPayload) {
	t.Helper()
	ch := make(chan *models.CompletionPayload, 16)
	c := NewCorrelator(dir, func(p *models.CompletionPayload) {
		ch <- p
	})
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c, ch
}

func waitNotification(t *testing.T, ch chan *models.CompletionPayload) *models.CompletionPayload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestCorrelatorNotifiesAndDeletesNewFile(t *testing.T) {
	dir := t.TempDir()
	_, ch := startCorrelator(t, dir)

	path := writePayload(t, dir, "job-a.json", &models.CompletionPayload{
		ID: "job-a", Agent: "helper", Success: true, Summary: "done",
	})

	p := waitNotification(t, ch)
	if p.ID != "job-a" {
		t.Errorf("ID = %q, want %q", p.ID, "job-a")
	}

	// Deletion follows publication; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("result file still exists after notification")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCorrelatorSweepsExistingFiles(t *testing.T) {
	// A file written before the correlator starts (e.g. while it was
	// down) is published by the startup sweep.
	dir := t.TempDir()
	writePayload(t, dir, "job-b.json", &models.CompletionPayload{ID: "job-b", Agent: "a"})

	_, ch := startCorrelator(t, dir)

	p := waitNotification(t, ch)
	if p.ID != "job-b" {
		t.Errorf("ID = %q, want %q", p.ID, "job-b")
	}
}

func TestCorrelatorDiscardsStaleFiles(t *testing.T) {
	dir := t.TempDir()
	path := writePayload(t, dir, "old.json", &models.CompletionPayload{ID: "old", Agent: "a"})
	ancient := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, ancient, ancient); err != nil {
		t.Fatal(err)
	}

	_, ch := startCorrelator(t, dir)

	select {
	case p := <-ch:
		t.Fatalf("got notification for stale file %q, want none", p.ID)
	case <-time.After(300 * time.Millisecond):
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale file still exists, want it removed unread")
	}
}

func TestCorrelatorSwallowsMalformedPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"id": truncated`), 0644); err != nil {
		t.Fatal(err)
	}

	_, ch := startCorrelator(t, dir)

	select {
	case p := <-ch:
		t.Fatalf("got notification %q for malformed file, want none", p.ID)
	case <-time.After(300 * time.Millisecond):
	}
	// Still removed so it is never reprocessed.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("malformed file still exists, want it removed")
	}
}

func TestCorrelatorConsumeIdempotent(t *testing.T) {
	dir := t.TempDir()
	count := 0
	c := NewCorrelator(dir, func(p *models.CompletionPayload) { count++ })

	path := writePayload(t, dir, "job-c.json", &models.CompletionPayload{ID: "job-c", Agent: "a"})

	// A duplicate event for the same (now absent) filename is a no-op.
	c.consume(path)
	c.consume(path)

	if count != 1 {
		t.Errorf("notified %d times, want 1", count)
	}
}

func TestCorrelatorIgnoresNonResultFiles(t *testing.T) {
	dir := t.TempDir()
	_, ch := startCorrelator(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-ch:
		t.Fatalf("got notification %q for non-result file, want none", p.ID)
	case <-time.After(300 * time.Millisecond):
	}
}
