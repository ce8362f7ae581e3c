package jobs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/subtask/pkg/models"
)

// debounceDelay tolerates slow or partial result-file writes before the
// correlator reads a freshly noticed file.
const debounceDelay = 100 * time.Millisecond

// DefaultStaleAge is how old a leftover result file must be before the
// cold-start cleanup discards it unread.
const DefaultStaleAge = 24 * time.Hour

// Notifier consumes completion payloads. It is called exactly once per
// result file successfully parsed.
type Notifier func(payload *models.CompletionPayload)

// Correlator owns the results directory. It sweeps files present at
// startup, watches for new ones, and turns each into exactly one
// notification before deleting it.
type Correlator struct {
	dir      string
	notify   Notifier
	staleAge time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	// mu serializes consume so a duplicate filesystem event for the
	// same file can never publish twice.
	mu sync.Mutex
}

// NewCorrelator creates a stopped Correlator for the given directory.
func NewCorrelator(dir string, notify Notifier) *Correlator {
	return &Correlator{
		dir:      dir,
		notify:   notify,
		staleAge: DefaultStaleAge,
		done:     make(chan struct{}),
	}
}

// SetStaleAge overrides the cold-start cleanup cutoff.
func (c *Correlator) SetStaleAge(age time.Duration) {
	c.staleAge = age
}

// Start performs cold-start cleanup, synchronously sweeps result files
// already present (covering files written while no correlator was
// running), then installs the live watch.
func (c *Correlator) Start() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	c.cleanupStale()
	c.sweep()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch results directory: %w", err)
	}
	c.watcher = watcher

	c.wg.Add(1)
	go c.watchLoop()

	return nil
}

// Stop closes the watch and waits for in-flight reads to finish.
func (c *Correlator) Stop() {
	close(c.done)
	if c.watcher != nil {
		c.watcher.Close()
	}
	c.wg.Wait()
}

// cleanupStale removes result files old enough to belong to a previous
// run nobody is waiting on anymore.
func (c *Correlator) cleanupStale() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-c.staleAge)
	for _, entry := range entries {
		if entry.IsDir() || !isResultFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(c.dir, entry.Name()))
		}
	}
}

// sweep consumes every result file currently in the directory.
func (c *Correlator) sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isResultFile(entry.Name()) {
			continue
		}
		c.consume(filepath.Join(c.dir, entry.Name()))
	}
}

// watchLoop reacts to newly created result files. Each arrival is read
// after a short debounce; duplicate events for the same file are no-ops
// because the first consume deletes it.
func (c *Correlator) watchLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isResultFile(filepath.Base(event.Name)) {
				continue
			}
			path := event.Name
			c.wg.Add(1)
			time.AfterFunc(debounceDelay, func() {
				defer c.wg.Done()
				c.consume(path)
			})
		case <-c.watcher.Errors:
			// Keep watching.
		}
	}
}

// consume reads one result file, publishes its payload, and deletes it.
// A missing file is a silent no-op. Malformed JSON is swallowed but the
// file is still removed so it is never reprocessed.
func (c *Correlator) consume(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var payload models.CompletionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("[correlator] discarding malformed result file %s: %v", filepath.Base(path), err)
		os.Remove(path)
		return
	}

	if c.notify != nil {
		c.notify(&payload)
	}
	os.Remove(path)
}

func isResultFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}
