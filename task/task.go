// Package task tracks long-running background jobs for the HTTP API's
// start-then-poll pattern.
package task

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a task's lifecycle stage. Transitions only move forward:
// starting -> running -> completed | failed.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when a task id is unknown.
var ErrNotFound = errors.New("task not found")

// Snapshot is a read-only copy of a task's state, safe to serialize while
// the task keeps running.
type Snapshot struct {
	ID       string    `json:"task_id"`
	Status   Status    `json:"status"`
	Progress int       `json:"progress"`
	Log      []string  `json:"log"`
	Files    []string  `json:"files,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at,omitempty"`
}

type task struct {
	mu       sync.Mutex
	id       string
	status   Status
	progress int
	log      []string
	files    []string
	errMsg   string
	started  time.Time
	finished time.Time
}

// Handle is the writer side handed to the goroutine executing the job.
type Handle struct {
	t      *task
	logger *log.Logger
}

// Logf appends a line to the task log and mirrors it to the process log.
func (h *Handle) Logf(format string, args ...interface{}) {
	h.logger.Printf("[task %s] "+format, append([]interface{}{h.t.id}, args...)...)
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	h.t.log = append(h.t.log, time.Now().Format("15:04:05")+" "+fmt.Sprintf(format, args...))
}

// Progress sets completion, clamped to 0-100, and moves a starting task to
// running.
func (h *Handle) Progress(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if h.t.status == StatusStarting {
		h.t.status = StatusRunning
	}
	if pct > h.t.progress {
		h.t.progress = pct
	}
}

// AddFile records an artifact produced by the job.
func (h *Handle) AddFile(path string) {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	h.t.files = append(h.t.files, path)
}

// Complete marks the task finished successfully.
func (h *Handle) Complete() {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	h.t.status = StatusCompleted
	h.t.progress = 100
	h.t.finished = time.Now()
}

// Fail marks the task failed with the given error.
func (h *Handle) Fail(err error) {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	h.t.status = StatusFailed
	h.t.errMsg = err.Error()
	h.t.finished = time.Now()
}

// ID returns the task id.
func (h *Handle) ID() string { return h.t.id }

// Manager owns all tracked tasks. All methods are safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	tasks  map[string]*task
	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{tasks: make(map[string]*task), logger: logger}
}

// Start registers a new task and runs fn on its own goroutine. fn owns the
// terminal transition; a panic is converted to a failure so the poller never
// sees a task stuck in running.
func (m *Manager) Start(fn func(*Handle)) string {
	t := &task{
		id:      uuid.NewString(),
		status:  StatusStarting,
		started: time.Now(),
	}
	m.mu.Lock()
	m.tasks[t.id] = t
	m.mu.Unlock()

	h := &Handle{t: t, logger: m.logger}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Printf("[task %s] panic: %v", t.id, r)
				h.Fail(fmt.Errorf("internal error: %v", r))
			}
		}()
		fn(h)
	}()
	return t.id
}

// Get returns a snapshot of the task, or ErrNotFound.
func (m *Manager) Get(id string) (Snapshot, error) {
	m.mu.RLock()
	t, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{
		ID:       t.id,
		Status:   t.status,
		Progress: t.progress,
		Log:      append([]string(nil), t.log...),
		Files:    append([]string(nil), t.files...),
		Error:    t.errMsg,
		Started:  t.started,
		Finished: t.finished,
	}
	return snap, nil
}
