package scheduler

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
)

// RunStats summarises one catalog run.
type RunStats struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	Seen       int       `json:"seen"`
	Generated  int       `json:"generated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// State is the scheduler's mutable state: whether a catalog run is active,
// which posts already have a video since the last reset, and which posts are
// being generated right now by any trigger.
type State struct {
	mu        sync.Mutex
	status    Status
	processed map[int64]struct{}
	inFlight  map[int64]struct{}
	runs      int
	startedAt time.Time
	lastRun   *RunStats
	lastReset time.Time
}

func NewState() *State {
	return &State{
		status:    StatusIdle,
		processed: make(map[int64]struct{}),
		inFlight:  make(map[int64]struct{}),
	}
}

// TryStart moves Idle to Running. It reports false when a run is already
// active; the caller must drop its trigger.
func (s *State) TryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		return false
	}
	s.status = StatusRunning
	s.runs++
	s.startedAt = time.Now()
	return true
}

func (s *State) Finish(stats RunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusIdle
	s.startedAt = time.Time{}
	s.lastRun = &stats
}

// Runs counts catalog runs that actually started.
func (s *State) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *State) IsProcessed(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[id]
	return ok
}

func (s *State) MarkProcessed(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = struct{}{}
}

// Reset clears the processed set and returns how many ids it held.
func (s *State) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.processed)
	s.processed = make(map[int64]struct{})
	s.lastReset = time.Now()
	return n
}

// Restore seeds the processed set and its reset time, e.g. from persistent
// storage at startup.
func (s *State) Restore(ids []int64, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.processed[id] = struct{}{}
	}
	s.lastReset = resetAt
}

func (s *State) LastReset() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReset
}

func (s *State) ProcessedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.Keys(s.processed)
	slices.Sort(ids)
	return ids
}

// LockItem claims id for generation. It reports false if another trigger
// holds it.
func (s *State) LockItem(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *State) UnlockItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// Snapshot is a point-in-time copy of State for status surfaces.
type Snapshot struct {
	Status    Status    `json:"status"`
	Processed int       `json:"processed"`
	InFlight  []int64   `json:"in_flight"`
	Runs      int       `json:"runs"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastRun   *RunStats `json:"last_run,omitempty"`
	LastReset time.Time `json:"last_reset,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	inFlight := lo.Keys(s.inFlight)
	slices.Sort(inFlight)
	snap := Snapshot{
		Status:    s.status,
		Processed: len(s.processed),
		InFlight:  inFlight,
		Runs:      s.runs,
		StartedAt: s.startedAt,
		LastReset: s.lastReset,
	}
	if s.lastRun != nil {
		last := *s.lastRun
		snap.LastRun = &last
	}
	return snap
}
