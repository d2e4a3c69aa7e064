package scheduler

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestStateSingleFlight(t *testing.T) {
	s := NewState()
	if !s.TryStart() {
		t.Fatal("first start refused")
	}
	if s.TryStart() {
		t.Fatal("second start accepted while running")
	}
	if s.Runs() != 1 {
		t.Fatalf("expected 1 run, got %d", s.Runs())
	}
	s.Finish(RunStats{Generated: 2})
	if snap := s.Snapshot(); snap.Status != StatusIdle || snap.LastRun == nil || snap.LastRun.Generated != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !s.TryStart() {
		t.Fatal("start refused after finish")
	}
}

func TestStateConcurrentStarts(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryStart() {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestStateProcessedSet(t *testing.T) {
	s := NewState()
	s.Restore([]int64{9, 3}, time.Time{})
	s.MarkProcessed(5)
	if !s.IsProcessed(3) || !s.IsProcessed(5) || s.IsProcessed(4) {
		t.Fatal("membership wrong")
	}
	if got := s.ProcessedIDs(); !reflect.DeepEqual(got, []int64{3, 5, 9}) {
		t.Fatalf("unexpected ids %v", got)
	}
	if n := s.Reset(); n != 3 {
		t.Fatalf("expected 3 cleared, got %d", n)
	}
	if s.IsProcessed(3) || len(s.ProcessedIDs()) != 0 {
		t.Fatal("reset did not clear the set")
	}
}

func TestStateItemLock(t *testing.T) {
	s := NewState()
	if !s.LockItem(7) {
		t.Fatal("lock refused")
	}
	if s.LockItem(7) {
		t.Fatal("double lock accepted")
	}
	if got := s.Snapshot().InFlight; !reflect.DeepEqual(got, []int64{7}) {
		t.Fatalf("unexpected in-flight %v", got)
	}
	s.UnlockItem(7)
	if !s.LockItem(7) {
		t.Fatal("lock refused after unlock")
	}
}

func TestStateRestoreKeepsResetTime(t *testing.T) {
	s := NewState()
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.Restore([]int64{1}, at)
	if !s.LastReset().Equal(at) {
		t.Fatalf("expected reset time %v, got %v", at, s.LastReset())
	}
	s.Reset()
	if !s.LastReset().After(at) {
		t.Errorf("reset did not advance the reset time: %v", s.LastReset())
	}
}
