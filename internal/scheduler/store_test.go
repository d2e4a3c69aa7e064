package scheduler

import (
	"context"
	"os"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJSONProcessedStore(t *testing.T) {
	objects := newMemJSON()
	st := NewJSONProcessedStore(objects, "processed.json")
	ctx := context.Background()

	set, err := st.Load(ctx)
	if err != nil || set.IDs != nil || !set.ResetAt.IsZero() {
		t.Fatalf("expected empty load, got %+v %v", set, err)
	}

	resetAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if err := st.Save(ctx, ProcessedSet{IDs: []int64{4, 8}, ResetAt: resetAt}); err != nil {
		t.Fatal(err)
	}
	set, _ = st.Load(ctx)
	if !reflect.DeepEqual(set.IDs, []int64{4, 8}) || !set.ResetAt.Equal(resetAt) {
		t.Fatalf("unexpected set %+v", set)
	}

	clearedAt := resetAt.Add(24 * time.Hour)
	if err := st.Clear(ctx, clearedAt); err != nil {
		t.Fatal(err)
	}
	set, _ = st.Load(ctx)
	if len(set.IDs) != 0 || !set.ResetAt.Equal(clearedAt) {
		t.Fatalf("expected cleared set stamped %v, got %+v", clearedAt, set)
	}
}

func TestRedisProcessedStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	st, err := NewRedisProcessedStore(url, "test:processed:"+uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	defer st.client.Del(ctx, st.key, st.resetKey)

	resetAt := time.UnixMilli(time.Now().Add(-time.Hour).UnixMilli())
	if err := st.Save(ctx, ProcessedSet{IDs: []int64{3, 1, 2}, ResetAt: resetAt}); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, ProcessedSet{IDs: []int64{1, 2}, ResetAt: resetAt}); err != nil {
		t.Fatal(err)
	}
	set, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(set.IDs)
	if !reflect.DeepEqual(set.IDs, []int64{1, 2}) {
		t.Fatalf("save must replace the set, got %v", set.IDs)
	}
	if !set.ResetAt.Equal(resetAt) {
		t.Fatalf("expected reset time %v, got %v", resetAt, set.ResetAt)
	}

	clearedAt := resetAt.Add(time.Minute)
	if err := st.Clear(ctx, clearedAt); err != nil {
		t.Fatal(err)
	}
	set, err = st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.IDs) != 0 || !set.ResetAt.Equal(clearedAt) {
		t.Fatalf("expected cleared set stamped %v, got %+v", clearedAt, set)
	}
}

func TestRedisProcessedStoreUnreachable(t *testing.T) {
	if _, err := NewRedisProcessedStore("redis://127.0.0.1:1/0", "test:processed"); err == nil {
		t.Fatal("expected connection error")
	}
}
