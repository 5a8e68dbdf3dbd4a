package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_ReadWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Write(ctx, "things/a", testRecord{Name: "first", Count: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got testRecord
	if err := s.Read(ctx, "things/a", &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Name != "first" || got.Count != 1 {
		t.Errorf("got %+v, want {first 1}", got)
	}

	if err := s.Read(ctx, "things/missing", &got); err != ErrNotFound {
		t.Errorf("Read missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Merge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Write(ctx, "things/a", testRecord{Name: "first", Count: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Merge(ctx, "things/a", map[string]interface{}{"count": 5}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	var got testRecord
	if err := s.Read(ctx, "things/a", &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Name != "first" || got.Count != 5 {
		t.Errorf("got %+v, want merged {first 5}", got)
	}

	// Merging into a missing path creates the record.
	if err := s.Merge(ctx, "things/b", map[string]interface{}{"name": "fresh"}); err != nil {
		t.Fatalf("Merge into missing path failed: %v", err)
	}
	if err := s.Read(ctx, "things/b", &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Name != "fresh" {
		t.Errorf("got %+v, want {fresh}", got)
	}
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Write(ctx, "things/a", testRecord{Name: "gone"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Delete(ctx, "things/a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "things/a"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	var got testRecord
	if err := s.Read(ctx, "things/a", &got); err != ErrNotFound {
		t.Errorf("Read after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_AppendAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	keys := map[string]bool{}
	for i := 0; i < 3; i++ {
		key, err := s.Append(ctx, "log", testRecord{Count: i})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if key == "" || keys[key] {
			t.Fatalf("Append returned duplicate or empty key %q", key)
		}
		keys[key] = true
	}
	// A record in a sibling tree must not show up under "log".
	if err := s.Write(ctx, "logbook/x", testRecord{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	seen := 0
	err := s.List(ctx, "log", func(path string, raw []byte) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if seen != 3 {
		t.Errorf("List visited %d records, want 3", seen)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Write(ctx, "things/existing", testRecord{Name: "old"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	events, cancel, err := s.Subscribe(ctx, "things")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	// Snapshot of current records arrives first.
	ev := waitEvent(t, events)
	if ev.Path != "things/existing" || ev.Deleted {
		t.Fatalf("snapshot event = %+v", ev)
	}

	if err := s.Write(ctx, "things/new", testRecord{Name: "new"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ev = waitEvent(t, events)
	if ev.Path != "things/new" || ev.Deleted {
		t.Fatalf("write event = %+v", ev)
	}

	// Writes outside the prefix are filtered out.
	if err := s.Write(ctx, "other/x", testRecord{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Delete(ctx, "things/new"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ev = waitEvent(t, events)
	if ev.Path != "things/new" || !ev.Deleted {
		t.Fatalf("delete event = %+v", ev)
	}

	cancel()
	if err := s.Write(ctx, "things/after", testRecord{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	select {
	case ev, ok := <-events:
		if ok && ev.Path == "things/after" {
			t.Error("received event after cancel")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_SubscribeCancelIsIdempotent(t *testing.T) {
	s := NewMemoryStore()

	_, cancel, err := s.Subscribe(context.Background(), "things")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Concurrent cancels must not panic; ctx teardown and explicit cancel
	// race in practice.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Wait()
	cancel()
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
