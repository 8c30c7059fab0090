package queue

import (
	"sync"
	"testing"
)

type record struct {
	ID   int
	Verb string
}

func TestQueue_New(t *testing.T) {
	q := New[record]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[record]()

	q.Push(record{ID: 1, Verb: "takeoff"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(record{ID: 2}, record{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[record]()
	q.Push(record{ID: 1}, record{ID: 2})

	items := q.Drain()
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("unexpected drain result %+v", items)
	}
	if !q.Empty() {
		t.Error("expected queue to be empty after drain")
	}

	// the drained slice is not shared with later pushes
	q.Push(record{ID: 3})
	if items[0].ID != 1 {
		t.Errorf("drained slice was modified: %+v", items)
	}

	if got := New[record]().Drain(); len(got) != 0 {
		t.Errorf("expected empty drain, got %+v", got)
	}
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[record]()
	q.Push(record{ID: 1}, record{ID: 2})
	failed := q.Drain()

	q.Push(record{ID: 3})
	q.Requeue(failed...)
	q.Requeue()

	items := q.Drain()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []int{1, 2, 3} {
		if items[i].ID != want {
			t.Errorf("item %d: expected ID %d, got %d", i, want, items[i].ID)
		}
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[record](2)
	q.Push(record{ID: 1}, record{ID: 2}, record{ID: 3})
	q.Push(record{ID: 4})

	items := q.Drain()
	if len(items) != 2 || items[0].ID != 3 || items[1].ID != 4 {
		t.Errorf("unexpected items %+v", items)
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 drops, got %d", q.Dropped())
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[record]()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(record{ID: base*100 + j})
			}
		}(i)
	}
	wg.Wait()

	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}
