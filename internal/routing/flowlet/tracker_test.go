package flowlet

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"FlowVane/internal/model"
)

func testKey(i int) model.FlowKey {
	return model.FlowKey{
		SrcIP:    "10.0.1.1",
		DstIP:    "10.0.2.1",
		SrcPort:  uint16(40000 + i),
		DstPort:  5001,
		Protocol: 6,
	}
}

func fixedPath(id model.PathID) func() (model.PathID, error) {
	return func() (model.PathID, error) { return id, nil }
}

func TestTracker_StableWithinFlowlet(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 16)
	key := testKey(0)
	base := time.Now()

	// Arrivals at t=0, 10ms, 20ms: gaps below the timeout, one flowlet.
	path, isNew, err := tr.Route(key, base, fixedPath(2))
	if err != nil || !isNew || path != 2 {
		t.Fatalf("first arrival: got (%d, %v, %v), want (2, true, nil)", path, isNew, err)
	}
	for _, gap := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond} {
		path, isNew, err = tr.Route(key, base.Add(gap), fixedPath(3))
		if err != nil {
			t.Fatal(err)
		}
		if isNew {
			t.Errorf("arrival at +%s classified as a new flowlet", gap)
		}
		if path != 2 {
			t.Errorf("arrival at +%s rerouted mid-flowlet to path %d", gap, path)
		}
	}
}

func TestTracker_BoundaryRerouting(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 16)
	key := testKey(0)
	base := time.Now()

	if _, _, err := tr.Route(key, base, fixedPath(1)); err != nil {
		t.Fatal(err)
	}
	tr.Route(key, base.Add(20*time.Millisecond), fixedPath(1))

	// Idle until t=120ms: the 100ms gap exceeds the timeout, so the next
	// arrival is a new flowlet and may take a different path.
	path, isNew, err := tr.Route(key, base.Add(120*time.Millisecond), fixedPath(3))
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Error("arrival after the idle gap must start a new flowlet")
	}
	if path != 3 {
		t.Errorf("new flowlet kept the expired assignment, got path %d", path)
	}
}

func TestTracker_SelectionErrorLeavesNoState(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 16)
	key := testKey(0)
	now := time.Now()

	_, isNew, err := tr.Route(key, now, func() (model.PathID, error) {
		return 0, model.ErrNoPathAvailable
	})
	if !isNew || err == nil {
		t.Fatalf("expected a failed new-flowlet classification, got (%v, %v)", isNew, err)
	}
	if tr.Len() != 0 {
		t.Errorf("failed selection must not leave an entry behind, have %d", tr.Len())
	}
}

func TestTracker_SweepBoundsMemory(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 16)
	base := time.Now()
	for i := 0; i < 500; i++ {
		tr.Route(testKey(i), base, fixedPath(0))
	}
	if tr.Len() != 500 {
		t.Fatalf("expected 500 entries, got %d", tr.Len())
	}

	// Before timeout+grace nothing may be evicted.
	if removed := tr.Sweep(base.Add(140 * time.Millisecond)); removed != 0 {
		t.Errorf("sweep evicted %d entries before timeout+grace", removed)
	}

	if removed := tr.Sweep(base.Add(151 * time.Millisecond)); removed != 500 {
		t.Errorf("sweep removed %d entries, want 500", removed)
	}
	if tr.Len() != 0 {
		t.Errorf("expected empty tracker after sweep, got %d", tr.Len())
	}
}

func TestTracker_ConcurrentSameKeySingleAssignment(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 16)
	key := testKey(0)
	now := time.Now()

	var mu sync.Mutex
	selections := 0
	slowSelect := func() (model.PathID, error) {
		mu.Lock()
		selections++
		p := model.PathID(selections)
		mu.Unlock()
		return p, nil
	}

	var wg sync.WaitGroup
	paths := make([]model.PathID, 64)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, _, err := tr.Route(key, now, slowSelect)
			if err != nil {
				t.Error(err)
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()

	if selections != 1 {
		t.Fatalf("selection ran %d times for one idle key, want exactly once", selections)
	}
	for i, p := range paths {
		if p != paths[0] {
			t.Fatalf("caller %d observed path %d, others observed %d", i, p, paths[0])
		}
	}
}

func TestTracker_DistinctFlowsIndependent(t *testing.T) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 16)
	now := time.Now()
	for i := 0; i < 8; i++ {
		want := model.PathID(i % 4)
		got, _, err := tr.Route(testKey(i), now, fixedPath(want))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("flow %d: got path %d, want %d", i, got, want)
		}
	}
	if tr.Len() != 8 {
		t.Errorf("expected 8 independent entries, got %d", tr.Len())
	}
}

func BenchmarkTracker_Route(b *testing.B) {
	tr := NewTracker(50*time.Millisecond, 100*time.Millisecond, 256)
	keys := make([]model.FlowKey, 1024)
	for i := range keys {
		keys[i] = model.FlowKey{
			SrcIP: fmt.Sprintf("10.0.1.%d", i%250+1), DstIP: "10.0.2.1",
			SrcPort: uint16(i), DstPort: 5001, Protocol: 6,
		}
	}
	now := time.Now()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			tr.Route(keys[i%len(keys)], now, fixedPath(0))
			i++
		}
	})
}
