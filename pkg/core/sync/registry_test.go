package sync

import "testing"

func TestRegistryCollapsesConcurrentTriggers(t *testing.T) {
	r := NewRegistry()
	id1, ok := r.Begin("00126380")
	if !ok || id1 == "" {
		t.Fatalf("first begin = %q/%v", id1, ok)
	}
	id2, ok := r.Begin("00126380")
	if ok {
		t.Error("second begin for the same corp must be rejected")
	}
	if id2 != id1 {
		t.Errorf("rejected begin must report the running job, got %q want %q", id2, id1)
	}

	if got := r.InFlight(); len(got) != 1 || got[0] != "00126380" {
		t.Errorf("in flight = %v", got)
	}

	r.Finish("00126380")
	id3, ok := r.Begin("00126380")
	if !ok {
		t.Fatal("begin after finish must succeed")
	}
	if id3 == id1 {
		t.Error("new run must get a fresh job id")
	}
}

func TestRegistryIsPerCorp(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Begin("00126380"); !ok {
		t.Fatal("begin corp A")
	}
	if _, ok := r.Begin("00164742"); !ok {
		t.Error("a different corp must not be blocked")
	}
}
