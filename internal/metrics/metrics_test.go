package metrics

import "testing"

func TestComputeRolledUpChain(t *testing.T) {
	// A(raw=100) -> B(raw=60) -> C(raw=20); raw values already include
	// descendant totals.
	records := Compute([]Item{
		{ID: "A", RawTrackedMS: 100},
		{ID: "B", ParentID: "A", RawTrackedMS: 60},
		{ID: "C", ParentID: "B", RawTrackedMS: 20},
	})

	want := map[string]Record{
		"C": {TrackedTotal: 20, TrackedDirect: 20},
		"B": {TrackedTotal: 60, TrackedDirect: 40},
		"A": {TrackedTotal: 100, TrackedDirect: 40},
	}
	for id, w := range want {
		got := records[id]
		if got.TrackedTotal != w.TrackedTotal || got.TrackedDirect != w.TrackedDirect {
			t.Errorf("%s = {total:%d direct:%d}, want {total:%d direct:%d}",
				id, got.TrackedTotal, got.TrackedDirect, w.TrackedTotal, w.TrackedDirect)
		}
	}
}

func TestComputeClampsWhenChildrenExceedRaw(t *testing.T) {
	// Parent raw (10) is less than the child rollup (30): the whole raw
	// counts as direct and the total legitimately exceeds the raw field.
	records := Compute([]Item{
		{ID: "P", RawTrackedMS: 10},
		{ID: "C1", ParentID: "P", RawTrackedMS: 30},
	})

	p := records["P"]
	if p.TrackedDirect != 10 {
		t.Fatalf("parent direct = %d, want 10 (clamped, never negative)", p.TrackedDirect)
	}
	if p.TrackedTotal != 40 {
		t.Fatalf("parent total = %d, want 40", p.TrackedTotal)
	}
}

func TestComputeEstimatesFollowSameRule(t *testing.T) {
	records := Compute([]Item{
		{ID: "P", RawEstimateMS: 100},
		{ID: "C", ParentID: "P", RawEstimateMS: 70},
	})
	p := records["P"]
	if p.EstDirect != 30 || p.EstTotal != 100 {
		t.Fatalf("parent est = {total:%d direct:%d}, want {total:100 direct:30}", p.EstTotal, p.EstDirect)
	}
}

func TestComputeUnresolvedParentIsRoot(t *testing.T) {
	records := Compute([]Item{
		{ID: "X", ParentID: "not-in-batch", RawTrackedMS: 50},
	})
	x := records["X"]
	if x.TrackedTotal != 50 || x.TrackedDirect != 50 {
		t.Fatalf("X = {total:%d direct:%d}, want {total:50 direct:50}", x.TrackedTotal, x.TrackedDirect)
	}
}

func TestComputeCycleTerminates(t *testing.T) {
	// X and Y claim each other as parent. Must terminate with a defined
	// result rather than recursing.
	records := Compute([]Item{
		{ID: "X", ParentID: "Y", RawTrackedMS: 10},
		{ID: "Y", ParentID: "X", RawTrackedMS: 20},
	})
	if len(records) != 2 {
		t.Fatalf("expected records for both items, got %d", len(records))
	}
	for id, r := range records {
		if r.TrackedTotal < 0 || r.TrackedDirect < 0 {
			t.Fatalf("%s has negative fields: %+v", id, r)
		}
	}
}

func TestComputeSelfParentTerminates(t *testing.T) {
	records := Compute([]Item{{ID: "S", ParentID: "S", RawTrackedMS: 15}})
	s := records["S"]
	if s.TrackedTotal != 15 || s.TrackedDirect != 15 {
		t.Fatalf("S = %+v, want total/direct 15", s)
	}
}

func TestComputeSharedSubtreeCountedOnce(t *testing.T) {
	// Wide forest: two roots, one deep chain; every item gets a record and
	// invariant total >= direct holds throughout.
	items := []Item{
		{ID: "r1", RawTrackedMS: 100},
		{ID: "r1a", ParentID: "r1", RawTrackedMS: 20},
		{ID: "r1b", ParentID: "r1", RawTrackedMS: 30},
		{ID: "r2", RawTrackedMS: 5},
		{ID: "r2a", ParentID: "r2", RawTrackedMS: 40},
		{ID: "r2aa", ParentID: "r2a", RawTrackedMS: 40},
	}
	records := Compute(items)
	if len(records) != len(items) {
		t.Fatalf("got %d records, want %d", len(records), len(items))
	}
	for id, r := range records {
		if r.TrackedTotal < r.TrackedDirect {
			t.Fatalf("%s: total %d < direct %d", id, r.TrackedTotal, r.TrackedDirect)
		}
	}
	if r1 := records["r1"]; r1.TrackedDirect != 50 || r1.TrackedTotal != 100 {
		t.Fatalf("r1 = %+v, want direct 50 total 100", r1)
	}
	// r2aa rolled up (40) exceeds r2a's raw (40): direct 0, total 40... then
	// r2 raw 5 < child total 40: direct 5, total 45.
	if r2 := records["r2"]; r2.TrackedDirect != 5 || r2.TrackedTotal != 45 {
		t.Fatalf("r2 = %+v, want direct 5 total 45", r2)
	}
}

func TestComputeEmptyInput(t *testing.T) {
	if got := Compute(nil); len(got) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(got))
	}
}
