// Package metrics computes direct vs. total tracked/estimated time for a set
// of work items. The upstream API sometimes reports a parent's raw tracked
// time as its own work and sometimes as an already-rolled-up total; the clamp
// rule here reconciles both conventions without ever producing negative
// direct time.
package metrics

// Item is the slice of a work item the rollup needs. RawTrackedMS and
// RawEstimateMS are the upstream fields as reported, in milliseconds.
type Item struct {
	ID            string
	ParentID      string
	RawTrackedMS  int64
	RawEstimateMS int64
}

// Record holds the reconciled per-item totals, all in milliseconds, all >= 0.
type Record struct {
	TrackedTotal  int64
	TrackedDirect int64
	EstTotal      int64
	EstDirect     int64
}

// Compute returns one Record per input item. A ParentID that does not appear
// in the input set makes the item a rollup root for this batch. Traversal is
// an explicit-stack post-order with a visited set, so parent/child cycles
// terminate instead of recursing; the offending edge is treated as absent.
// Pure function of its input, no side effects.
func Compute(items []Item) map[string]Record {
	byID := make(map[string]Item, len(items))
	children := make(map[string][]string)
	for _, it := range items {
		byID[it.ID] = it
	}
	for _, it := range items {
		if it.ParentID == "" {
			continue
		}
		if _, ok := byID[it.ParentID]; !ok {
			continue // cross-batch parent: item is a root here
		}
		children[it.ParentID] = append(children[it.ParentID], it.ID)
	}

	records := make(map[string]Record, len(items))
	inStack := make(map[string]bool)

	type frame struct {
		id       string
		expanded bool
	}

	for _, it := range items {
		if _, done := records[it.ID]; done {
			continue
		}
		stack := []frame{{id: it.ID}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if !top.expanded {
				top.expanded = true
				inStack[top.id] = true
				for _, cid := range children[top.id] {
					if _, done := records[cid]; done {
						continue
					}
					if inStack[cid] {
						continue // cycle edge, skip
					}
					stack = append(stack, frame{id: cid})
				}
				continue
			}

			// Children are resolved; fold them.
			var childTracked, childEst int64
			for _, cid := range children[top.id] {
				c, ok := records[cid]
				if !ok {
					continue // cycle edge dropped above
				}
				childTracked += c.TrackedTotal
				childEst += c.EstTotal
			}

			item := byID[top.id]
			records[top.id] = Record{
				TrackedDirect: direct(item.RawTrackedMS, childTracked),
				TrackedTotal:  direct(item.RawTrackedMS, childTracked) + childTracked,
				EstDirect:     direct(item.RawEstimateMS, childEst),
				EstTotal:      direct(item.RawEstimateMS, childEst) + childEst,
			}
			delete(inStack, top.id)
			stack = stack[:len(stack)-1]
		}
	}
	return records
}

// direct applies the clamp rule: when the raw field already covers the child
// rollup, the remainder is direct time; when children exceed it, the whole
// raw value is treated as direct (never negative).
func direct(raw, childTotal int64) int64 {
	if raw < 0 {
		raw = 0
	}
	if raw >= childTotal {
		return raw - childTotal
	}
	return raw
}
