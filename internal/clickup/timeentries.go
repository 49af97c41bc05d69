package clickup

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"tracksync/internal/batch"
)

// FetchTimeEntries fetches time entries for every task id concurrently.
// startMS/endMS, when nonzero, are forwarded as date bounds so only entries
// inside the requested period come back. The result map has exactly one entry
// per task id; tasks whose fetch ultimately failed map to nil and count
// toward the batch error total.
func (c *Client) FetchTimeEntries(taskIDs []string, startMS, endMS int64, fetcher *batch.Fetcher) (map[string][]TimeEntry, batch.Result) {
	if len(taskIDs) == 0 {
		return map[string][]TimeEntry{}, batch.Result{}
	}

	params := url.Values{}
	if startMS > 0 {
		params.Set("start_date", strconv.FormatInt(startMS, 10))
	}
	if endMS > 0 {
		params.Set("end_date", strconv.FormatInt(endMS, 10))
	}

	return batch.FetchAll(fetcher, taskIDs, func(taskID string) ([]TimeEntry, error) {
		body, err := c.http.Get("/task/"+taskID+"/time", params)
		if err != nil {
			return nil, fmt.Errorf("time entries for %s: %w", taskID, err)
		}
		var resp timeEntriesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing time entries for %s: %w", taskID, err)
		}
		return resp.Data, nil
	})
}

// FilterIntervals returns the total in-range duration and the matching
// intervals across all entries. An interval is in range when its start falls
// inside [startMS, endMS); zero bounds disable that side of the check.
// Intervals with no end but a recorded duration count in full; a running
// timer (no end, no duration) contributes zero.
func FilterIntervals(entries []TimeEntry, startMS, endMS int64) (int64, []Interval) {
	var total int64
	var matched []Interval
	for _, e := range entries {
		for _, iv := range e.Intervals {
			start := int64(iv.Start)
			if startMS > 0 && start < startMS {
				continue
			}
			if endMS > 0 && start >= endMS {
				continue
			}
			d := iv.Duration()
			if d <= 0 {
				continue
			}
			total += d
			matched = append(matched, iv)
		}
	}
	return total, matched
}
