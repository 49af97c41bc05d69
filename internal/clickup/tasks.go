package clickup

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"tracksync/internal/batch"
)

// pageSize is the fixed page size of the list-tasks endpoint. The API has no
// cursor; a page with fewer than pageSize tasks is the last one.
const pageSize = 100

// TaskQuery narrows a task fetch.
type TaskQuery struct {
	// UpdatedAfterMS filters to tasks updated after this epoch-ms value
	// (incremental sync high-water mark). Zero means no filter.
	UpdatedAfterMS int64
	// IncludeArchived adds a second pass per list with archived=true.
	IncludeArchived bool
}

// FetchAllTasks fetches every task (all subtask levels, closed included) from
// the given lists concurrently, deduplicated by task id. Per-list failures
// are logged and counted, never fatal to the batch; the error count is
// surfaced through the batch result.
func (c *Client) FetchAllTasks(listIDs []string, q TaskQuery, fetcher *batch.Fetcher) ([]Task, batch.Result) {
	if len(listIDs) == 0 {
		return nil, batch.Result{}
	}

	results, res := batch.FetchAll(fetcher, listIDs, func(listID string) ([]Task, error) {
		return c.fetchListTasks(listID, q)
	})

	var all []Task
	seen := make(map[string]bool)
	for _, listID := range listIDs {
		for _, t := range results[listID] {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			all = append(all, t)
		}
	}
	log.Printf("task fetch done lists=%d tasks=%d errors=%d", len(listIDs), len(all), res.Errors)
	return all, res
}

// fetchListTasks pages through one list, optionally twice (live + archived).
func (c *Client) fetchListTasks(listID string, q TaskQuery) ([]Task, error) {
	var tasks []Task
	archivedFlags := []bool{false}
	if q.IncludeArchived {
		archivedFlags = append(archivedFlags, true)
	}

	for _, archived := range archivedFlags {
		page := 0
		for {
			params := url.Values{}
			params.Set("page", strconv.Itoa(page))
			params.Set("subtasks", "true")
			params.Set("include_closed", "true")
			params.Set("archived", strconv.FormatBool(archived))
			if q.UpdatedAfterMS > 0 {
				params.Set("date_updated_gt", strconv.FormatInt(q.UpdatedAfterMS, 10))
			}

			body, err := c.http.Get("/list/"+listID+"/task", params)
			if err != nil {
				return tasks, fmt.Errorf("list %s page %d: %w", listID, page, err)
			}
			var resp listPage
			if err := json.Unmarshal(body, &resp); err != nil {
				return tasks, fmt.Errorf("parsing list %s page %d: %w", listID, page, err)
			}
			if len(resp.Tasks) == 0 {
				break
			}
			tasks = append(tasks, resp.Tasks...)
			if len(resp.Tasks) < pageSize {
				break
			}
			page++
		}
	}
	return tasks, nil
}

// FetchSpaceTasks resolves a space by name and fetches all of its tasks.
func (c *Client) FetchSpaceTasks(spaceName string, q TaskQuery, fetcher *batch.Fetcher) ([]Task, error) {
	space, err := c.SpaceByName(spaceName)
	if err != nil {
		return nil, err
	}
	listIDs, _, err := c.SpaceLists(space.ID)
	if err != nil {
		return nil, err
	}
	tasks, _ := c.FetchAllTasks(listIDs, q, fetcher)
	return tasks, nil
}

// FetchTeamTasks fetches every task in every space of the workspace.
func (c *Client) FetchTeamTasks(q TaskQuery, fetcher *batch.Fetcher) ([]Task, error) {
	spaces, err := c.Spaces()
	if err != nil {
		return nil, err
	}

	var all []Task
	seen := make(map[string]bool)
	for _, space := range spaces {
		listIDs, _, err := c.SpaceLists(space.ID)
		if err != nil {
			log.Printf("space %s list discovery error: %v", space.Name, err)
			continue
		}
		log.Printf("fetching space=%s lists=%d", space.Name, len(listIDs))
		tasks, _ := c.FetchAllTasks(listIDs, q, fetcher)
		for _, t := range tasks {
			if !seen[t.ID] {
				seen[t.ID] = true
				all = append(all, t)
			}
		}
	}
	return all, nil
}
