package clickup

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"tracksync/internal/batch"
	"tracksync/internal/httpx"
	"tracksync/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpx.New(srv.URL, "tok", ratelimit.New(60000))
	return NewClient(hc, ""), srv
}

func TestMSUnmarshalVariants(t *testing.T) {
	var task Task
	payload := `{
		"id": "t1",
		"time_spent": 5000,
		"time_estimate": 10000.0,
		"date_updated": "1738410840000",
		"date_closed": null,
		"due_date": ""
	}`
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if task.TimeSpent != 5000 {
		t.Fatalf("TimeSpent = %d", task.TimeSpent)
	}
	if task.TimeEstimate != 10000 {
		t.Fatalf("TimeEstimate = %d", task.TimeEstimate)
	}
	if task.DateUpdated != 1738410840000 {
		t.Fatalf("DateUpdated = %d", task.DateUpdated)
	}
	if task.DateClosed != 0 || task.DueDate != 0 {
		t.Fatalf("null/empty fields must be zero: closed=%d due=%d", task.DateClosed, task.DueDate)
	}
}

func TestTeamIDDiscovery(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/team" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"teams":[{"id":"909","name":"Acme"}]}`)
	}))

	for i := 0; i < 3; i++ {
		id, err := c.TeamID()
		if err != nil {
			t.Fatalf("TeamID failed: %v", err)
		}
		if id != "909" {
			t.Fatalf("TeamID = %s", id)
		}
	}
	if calls != 1 {
		t.Fatalf("team lookup must be cached, got %d calls", calls)
	}
}

func TestSpaceListsDiscovery(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/space/sp1/list":
			fmt.Fprint(w, `{"lists":[{"id":"l1","name":"Backlog"}]}`)
		case "/space/sp1/folder":
			fmt.Fprint(w, `{"folders":[{"id":"f1","name":"Sprint","lists":[{"id":"l2","name":"Week 6"}]}]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	ids, folders, err := c.SpaceLists("sp1")
	if err != nil {
		t.Fatalf("SpaceLists failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "l1" || ids[1] != "l2" {
		t.Fatalf("ids = %v", ids)
	}
	if folders["l2"] != "Sprint" {
		t.Fatalf("folder map = %v", folders)
	}
	if _, ok := folders["l1"]; ok {
		t.Fatal("folderless list must not appear in the folder map")
	}
}

func TestSpaceByNameCaseInsensitive(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/team":
			fmt.Fprint(w, `{"teams":[{"id":"909"}]}`)
		case "/team/909/space":
			fmt.Fprint(w, `{"spaces":[{"id":"sp1","name":"Engineering"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))

	s, err := c.SpaceByName("engineering")
	if err != nil || s.ID != "sp1" {
		t.Fatalf("SpaceByName = %+v err=%v", s, err)
	}
	if _, err := c.SpaceByName("marketing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestMembersRolesResolved(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/team":
			fmt.Fprint(w, `{"teams":[{"id":"909","name":"Acme"}]}`)
		case "/team/909":
			fmt.Fprint(w, `{"team":{"members":[
				{"user":{"id":1,"username":"alice","email":"alice@example.com","role":2}},
				{"user":{"id":2,"username":"guest-gary","role":4}},
				{"user":{"id":3,"username":"mystery","role":99}}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	members, err := c.Members()
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}
	if members[0].UserID != "1" || members[0].Username != "alice" || members[0].Role != "admin" {
		t.Fatalf("first member = %+v", members[0])
	}
	if members[1].Role != "guest" {
		t.Fatalf("role = %q, want guest", members[1].Role)
	}
	if members[2].Role != "" {
		t.Fatalf("unknown role code must map to empty, got %q", members[2].Role)
	}
}

func TestFetchListTasksPagination(t *testing.T) {
	// Page 0 returns a full page (100), page 1 returns 3: fetch must stop
	// after page 1 without a third request for archived=false.
	var pages []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list/l1/task" {
			http.NotFound(w, r)
			return
		}
		page := r.URL.Query().Get("page")
		pages = append(pages, page+":"+r.URL.Query().Get("archived"))
		n := 3
		if page == "0" {
			n = 100
		}
		tasks := make([]map[string]any, n)
		for i := range tasks {
			tasks[i] = map[string]any{"id": fmt.Sprintf("p%s-%d", page, i)}
		}
		json.NewEncoder(w).Encode(map[string]any{"tasks": tasks})
	}))

	tasks, err := c.fetchListTasks("l1", TaskQuery{})
	if err != nil {
		t.Fatalf("fetchListTasks failed: %v", err)
	}
	if len(tasks) != 103 {
		t.Fatalf("got %d tasks, want 103", len(tasks))
	}
	if len(pages) != 2 || pages[0] != "0:false" || pages[1] != "1:false" {
		t.Fatalf("page sequence = %v", pages)
	}
}

func TestFetchListTasksArchivedPass(t *testing.T) {
	var archivedSeen []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		archivedSeen = append(archivedSeen, r.URL.Query().Get("archived"))
		fmt.Fprint(w, `{"tasks":[{"id":"only"}]}`)
	}))

	tasks, err := c.fetchListTasks("l1", TaskQuery{IncludeArchived: true})
	if err != nil {
		t.Fatalf("fetchListTasks failed: %v", err)
	}
	// One task per pass, deduplicated later by FetchAllTasks.
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2 (live + archived pass)", len(tasks))
	}
	if len(archivedSeen) != 2 || archivedSeen[0] != "false" || archivedSeen[1] != "true" {
		t.Fatalf("archived flags = %v", archivedSeen)
	}
}

func TestFetchAllTasksDeduplicates(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Both lists return the same task id.
		fmt.Fprint(w, `{"tasks":[{"id":"shared"},{"id":"`+r.URL.Path+`"}]}`)
	}))

	tasks, res := c.FetchAllTasks([]string{"a", "b"}, TaskQuery{}, batch.New(4, "tasks"))
	if res.Errors != 0 {
		t.Fatalf("unexpected errors: %d", res.Errors)
	}
	ids := make(map[string]int)
	for _, task := range tasks {
		ids[task.ID]++
	}
	if ids["shared"] != 1 {
		t.Fatalf("shared task appears %d times", ids["shared"])
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
}

func TestFetchTimeEntriesCompleteUnderFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/task/bad/time" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"data":[{"user":{"username":"ada"},"intervals":[{"id":"i1","start":"100","end":"200","time":100}]}]}`)
	}))

	ids := []string{"t1", "bad", "t3"}
	got, res := c.FetchTimeEntries(ids, 0, 0, batch.New(3, "time entries"))
	if len(got) != 3 {
		t.Fatalf("result has %d keys, want 3", len(got))
	}
	if res.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", res.Errors)
	}
	if got["bad"] != nil {
		t.Fatalf("failed key must map to nil, got %v", got["bad"])
	}
	if len(got["t1"]) != 1 || len(got["t1"][0].Intervals) != 1 {
		t.Fatalf("t1 entries = %+v", got["t1"])
	}
}

func TestFetchTimeEntriesForwardsDateBounds(t *testing.T) {
	var q url.Values
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		fmt.Fprint(w, `{"data":[]}`)
	}))

	c.FetchTimeEntries([]string{"t1"}, 1000, 2000, batch.New(1, "time entries"))
	if q.Get("start_date") != "1000" || q.Get("end_date") != "2000" {
		t.Fatalf("date bounds not forwarded: %v", q)
	}
}

func TestFilterIntervals(t *testing.T) {
	entries := []TimeEntry{{
		User: User{Username: "ada"},
		Intervals: []Interval{
			{ID: "in", Start: 1500, End: 1600, Time: 100},
			{ID: "before", Start: 500, End: 600, Time: 100},
			{ID: "after", Start: 2500, End: 2600, Time: 100},
			{ID: "no-end", Start: 1700, Time: 250},
			{ID: "running", Start: 1800},
		},
	}}

	total, matched := FilterIntervals(entries, 1000, 2000)
	if total != 350 {
		t.Fatalf("total = %d, want 350", total)
	}
	if len(matched) != 2 {
		t.Fatalf("matched %d intervals, want 2", len(matched))
	}

	// Zero bounds disable the range check; running timers still excluded.
	total, matched = FilterIntervals(entries, 0, 0)
	if total != 550 {
		t.Fatalf("unbounded total = %d, want 550", total)
	}
	if len(matched) != 4 {
		t.Fatalf("unbounded matched %d, want 4", len(matched))
	}
}

func TestFilterIntervalsBoundary(t *testing.T) {
	entries := []TimeEntry{{
		Intervals: []Interval{
			{ID: "at-start", Start: 1000, Time: 10},
			{ID: "at-end", Start: 2000, Time: 10},
		},
	}}
	total, _ := FilterIntervals(entries, 1000, 2000)
	if total != 10 {
		t.Fatalf("half-open range violated: total = %d, want 10 (start inclusive, end exclusive)", total)
	}
}
