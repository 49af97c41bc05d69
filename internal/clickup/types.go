package clickup

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// MS is an epoch-milliseconds field. The API is inconsistent about encoding:
// date fields arrive as strings ("1738410840000"), duration fields as
// numbers, and either may be null.
type MS int64

func (m *MS) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*m = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*m = 0
			return nil // tolerate junk, treat as absent
		}
		*m = MS(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		// Some numeric fields come back as floats.
		var f float64
		if err2 := json.Unmarshal(b, &f); err2 != nil {
			return err
		}
		v = int64(f)
	}
	*m = MS(v)
	return nil
}

// Task is a ClickUp work item as returned by the list-tasks endpoint with
// subtasks=true (all nesting levels flattened).
type Task struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	TextContent  string     `json:"text_content"`
	Parent       string     `json:"parent"`
	Status       TaskStatus `json:"status"`
	List         EntityRef  `json:"list"`
	Assignees    []User     `json:"assignees"`
	Creator      *User      `json:"creator"`
	TimeSpent    MS         `json:"time_spent"`
	TimeEstimate MS         `json:"time_estimate"`
	DateCreated  MS         `json:"date_created"`
	DateUpdated  MS         `json:"date_updated"`
	DateClosed   MS         `json:"date_closed"`
	DateDone     MS         `json:"date_done"`
	StartDate    MS         `json:"start_date"`
	DueDate      MS         `json:"due_date"`
	Archived     bool       `json:"archived"`
	Tags         []Tag      `json:"tags"`
	Priority     *Priority  `json:"priority"`
}

// TaskStatus is the status object ({"status": "IN PROGRESS", "type": "custom"}).
type TaskStatus struct {
	Status string `json:"status"`
	Type   string `json:"type"`
}

// Name returns the status display name, "Unknown" when absent.
func (s TaskStatus) Name() string {
	if s.Status == "" {
		return "Unknown"
	}
	return s.Status
}

// EntityRef is a minimal id/name reference (list, folder, space).
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is an assignee or creator.
type User struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
}

type Tag struct {
	Name string `json:"name"`
}

type Priority struct {
	Priority string `json:"priority"`
}

// TimeEntry is one tracked-time record on a task; its intervals carry the
// actual start/stop pairs.
type TimeEntry struct {
	User      User       `json:"user"`
	Intervals []Interval `json:"intervals"`
}

// Interval is a single timer run. End of 0 with a nonzero Time is a completed
// entry reported without an explicit stop; End and Time both 0 is a timer
// still running, which contributes no duration until closed.
type Interval struct {
	ID    string `json:"id"`
	Start MS     `json:"start"`
	End   MS     `json:"end"`
	Time  MS     `json:"time"`
}

// Duration returns the interval's contribution in milliseconds.
func (iv Interval) Duration() int64 {
	return int64(iv.Time)
}

// Space groups folders and lists.
type Space struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is one workspace member with its role name resolved from the
// numeric role code.
type Member struct {
	UserID   string
	Username string
	Email    string
	Role     string
}

type listPage struct {
	Tasks []Task `json:"tasks"`
}

type teamsResponse struct {
	Teams []EntityRef `json:"teams"`
}

type spacesResponse struct {
	Spaces []Space `json:"spaces"`
}

type listsResponse struct {
	Lists []EntityRef `json:"lists"`
}

type foldersResponse struct {
	Folders []struct {
		ID    string      `json:"id"`
		Name  string      `json:"name"`
		Lists []EntityRef `json:"lists"`
	} `json:"folders"`
}

type timeEntriesResponse struct {
	Data []TimeEntry `json:"data"`
}

type teamDetailResponse struct {
	Team struct {
		Members []struct {
			User struct {
				ID       json.Number `json:"id"`
				Username string      `json:"username"`
				Email    string      `json:"email"`
				Role     int         `json:"role"`
			} `json:"user"`
		} `json:"members"`
	} `json:"team"`
}
