package report

import (
	"strings"

	"tracksync/internal/clickup"
)

// Status categories used across every report.
const (
	CategoryNotStarted = "not_started"
	CategoryActive     = "active"
	CategoryDone       = "done"
	CategoryClosed     = "closed"
	CategoryOther      = "other"
)

// statusOverrides maps known status display names to categories. Upstream
// workspaces rename statuses freely ("Shipped", "QC Check"), so the name
// check runs before the status-type fallback.
var statusOverrides = map[string]string{}

func init() {
	names := map[string][]string{
		CategoryNotStarted: {
			"BACKLOG", "QUEUED", "QUEUE", "IN QUEUE", "TO DO", "TO-DO",
			"PENDING", "OPEN", "IN PLANNING",
		},
		CategoryActive: {
			"SCOPING", "IN DESIGN", "DEV", "IN DEVELOPMENT", "DEVELOPMENT",
			"REVIEW", "IN REVIEW", "TESTING", "QA", "BUG", "BLOCKED", "WAITING",
			"STAGING DEPLOY", "READY FOR DEVELOPMENT", "READY FOR PRODUCTION",
			"IN PROGRESS", "ON HOLD",
		},
		CategoryDone: {
			"SHIPPED", "RELEASE", "COMPLETE", "DONE", "RESOLVED", "PROD", "QC CHECK",
		},
		CategoryClosed: {"CANCELLED", "CLOSED"},
	}
	for cat, list := range names {
		for _, n := range list {
			statusOverrides[n] = cat
		}
	}
}

// StatusCategory classifies a status by display name first, then by the
// upstream status type.
func StatusCategory(status clickup.TaskStatus) string {
	if status.Status == "" {
		return CategoryOther
	}
	if cat, ok := statusOverrides[strings.ToUpper(status.Status)]; ok {
		return cat
	}
	switch strings.ToLower(status.Type) {
	case "open":
		return CategoryNotStarted
	case "done":
		return CategoryDone
	case "closed":
		return CategoryClosed
	case "custom":
		return CategoryActive
	default:
		return CategoryOther
	}
}
