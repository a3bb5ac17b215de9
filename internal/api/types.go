package api

import (
	"time"

	"github.com/joescharf/kanban/internal/history"
	"github.com/joescharf/kanban/internal/models"
)

// configUpdate is the body of the updateConfig board action. Absent lists are
// left unchanged.
type configUpdate struct {
	Priorities *[]models.Priority `json:"priorities"`
	Users      *[]models.User     `json:"users"`
}

type historyEntry struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	Branch     string    `json:"branch"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Pulled     bool      `json:"pulled"`
	Committed  bool      `json:"committed"`
	Pushed     bool      `json:"pushed"`
	Error      string    `json:"error,omitempty"`
}

func newHistoryEntry(r *history.Run) historyEntry {
	return historyEntry{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Branch:     r.Branch,
		Success:    r.Succeeded,
		Message:    r.Summary,
		Pulled:     r.Pulled,
		Committed:  r.Committed,
		Pushed:     r.Pushed,
		Error:      r.FailureDetail,
	}
}

func priorityIDs(ps []models.Priority) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}
