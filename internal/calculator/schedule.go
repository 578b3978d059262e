package calculator

import (
	"time"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

// Queue is a collection work queue.
type Queue string

const (
	// QueueDueNow holds clients with no next action or one due today or earlier.
	QueueDueNow Queue = "DUE_NOW"
	// QueueScheduled holds clients whose next action is in the future.
	QueueScheduled Queue = "SCHEDULED"
)

// LatestNextAction returns the next-action date carried by the most recent
// entry (by timestamp) that has one. Entries without a date are skipped.
func LatestNextAction(entries []models.CollectionHistoryEntry) *time.Time {
	var latest *models.CollectionHistoryEntry
	for i := range entries {
		e := &entries[i]
		if e.NextActionDate == nil {
			continue
		}
		if latest == nil || e.Timestamp.After(latest.Timestamp) {
			latest = e
		}
	}
	if latest == nil {
		return nil
	}
	d := models.Date(*latest.NextActionDate)
	return &d
}

// QueueFor classifies a client by its next-action date on today.
func QueueFor(next *time.Time, today time.Time) Queue {
	if next == nil || !models.Date(*next).After(models.Date(today)) {
		return QueueDueNow
	}
	return QueueScheduled
}
