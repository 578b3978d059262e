package models

// StagingStatus classifies an import candidate against persisted state.
type StagingStatus string

const (
	StagingNew       StagingStatus = "NEW"
	StagingChanged   StagingStatus = "CHANGED"
	StagingUnchanged StagingStatus = "UNCHANGED"
)

// Pending reports whether committing the item writes anything.
func (s StagingStatus) Pending() bool {
	return s == StagingNew || s == StagingChanged
}

// StagingItem is a reconciled candidate awaiting human confirmation.
type StagingItem[T any] struct {
	Data          T             `json:"data"`
	Status        StagingStatus `json:"status"`
	ChangedFields []string      `json:"changed_fields,omitempty"`

	// Locked marks a persisted row whose lifecycle fields a commit keeps.
	Locked bool `json:"locked,omitempty"`
}

// StagingSummary counts a staging list by status.
type StagingSummary struct {
	New       int `json:"new"`
	Changed   int `json:"changed"`
	Unchanged int `json:"unchanged"`
}

// Summarize counts items by status.
func Summarize[T any](items []StagingItem[T]) StagingSummary {
	var s StagingSummary
	for _, item := range items {
		switch item.Status {
		case StagingNew:
			s.New++
		case StagingChanged:
			s.Changed++
		default:
			s.Unchanged++
		}
	}
	return s
}
