package invoice

// Status is the persisted document state stored server-side
type Status string

const (
	StatusDraft             Status = "draft"
	StatusAccreditation     Status = "accreditation"
	StatusConfirmed         Status = "confirmed"
	StatusPartiallyReturned Status = "partially_returned"
	StatusReturned          Status = "returned"
	StatusAccepted          Status = "accepted"
	StatusRejected          Status = "rejected"
)

// IsValid checks if the status is a known persisted status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusAccreditation, StatusConfirmed, StatusPartiallyReturned,
		StatusReturned, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Category is the presentation bucket derived from a persisted status
type Category string

const (
	CategoryPendingDraft         Category = "pending-draft"
	CategoryPendingAccreditation Category = "pending-accreditation"
	CategoryFinalSuccess         Category = "final-success"
	CategoryFinalPartial         Category = "final-partial"
	CategoryFinalAccepted        Category = "final-accepted"
	CategoryFinalRejected        Category = "final-rejected"
	// CategoryUnknown is reported for statuses outside the closed enumeration
	CategoryUnknown Category = "unknown"
)

// IsFinal reports whether no lifecycle action may be offered in this category
func (c Category) IsFinal() bool {
	switch c {
	case CategoryFinalSuccess, CategoryFinalPartial, CategoryFinalAccepted, CategoryFinalRejected:
		return true
	}
	return false
}

// IsPending reports whether the document is still awaiting a lifecycle step
func (c Category) IsPending() bool {
	return c == CategoryPendingDraft || c == CategoryPendingAccreditation
}

// DisplayStatus is the UI-facing label and category of a document.
// It is always recomputed from the persisted status and never stored.
type DisplayStatus struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

var displayStatuses = map[Status]DisplayStatus{
	StatusDraft:             {Label: "not reviewed", Category: CategoryPendingDraft},
	StatusAccreditation:     {Label: "not confirmed", Category: CategoryPendingAccreditation},
	StatusConfirmed:         {Label: "done", Category: CategoryFinalSuccess},
	StatusPartiallyReturned: {Label: "partial refund", Category: CategoryFinalPartial},
	StatusReturned:          {Label: "refunded", Category: CategoryFinalSuccess},
	StatusAccepted:          {Label: "accepted", Category: CategoryFinalAccepted},
	StatusRejected:          {Label: "rejected", Category: CategoryFinalRejected},
}

// MapStatus returns the display label for a persisted status code.
// Unrecognized codes pass through unchanged so they stay visible.
func MapStatus(code string) string {
	if ds, ok := displayStatuses[Status(code)]; ok {
		return ds.Label
	}
	return code
}

// Describe returns the display label and category for a persisted status
func Describe(s Status) DisplayStatus {
	if ds, ok := displayStatuses[s]; ok {
		return ds
	}
	return DisplayStatus{Label: string(s), Category: CategoryUnknown}
}

// CategoryOf returns the presentation category for a persisted status
func CategoryOf(s Status) Category {
	return Describe(s).Category
}
