package invoice

import "github.com/erp/invoicedesk/internal/domain/identity"

// FilterKind tells whether a filter selects a document type or a status-only query
type FilterKind string

const (
	FilterKindOperation FilterKind = "operation"
	FilterKindStatus    FilterKind = "status"
)

// Filter is one entry of the report filter list
type Filter struct {
	Label   string     `json:"label"`
	APIType Type       `json:"api_type"`
	Kind    FilterKind `json:"kind"`
}

// statusFilters are shown to every user; they are not capability-gated
var statusFilters = []Filter{
	{Label: "لم تراجع", APIType: PseudoNotReviewed, Kind: FilterKindStatus},
	{Label: "لم تؤكد", APIType: PseudoNotConfirmed, Kind: FilterKindStatus},
	{Label: "تم", APIType: PseudoDone, Kind: FilterKindStatus},
	{Label: "صفرية", APIType: PseudoZeroBalance, Kind: FilterKindStatus},
}

// BuildFilters returns the ordered filters available to the user: visible
// operation types in canonical order, followed by the four status filters.
func BuildFilters(user *identity.User) []Filter {
	filters := make([]Filter, 0, len(OperationTypes())+len(statusFilters))
	for _, t := range OperationTypes() {
		capability, _ := t.ViewCapability()
		if !user.HasCapability(capability) {
			continue
		}
		filters = append(filters, Filter{Label: t.Label(), APIType: t, Kind: FilterKindOperation})
	}
	return append(filters, statusFilters...)
}

// FilterSelector holds the filter list of the current user and the selected index
type FilterSelector struct {
	filters  []Filter
	selected int
}

// NewFilterSelector builds the selector for a user with the first filter selected
func NewFilterSelector(user *identity.User) *FilterSelector {
	return &FilterSelector{filters: BuildFilters(user)}
}

// SetUser rebuilds the list for a new user set and re-validates the selection
func (s *FilterSelector) SetUser(user *identity.User) {
	s.filters = BuildFilters(user)
	s.clamp()
}

// Select changes the selected index; out-of-range values select the first filter
func (s *FilterSelector) Select(index int) {
	s.selected = index
	s.clamp()
}

// Filters returns the current ordered filter list
func (s *FilterSelector) Filters() []Filter {
	out := make([]Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

// SelectedIndex returns the effective selected index
func (s *FilterSelector) SelectedIndex() int {
	return s.selected
}

// Selected returns the selected filter, false when the list is empty
func (s *FilterSelector) Selected() (Filter, bool) {
	if len(s.filters) == 0 {
		return Filter{}, false
	}
	return s.filters[s.selected], true
}

func (s *FilterSelector) clamp() {
	if s.selected < 0 || s.selected >= len(s.filters) {
		s.selected = 0
	}
}
