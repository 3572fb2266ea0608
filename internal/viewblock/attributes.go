package viewblock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Form display modes of a view with a custom search.
const (
	FormDisplayFull    = "full"
	FormDisplayForm    = "form"
	FormDisplayResults = "results"
)

// Where the results of a form-only block are displayed.
const (
	FormOnlyDisplaySamePage  = "samePage"
	FormOnlyDisplayOtherPage = "otherPage"
)

// Sort directions.
const (
	OrderDefault = ""
	OrderAsc     = "asc"
	OrderDesc    = "desc"
)

var (
	// ErrViewNotSet is returned when the block has no view reference.
	ErrViewNotSet = errors.New("view id not set")
	// ErrViewNotFound is returned when the view reference does not resolve.
	ErrViewNotFound = errors.New("view not found")
)

// ExtraAttribute describes an additional filter exposed by a view.
type ExtraAttribute struct {
	Attribute  string `json:"attribute"`
	FilterType string `json:"filter_type"`
}

// PageRef is a selected page, as produced by the page picker.
type PageRef struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// AttributeSet is the full set of editable block parameters.
type AttributeSet struct {
	View  string `json:"view"`
	Align string `json:"align,omitempty"`

	Limit            int    `json:"limit"`
	Offset           int    `json:"offset"`
	Orderby          string `json:"orderby"`
	Order            string `json:"order"`
	SecondaryOrderby string `json:"secondaryOrderby"`
	SecondaryOrder   string `json:"secondaryOrder"`

	OverrideLimit            bool `json:"overrideLimit"`
	OverrideOffset           bool `json:"overrideOffset"`
	OverrideOrderby          bool `json:"overrideOrderby"`
	OverrideOrder            bool `json:"overrideOrder"`
	OverrideSecondaryOrderby bool `json:"overrideSecondaryOrderby"`
	OverrideSecondaryOrder   bool `json:"overrideSecondaryOrder"`

	FormDisplay     string   `json:"formDisplay"`
	FormOnlyDisplay string   `json:"formOnlyDisplay"`
	OtherPage       *PageRef `json:"otherPage,omitempty"`

	// Server-derived, never edited by the user.
	HasCustomSearch bool             `json:"hasCustomSearch"`
	HasSubmit       bool             `json:"hasSubmit"`
	ExtraAttributes []ExtraAttribute `json:"hasExtraAttributes"`

	QueryFilters map[string]string `json:"queryFilters"`
}

// DefaultAttributes returns a freshly placed block's attributes.
func DefaultAttributes() AttributeSet {
	return AttributeSet{
		Limit:           -1,
		Offset:          0,
		FormDisplay:     FormDisplayFull,
		FormOnlyDisplay: FormOnlyDisplaySamePage,
		ExtraAttributes: []ExtraAttribute{},
		QueryFilters:    map[string]string{},
	}
}

// ResetForView selects a different view and restores every other field to its default.
func ResetForView(ref string) AttributeSet {
	attrs := DefaultAttributes()
	attrs.View = ref
	return attrs
}

// Clone returns a deep copy.
func (a AttributeSet) Clone() AttributeSet {
	out := a
	if a.OtherPage != nil {
		p := *a.OtherPage
		out.OtherPage = &p
	}
	if a.ExtraAttributes != nil {
		out.ExtraAttributes = append([]ExtraAttribute(nil), a.ExtraAttributes...)
	}
	if a.QueryFilters != nil {
		out.QueryFilters = make(map[string]string, len(a.QueryFilters))
		for k, v := range a.QueryFilters {
			out.QueryFilters[k] = v
		}
	}
	return out
}

// SetSecondaryOrderby updates the secondary sort field. Clearing it also clears the
// secondary order, which is meaningless without a field.
func (a *AttributeSet) SetSecondaryOrderby(v string) {
	a.SecondaryOrderby = v
	if v == "" {
		a.SecondaryOrder = ""
	}
}

// SetQueryFilter stores a user-entered filter value keyed by its filter type.
func (a *AttributeSet) SetQueryFilter(filterType, value string) {
	next := make(map[string]string, len(a.QueryFilters)+1)
	for k, v := range a.QueryFilters {
		next[k] = v
	}
	next[filterType] = value
	a.QueryFilters = next
}

// Facts are the read-only properties of a view computed by the server.
type Facts struct {
	HasCustomSearch bool             `json:"hasCustomSearch"`
	HasSubmit       bool             `json:"hasSubmit"`
	ExtraAttributes []ExtraAttribute `json:"hasExtraAttributes"`
}

// ApplyFacts syncs server-derived facts into the persisted attributes. When the
// extra attribute list changes to empty, stale query filters are dropped.
func (a *AttributeSet) ApplyFacts(f Facts) {
	a.HasCustomSearch = f.HasCustomSearch
	a.HasSubmit = f.HasSubmit
	if sameExtraAttributes(a.ExtraAttributes, f.ExtraAttributes) {
		return
	}
	a.ExtraAttributes = append([]ExtraAttribute{}, f.ExtraAttributes...)
	if len(f.ExtraAttributes) == 0 {
		a.QueryFilters = map[string]string{}
	}
}

func sameExtraAttributes(a, b []ExtraAttribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Validate checks the attribute set at a deserialization boundary.
func (a AttributeSet) Validate() error {
	if strings.TrimSpace(a.View) == "" {
		return ErrViewNotSet
	}
	var err error
	if a.Limit < -1 {
		err = multierr.Append(err, fmt.Errorf("invalid limit %d, expected >= -1", a.Limit))
	}
	if a.Offset < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid offset %d, expected >= 0", a.Offset))
	}
	if !validOrder(a.Order) {
		err = multierr.Append(err, fmt.Errorf("invalid order %q", a.Order))
	}
	if !validOrder(a.SecondaryOrder) {
		err = multierr.Append(err, fmt.Errorf("invalid secondaryOrder %q", a.SecondaryOrder))
	}
	switch a.FormDisplay {
	case "", FormDisplayFull, FormDisplayForm, FormDisplayResults:
	default:
		err = multierr.Append(err, fmt.Errorf("invalid formDisplay %q", a.FormDisplay))
	}
	switch a.FormOnlyDisplay {
	case "", FormOnlyDisplaySamePage, FormOnlyDisplayOtherPage:
	default:
		err = multierr.Append(err, fmt.Errorf("invalid formOnlyDisplay %q", a.FormOnlyDisplay))
	}
	return err
}

func validOrder(v string) bool {
	switch v {
	case OrderDefault, OrderAsc, OrderDesc:
		return true
	}
	return false
}

// IsNumericReference reports whether a view reference is a numeric identifier.
func IsNumericReference(ref string) bool {
	if ref == "" {
		return false
	}
	_, err := strconv.ParseInt(ref, 10, 64)
	return err == nil
}

// persistedView is the JSON shape the view selector stores for name-based references.
type persistedView struct {
	ID       json.Number `json:"ID"`
	PostName string      `json:"post_name"`
}

// NormalizeReference turns a stored view reference into the value used in directives.
// Numeric references are kept as is; JSON-encoded selector values resolve to the
// view's name; anything else is treated as a name.
func NormalizeReference(raw string) string {
	ref := strings.TrimSpace(raw)
	if ref == "" || IsNumericReference(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "{") {
		var pv persistedView
		if err := json.Unmarshal([]byte(ref), &pv); err == nil {
			return pv.PostName
		}
	}
	return ref
}

// PreviewReference returns the identifier used for previews and known-view lookups.
// JSON-encoded selector values resolve to their ID.
func PreviewReference(raw string) string {
	ref := strings.TrimSpace(raw)
	if strings.HasPrefix(ref, "{") {
		var pv persistedView
		if err := json.Unmarshal([]byte(ref), &pv); err == nil && pv.ID != "" {
			return pv.ID.String()
		}
	}
	return ref
}

// FormOnlyOption is one choice for where form results are displayed.
type FormOnlyOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormOnlyDisplayOptions lists the available result destinations. Another page is
// only offered when the view's form has a submit button.
func FormOnlyDisplayOptions(hasSubmit bool) []FormOnlyOption {
	opts := []FormOnlyOption{{Value: FormOnlyDisplaySamePage, Label: "In other place on this same page"}}
	if hasSubmit {
		opts = append(opts, FormOnlyOption{Value: FormOnlyDisplayOtherPage, Label: "On another page"})
	}
	return opts
}
