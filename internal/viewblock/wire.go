package viewblock

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PreviewAction is the action name of the block preview endpoint.
const PreviewAction = "get_view_block_preview"

// Preview request form fields.
const (
	FormAction                   = "action"
	FormNonce                    = "wpnonce"
	FormViewID                   = "view_id"
	FormLimit                    = "limit"
	FormOverrideLimit            = "overrideLimit"
	FormOffset                   = "offset"
	FormOverrideOffset           = "overrideOffset"
	FormOrderby                  = "orderby"
	FormOverrideOrderby          = "overrideOrderby"
	FormOrder                    = "order"
	FormOverrideOrder            = "overrideOrder"
	FormSecondaryOrderby         = "secondaryOrderby"
	FormOverrideSecondaryOrderby = "overrideSecondaryOrderby"
	FormSecondaryOrder           = "secondaryOrder"
	FormOverrideSecondaryOrder   = "overrideSecondaryOrder"
	FormFormDisplay              = "formDisplay"
	FormQueryFilters             = "queryFilters"
)

// EncodePreviewForm builds the form body of a preview request. Raw attribute values
// are sent; the server rebuilds the directive itself.
func EncodePreviewForm(action, nonce string, a AttributeSet) (url.Values, error) {
	filters := a.QueryFilters
	if filters == nil {
		filters = map[string]string{}
	}
	rawFilters, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("encode query filters: %w", err)
	}
	v := url.Values{}
	v.Set(FormAction, action)
	v.Set(FormNonce, nonce)
	v.Set(FormViewID, PreviewReference(a.View))
	v.Set(FormLimit, strconv.Itoa(a.Limit))
	v.Set(FormOverrideLimit, strconv.FormatBool(a.OverrideLimit))
	v.Set(FormOffset, strconv.Itoa(a.Offset))
	v.Set(FormOverrideOffset, strconv.FormatBool(a.OverrideOffset))
	v.Set(FormOrderby, a.Orderby)
	v.Set(FormOverrideOrderby, strconv.FormatBool(a.OverrideOrderby))
	v.Set(FormOrder, a.Order)
	v.Set(FormOverrideOrder, strconv.FormatBool(a.OverrideOrder))
	v.Set(FormSecondaryOrderby, a.SecondaryOrderby)
	v.Set(FormOverrideSecondaryOrderby, strconv.FormatBool(a.OverrideSecondaryOrderby))
	v.Set(FormSecondaryOrder, a.SecondaryOrder)
	v.Set(FormOverrideSecondaryOrder, strconv.FormatBool(a.OverrideSecondaryOrder))
	v.Set(FormFormDisplay, a.FormDisplay)
	v.Set(FormQueryFilters, string(rawFilters))
	return v, nil
}

// DecodePreviewForm reads a preview request into an attribute set. Override flags
// are only true for the literal "true"; numeric values are only parsed when their
// override flag is set. Out of range gated values are kept and left for Resolve to
// drop; only the view reference and formDisplay are checked here.
func DecodePreviewForm(v url.Values) (AttributeSet, error) {
	a := DefaultAttributes()
	a.View = strings.TrimSpace(v.Get(FormViewID))
	if a.View == "" {
		return a, ErrViewNotSet
	}

	a.OverrideLimit = formBool(v, FormOverrideLimit)
	a.OverrideOffset = formBool(v, FormOverrideOffset)
	a.OverrideOrderby = formBool(v, FormOverrideOrderby)
	a.OverrideOrder = formBool(v, FormOverrideOrder)
	a.OverrideSecondaryOrderby = formBool(v, FormOverrideSecondaryOrderby)
	a.OverrideSecondaryOrder = formBool(v, FormOverrideSecondaryOrder)

	if a.OverrideLimit {
		n, err := formInt(v, FormLimit, -1)
		if err != nil {
			return a, err
		}
		a.Limit = n
	}
	if a.OverrideOffset {
		n, err := formInt(v, FormOffset, 0)
		if err != nil {
			return a, err
		}
		a.Offset = n
	}
	a.Orderby = strings.TrimSpace(v.Get(FormOrderby))
	a.Order = strings.ToLower(strings.TrimSpace(v.Get(FormOrder)))
	a.SecondaryOrderby = strings.TrimSpace(v.Get(FormSecondaryOrderby))
	a.SecondaryOrder = strings.ToLower(strings.TrimSpace(v.Get(FormSecondaryOrder)))
	if fd := strings.TrimSpace(v.Get(FormFormDisplay)); fd != "" {
		a.FormDisplay = fd
	}

	if raw := strings.TrimSpace(v.Get(FormQueryFilters)); raw != "" && raw != "[]" {
		filters := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			return a, fmt.Errorf("invalid %s: %w", FormQueryFilters, err)
		}
		a.QueryFilters = filters
	}
	switch a.FormDisplay {
	case FormDisplayFull, FormDisplayForm, FormDisplayResults:
	default:
		return a, fmt.Errorf("invalid %s %q", FormFormDisplay, a.FormDisplay)
	}
	return a, nil
}

func formBool(v url.Values, key string) bool {
	return strings.TrimSpace(v.Get(key)) == "true"
}

func formInt(v url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

// PreviewData is the success payload of the preview endpoint.
type PreviewData struct {
	ViewID          string           `json:"view_id"`
	HasCustomSearch bool             `json:"hasCustomSearch"`
	HasSubmit       bool             `json:"hasSubmit"`
	ExtraAttributes []ExtraAttribute `json:"hasExtraAttributes"`
	ViewContent     string           `json:"viewContent"`
	Overlay         string           `json:"overlay"`
}

// Facts extracts the read-only view facts of the payload.
func (d PreviewData) Facts() Facts {
	return Facts{
		HasCustomSearch: d.HasCustomSearch,
		HasSubmit:       d.HasSubmit,
		ExtraAttributes: d.ExtraAttributes,
	}
}

// PreviewFailure is the failure payload of the preview endpoint.
type PreviewFailure struct {
	Message string `json:"message"`
}

// Envelope is the JSON response wrapper of the preview endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}
