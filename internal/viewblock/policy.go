package viewblock

import "strconv"

// Field names an override-gated directive parameter.
type Field int

const (
	FieldLimit Field = iota
	FieldOffset
	FieldOrderby
	FieldOrder
	FieldSecondaryOrderby
	FieldSecondaryOrder
)

// overrideFields is the fixed clause order of the directive.
var overrideFields = []Field{
	FieldLimit,
	FieldOffset,
	FieldOrderby,
	FieldOrder,
	FieldSecondaryOrderby,
	FieldSecondaryOrder,
}

// Key is the directive attribute name of the field.
func (f Field) Key() string {
	switch f {
	case FieldLimit:
		return "limit"
	case FieldOffset:
		return "offset"
	case FieldOrderby:
		return "orderby"
	case FieldOrder:
		return "order"
	case FieldSecondaryOrderby:
		return "orderby_second"
	case FieldSecondaryOrder:
		return "order_second"
	}
	return ""
}

// DefaultPreviewLimit is the maximum number of items rendered in an editor preview.
const DefaultPreviewLimit = 10

// Resolve decides whether an override-gated field is emitted and with which value.
// A field is emitted only when its override flag is set and the raw value passes the
// field's validity predicate.
func Resolve(a AttributeSet, f Field) (string, bool) {
	switch f {
	case FieldLimit:
		if !a.OverrideLimit || a.Limit < -1 {
			return "", false
		}
		return strconv.Itoa(a.Limit), true
	case FieldOffset:
		if !a.OverrideOffset || a.Offset < 0 {
			return "", false
		}
		return strconv.Itoa(a.Offset), true
	case FieldOrderby:
		return gatedString(a.OverrideOrderby, a.Orderby)
	case FieldOrder:
		return gatedString(a.OverrideOrder, a.Order)
	case FieldSecondaryOrderby:
		return gatedString(a.OverrideSecondaryOrderby, a.SecondaryOrderby)
	case FieldSecondaryOrder:
		if a.SecondaryOrderby == "" {
			return "", false
		}
		return gatedString(a.OverrideSecondaryOrder, a.SecondaryOrder)
	}
	return "", false
}

func gatedString(override bool, v string) (string, bool) {
	if !override || v == "" {
		return "", false
	}
	return v, true
}

// ClampPreviewLimit applies the preview-only limit cap. The effective limit is the
// override value when one is emitted, otherwise the view's configured limit (nil when
// unknown). Unknown, unlimited (-1) or larger-than-max limits are capped to max.
func ClampPreviewLimit(override string, emitted bool, viewLimit *int, max int) (string, bool) {
	if max <= 0 {
		max = DefaultPreviewLimit
	}
	capped := strconv.Itoa(max)
	if emitted {
		n, err := strconv.Atoi(override)
		if err != nil || n > max || n == -1 {
			return capped, true
		}
		return override, true
	}
	if viewLimit == nil || *viewLimit > max || *viewLimit == -1 {
		return capped, true
	}
	return "", false
}
