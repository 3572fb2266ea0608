package viewblock

import (
	"fmt"
	"strings"
)

// Directive keywords understood by the renderer.
const (
	KeywordView     = "wpv-view"
	KeywordFormView = "wpv-form-view"
)

// Mode selects the path a directive is built for.
type Mode int

const (
	// ModePublish builds the directive persisted in the saved block.
	ModePublish Mode = iota
	// ModePreview builds the directive rendered in the editor preview.
	ModePreview
)

// Options tune directive construction.
type Options struct {
	Mode Mode
	// ViewLimit is the referenced view's own configured limit; nil when unknown.
	// Only consulted in preview mode.
	ViewLimit *int
	// PreviewLimit caps the preview item count; zero means DefaultPreviewLimit.
	PreviewLimit int
}

// BuildDirective renders the attribute set as a directive for the given mode.
// In preview mode the referenced view's limit is treated as unknown.
func BuildDirective(a AttributeSet, mode Mode) string {
	return Build(a, Options{Mode: mode})
}

// Keyword returns the directive keyword for the attribute set. Only a view with a
// custom search displaying its form alone uses the form keyword.
func Keyword(a AttributeSet) string {
	if a.HasCustomSearch && a.FormDisplay == FormDisplayForm {
		return KeywordFormView
	}
	return KeywordView
}

// Build renders the canonical directive. It is pure: equal inputs give equal output.
func Build(a AttributeSet, opts Options) string {
	var b strings.Builder
	keyword := Keyword(a)
	b.WriteString("[")
	b.WriteString(keyword)

	if ref := NormalizeReference(a.View); ref != "" {
		if IsNumericReference(ref) {
			writeClause(&b, "id", ref)
		} else {
			writeClause(&b, "name", ref)
		}
	}

	// A published form-only block never carries query overrides.
	skipOverrides := opts.Mode == ModePublish && a.FormDisplay == FormDisplayForm
	if !skipOverrides {
		for _, f := range overrideFields {
			v, ok := Resolve(a, f)
			if f == FieldLimit && opts.Mode == ModePreview {
				v, ok = ClampPreviewLimit(v, ok, opts.ViewLimit, opts.PreviewLimit)
			}
			if ok {
				writeClause(&b, f.Key(), v)
			}
		}
	}

	if a.FormDisplay == FormDisplayResults {
		writeClause(&b, "view_display", "layout")
	} else if keyword == KeywordFormView {
		if target, ok := targetClause(a); ok {
			writeClause(&b, "target_id", target)
		}
	}

	for _, extra := range a.ExtraAttributes {
		if extra.Attribute == "" || extra.FilterType == "" {
			continue
		}
		if v := a.QueryFilters[extra.FilterType]; v != "" {
			writeClause(&b, extra.Attribute, v)
		}
	}

	b.WriteString("]")
	return b.String()
}

// targetClause resolves where a form-only directive sends its results. When another
// page is requested but the form has no submit button or no page was chosen, no
// target is emitted at all.
func targetClause(a AttributeSet) (string, bool) {
	switch a.FormOnlyDisplay {
	case "", FormOnlyDisplaySamePage:
		return "self", true
	case FormOnlyDisplayOtherPage:
		if a.HasSubmit && a.OtherPage != nil && a.OtherPage.Value != "" {
			return a.OtherPage.Value, true
		}
	}
	return "", false
}

func writeClause(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, ` %s="%s"`, key, escapeValue(value))
}

var valueEscaper = strings.NewReplacer(`"`, "&quot;", "]", "&#93;")

var valueUnescaper = strings.NewReplacer("&quot;", `"`, "&#93;", "]")

func escapeValue(v string) string { return valueEscaper.Replace(v) }

// Attr is one key/value clause of a parsed directive.
type Attr struct {
	Key   string
	Value string
}

// Directive is a parsed directive.
type Directive struct {
	Keyword string
	Attrs   []Attr
}

// Get returns the value of the last clause with the given key.
func (d Directive) Get(key string) (string, bool) {
	for i := len(d.Attrs) - 1; i >= 0; i-- {
		if d.Attrs[i].Key == key {
			return d.Attrs[i].Value, true
		}
	}
	return "", false
}

// String renders the directive back to text.
func (d Directive) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(d.Keyword)
	for _, a := range d.Attrs {
		writeClause(&b, a.Key, a.Value)
	}
	b.WriteString("]")
	return b.String()
}

// ParseDirective parses a single directive such as `[wpv-view id="42" limit="10"]`.
// Values may be double-quoted, single-quoted or bare.
func ParseDirective(s string) (Directive, error) {
	src := strings.TrimSpace(s)
	if len(src) < 2 || src[0] != '[' || src[len(src)-1] != ']' {
		return Directive{}, fmt.Errorf("directive %q: missing brackets", s)
	}
	body := src[1 : len(src)-1]
	i := 0
	for i < len(body) && !isSpace(body[i]) {
		i++
	}
	d := Directive{Keyword: body[:i]}
	if d.Keyword == "" {
		return Directive{}, fmt.Errorf("directive %q: missing keyword", s)
	}

	for {
		for i < len(body) && isSpace(body[i]) {
			i++
		}
		if i >= len(body) {
			break
		}
		start := i
		for i < len(body) && body[i] != '=' && !isSpace(body[i]) {
			i++
		}
		key := body[start:i]
		if i >= len(body) || body[i] != '=' {
			return Directive{}, fmt.Errorf("directive %q: attribute %q has no value", s, key)
		}
		i++
		var value string
		if i < len(body) && (body[i] == '"' || body[i] == '\'') {
			quote := body[i]
			i++
			end := strings.IndexByte(body[i:], quote)
			if end < 0 {
				return Directive{}, fmt.Errorf("directive %q: unterminated value for %q", s, key)
			}
			value = body[i : i+end]
			i += end + 1
		} else {
			start := i
			for i < len(body) && !isSpace(body[i]) {
				i++
			}
			value = body[start:i]
		}
		d.Attrs = append(d.Attrs, Attr{Key: key, Value: valueUnescaper.Replace(value)})
	}
	return d, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
