package viewblock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BlockName is the editor block type persisted in post content.
const BlockName = "toolset-views/view-editor"

var (
	blockOpen  = "<!-- wp:" + BlockName
	blockClose = "<!-- /wp:" + BlockName + " -->"
)

// ErrNoBlock is returned when markup contains no view block.
var ErrNoBlock = errors.New("no view block in markup")

// Block is a persisted view block: its attributes and the directive computed at
// save time. The directive is kept verbatim on load.
type Block struct {
	Attributes AttributeSet
	Directive  string
}

// SaveBlock serializes the attributes together with their publish directive. A block
// without a view reference saves no markup.
func SaveBlock(a AttributeSet) (string, error) {
	if NormalizeReference(a.View) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a); err != nil {
		return "", fmt.Errorf("encode block attributes: %w", err)
	}
	raw := strings.TrimSpace(buf.String())
	// Comment delimiters must not appear inside the attribute payload.
	raw = strings.ReplaceAll(raw, "--", `\u002d\u002d`)

	var b strings.Builder
	b.WriteString(blockOpen)
	b.WriteString(" ")
	b.WriteString(raw)
	b.WriteString(" -->\n")
	b.WriteString(BuildDirective(a, ModePublish))
	b.WriteString("\n")
	b.WriteString(blockClose)
	return b.String(), nil
}

// LoadBlock reconstructs the first view block found in markup.
func LoadBlock(markup string) (Block, error) {
	start := strings.Index(markup, blockOpen)
	if start < 0 {
		return Block{}, ErrNoBlock
	}
	rest := markup[start+len(blockOpen):]
	headerEnd := strings.Index(rest, "-->")
	if headerEnd < 0 {
		return Block{}, fmt.Errorf("view block: unterminated opening comment")
	}
	header := strings.TrimSpace(rest[:headerEnd])
	rest = rest[headerEnd+len("-->"):]
	end := strings.Index(rest, blockClose)
	if end < 0 {
		return Block{}, fmt.Errorf("view block: missing closing comment")
	}

	attrs := DefaultAttributes()
	if header != "" {
		if err := json.Unmarshal([]byte(header), &attrs); err != nil {
			return Block{}, fmt.Errorf("view block attributes: %w", err)
		}
	}
	if attrs.QueryFilters == nil {
		attrs.QueryFilters = map[string]string{}
	}
	if attrs.ExtraAttributes == nil {
		attrs.ExtraAttributes = []ExtraAttribute{}
	}
	if err := attrs.Validate(); err != nil {
		return Block{}, fmt.Errorf("view block attributes: %w", err)
	}
	return Block{Attributes: attrs, Directive: strings.TrimSpace(rest[:end])}, nil
}
