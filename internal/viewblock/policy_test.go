package viewblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldKeys(t *testing.T) {
	var keys []string
	for _, f := range overrideFields {
		keys = append(keys, f.Key())
	}
	assert.Equal(t, []string{"limit", "offset", "orderby", "order", "orderby_second", "order_second"}, keys)
}

func TestResolve(t *testing.T) {
	a := DefaultAttributes()
	a.Limit = 12
	a.Orderby = "post_title"

	_, ok := Resolve(a, FieldLimit)
	assert.False(t, ok)

	a.OverrideLimit = true
	v, ok := Resolve(a, FieldLimit)
	assert.True(t, ok)
	assert.Equal(t, "12", v)

	a.OverrideOrderby = true
	v, ok = Resolve(a, FieldOrderby)
	assert.True(t, ok)
	assert.Equal(t, "post_title", v)

	a.OverrideSecondaryOrder, a.SecondaryOrder = true, OrderDesc
	_, ok = Resolve(a, FieldSecondaryOrder)
	assert.False(t, ok, "secondary order without a secondary field")

	_, ok = Resolve(a, Field(99))
	assert.False(t, ok)
}

func TestClampPreviewLimit(t *testing.T) {
	tests := []struct {
		name      string
		override  string
		emitted   bool
		viewLimit *int
		max       int
		want      string
		wantOK    bool
	}{
		{name: "override within cap", override: "5", emitted: true, want: "5", wantOK: true},
		{name: "override equal cap", override: "10", emitted: true, want: "10", wantOK: true},
		{name: "override above cap", override: "15", emitted: true, want: "10", wantOK: true},
		{name: "override unlimited", override: "-1", emitted: true, want: "10", wantOK: true},
		{name: "override zero", override: "0", emitted: true, want: "0", wantOK: true},
		{name: "view limit small", viewLimit: intPtr(4), want: "", wantOK: false},
		{name: "view limit large", viewLimit: intPtr(50), want: "10", wantOK: true},
		{name: "view unlimited", viewLimit: intPtr(-1), want: "10", wantOK: true},
		{name: "view unknown", want: "10", wantOK: true},
		{name: "custom cap", override: "8", emitted: true, max: 3, want: "3", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClampPreviewLimit(tt.override, tt.emitted, tt.viewLimit, tt.max)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
