package render

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mx-space/viewblock/internal/models"
	"github.com/mx-space/viewblock/internal/viewblock"
	"gorm.io/gorm"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// sortColumn maps an orderby value to a SQL expression. Unknown values are rejected.
func sortColumn(orderby string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(orderby)) {
	case "id", "post_id":
		return "id", true
	case "date", "post_date":
		return "date", true
	case "title", "post_title":
		return "title", true
	case "author", "post_author":
		return "author", true
	case "type", "post_type":
		return "type", true
	case "menu_order":
		return "menu_order", true
	}
	if name, ok := strings.CutPrefix(orderby, "field-"); ok && fieldNamePattern.MatchString(name) {
		return jsonField(name), true
	}
	return "", false
}

func jsonField(name string) string {
	return fmt.Sprintf(`JSON_UNQUOTE(JSON_EXTRACT(fields, '$."%s"'))`, name)
}

func direction(order, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case viewblock.OrderAsc:
		return "ASC"
	case viewblock.OrderDesc:
		return "DESC"
	}
	if fallback != "" {
		return direction(fallback, "")
	}
	return "DESC"
}

// itemQuery is the resolved query of one directive against its view.
type itemQuery struct {
	Limit   int
	Offset  int
	Sort    []string
	Filters []filter
	ViewID  uint
}

type filter struct {
	Expr string
	Args []interface{}
}

// buildQuery merges directive clauses over the view's own defaults.
func buildQuery(view *models.ViewModel, d viewblock.Directive) itemQuery {
	q := itemQuery{ViewID: view.ID, Limit: view.Limit, Offset: view.Offset}
	if v, ok := d.Get("limit"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= -1 {
			q.Limit = n
		}
	}
	if v, ok := d.Get("offset"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			q.Offset = n
		}
	}

	orderby, _ := d.Get("orderby")
	col, ok := sortColumn(orderby)
	if !ok {
		if col, ok = sortColumn(view.Orderby); !ok {
			col = "date"
		}
	}
	order, _ := d.Get("order")
	q.Sort = append(q.Sort, col+" "+direction(order, view.Order))

	secondaryBy, ok := d.Get("orderby_second")
	if !ok {
		secondaryBy = view.SecondaryOrderby
	}
	if col2, ok := sortColumn(secondaryBy); ok && col2 != col {
		order2, ok := d.Get("order_second")
		if !ok {
			order2 = view.SecondaryOrder
		}
		q.Sort = append(q.Sort, col2+" "+direction(order2, viewblock.OrderAsc))
	}
	q.Sort = append(q.Sort, "id ASC")

	for _, extra := range view.ExtraAttributes {
		v, ok := d.Get(extra.Attribute)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if f, ok := filterFor(extra.FilterType, v); ok {
			q.Filters = append(q.Filters, f)
		}
	}
	return q
}

func filterFor(filterType, value string) (filter, bool) {
	switch filterType {
	case "post_author", "author":
		return filter{Expr: "author IN ?", Args: []interface{}{splitList(value)}}, true
	case "post_type", "type":
		return filter{Expr: "type IN ?", Args: []interface{}{splitList(value)}}, true
	case "post_id", "id":
		return filter{Expr: "id IN ?", Args: []interface{}{splitList(value)}}, true
	case "search", "s":
		return filter{Expr: "title LIKE ?", Args: []interface{}{"%" + value + "%"}}, true
	}
	if !fieldNamePattern.MatchString(filterType) {
		return filter{}, false
	}
	return filter{Expr: jsonField(filterType) + " IN ?", Args: []interface{}{splitList(value)}}, true
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// apply scopes tx to q.
func (q itemQuery) apply(tx *gorm.DB) *gorm.DB {
	tx = tx.Where("view_id = ?", q.ViewID)
	for _, f := range q.Filters {
		tx = tx.Where(f.Expr, f.Args...)
	}
	for _, s := range q.Sort {
		tx = tx.Order(s)
	}
	switch {
	case q.Limit >= 0:
		tx = tx.Limit(q.Limit)
	case q.Offset > 0:
		// MySQL has no OFFSET without LIMIT.
		tx = tx.Limit(math.MaxInt32)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}
