package query

import (
	"fmt"
	"strings"

	"notes-api/internal/apperr"
)

type SortMode string

const (
	SortPriority SortMode = "priority"
	SortDate     SortMode = "date"
	SortTitle    SortMode = "title"
	SortPinned   SortMode = "pinned"
	SortMulti    SortMode = "multi"
)

type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// Sort is an ordering request. The zero value is insertion order.
type Sort struct {
	Mode  SortMode
	Order Order
}

// ParseSort validates mode; any order other than "asc" sorts descending.
func ParseSort(mode, order string) (Sort, error) {
	m := SortMode(strings.ToLower(strings.TrimSpace(mode)))
	switch m {
	case SortPriority, SortDate, SortTitle, SortPinned, SortMulti:
	default:
		return Sort{}, apperr.Validation("Invalid sort field")
	}

	o := Desc
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		o = Asc
	}
	return Sort{Mode: m, Order: o}, nil
}

func (s Sort) IsNatural() bool {
	return s.Mode == ""
}

// OrderBy returns the ORDER BY clause for the notes table aliased as alias.
// Ties always fall back to the newest note first, then the id, so paging is stable.
func (s Sort) OrderBy(alias string) string {
	col := func(name string) string { return alias + "." + name }
	dir := s.Order
	if dir != Asc {
		dir = Desc
	}
	rank := fmt.Sprintf(
		"CASE %s WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END",
		col("priority"))
	newest := col("created_at") + " DESC, " + col("id") + " DESC"

	var terms string
	switch s.Mode {
	case SortPriority:
		terms = fmt.Sprintf("%s %s, %s", rank, dir, newest)
	case SortDate:
		terms = fmt.Sprintf("%s %s, %s %s", col("created_at"), dir, col("id"), dir)
	case SortTitle:
		terms = fmt.Sprintf("%s %s, %s", col("title"), dir, newest)
	case SortPinned:
		terms = fmt.Sprintf("%s %s, %s", col("is_pinned"), dir, newest)
	case SortMulti:
		// pinned notes lead regardless of direction
		terms = fmt.Sprintf("%s DESC, %s %s, %s %s, %s %s",
			col("is_pinned"), rank, dir, col("created_at"), dir, col("id"), dir)
	default:
		terms = col("id") + " ASC"
	}
	return "ORDER BY " + terms
}
