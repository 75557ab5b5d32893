// Package query turns note listing parameters into SQL fragments.
package query

import (
	"net/url"
	"strings"

	"notes-api/internal/apperr"
	"notes-api/internal/models"

	"github.com/samber/lo"
)

// Filter holds the optional predicates of a search. A nil/empty field adds nothing.
type Filter struct {
	Text     string
	Priority models.Priority
	Tags     []string
	IsPinned *bool
}

// ParseFilter reads q, priority, tags and isPinned.
func ParseFilter(values url.Values) (Filter, error) {
	var f Filter

	f.Text = strings.TrimSpace(values.Get("q"))

	if raw := strings.TrimSpace(values.Get("priority")); raw != "" {
		p, ok := models.ParsePriority(raw)
		if !ok {
			return Filter{}, apperr.Validation("Invalid priority value")
		}
		f.Priority = p
	}

	// tags=a,b and tags=a&tags=b are both accepted
	f.Tags = lo.Uniq(lo.FlatMap(values["tags"], func(raw string, _ int) []string {
		return lo.Compact(lo.Map(strings.Split(raw, ","), func(tag string, _ int) string {
			return strings.TrimSpace(tag)
		}))
	}))

	switch strings.ToLower(strings.TrimSpace(values.Get("isPinned"))) {
	case "true":
		f.IsPinned = lo.ToPtr(true)
	case "false":
		f.IsPinned = lo.ToPtr(false)
	}

	return f, nil
}

func (f Filter) IsEmpty() bool {
	return f.Text == "" && f.Priority == "" && len(f.Tags) == 0 && f.IsPinned == nil
}

// Where builds the WHERE clause for the notes table aliased as alias. The
// owner predicate always comes first.
func (f Filter) Where(alias string, ownerID int64) (string, []any) {
	col := func(name string) string { return alias + "." + name }

	conditions := []string{col("user_id") + " = ?"}
	args := []any{ownerID}

	if f.Text != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Text)) + "%"
		conditions = append(conditions,
			"(LOWER("+col("title")+") LIKE ? ESCAPE '!' OR LOWER("+col("description")+") LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}

	if f.Priority != "" {
		conditions = append(conditions, col("priority")+" = ?")
		args = append(args, string(f.Priority))
	}

	if len(f.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Tags)), ", ")
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM note_tags nt WHERE nt.note_id = "+col("id")+" AND nt.tag IN ("+placeholders+"))")
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}

	if f.IsPinned != nil {
		conditions = append(conditions, col("is_pinned")+" = ?")
		args = append(args, *f.IsPinned)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
