package query

import (
	"net/url"
	"strings"

	"yarukoto/internal/todo"
)

type Sort string

const (
	SortCreatedDesc  Sort = "created_desc"
	SortCreatedAsc   Sort = "created_asc"
	SortDueAsc       Sort = "due_asc"
	SortPriorityDesc Sort = "priority_desc"
)

// orderClauses is the only source of ORDER BY text. Sort keys coming from
// a request are looked up here and never written into SQL themselves.
var orderClauses = map[Sort]string{
	SortCreatedDesc:  "created_at DESC, id DESC",
	SortCreatedAsc:   "created_at ASC, id ASC",
	SortDueAsc:       "due_date IS NULL, due_date ASC, id ASC",
	SortPriorityDesc: "CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at DESC, id DESC",
}

func Sorts() []Sort {
	return []Sort{SortCreatedDesc, SortCreatedAsc, SortDueAsc, SortPriorityDesc}
}

func ParseSort(v string) Sort {
	s := Sort(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := orderClauses[s]; ok {
		return s
	}
	return SortCreatedDesc
}

type Params struct {
	Q        string `json:"q"`
	Priority string `json:"priority"`
	Tag      string `json:"tag"`
	Sort     Sort   `json:"sort"`
}

func ParseParams(v url.Values) Params {
	return Params{
		Q:        v.Get("q"),
		Priority: v.Get("priority"),
		Tag:      v.Get("tag"),
		Sort:     ParseSort(v.Get("sort")),
	}
}

// Normalize trims the free text inputs, drops a priority that is not one
// of the known values and resolves the sort key.
func (p Params) Normalize() Params {
	out := Params{
		Q:    strings.TrimSpace(p.Q),
		Tag:  strings.TrimSpace(p.Tag),
		Sort: ParseSort(string(p.Sort)),
	}
	if pr := todo.Priority(strings.TrimSpace(p.Priority)); pr.Valid() {
		out.Priority = string(pr)
	}
	return out
}

// Key identifies an equivalent set of parameters, used for caching.
func (p Params) Key() string {
	n := p.Normalize()
	return strings.Join([]string{
		strings.ToLower(n.Q),
		n.Priority,
		strings.ToLower(n.Tag),
		string(n.Sort),
	}, "|")
}

type Spec struct {
	Where   string
	OrderBy string
	Args    []any
}

func Build(p Params) Spec {
	p = p.Normalize()

	var conds []string
	var args []any
	if p.Q != "" {
		pattern := likePattern(p.Q)
		conds = append(conds, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if p.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, p.Priority)
	}
	if p.Tag != "" {
		// Plain substring over the raw column: "wo" also matches "work".
		conds = append(conds, `LOWER(tags) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(p.Tag))
	}

	spec := Spec{OrderBy: orderClauses[p.Sort], Args: args}
	if len(conds) > 0 {
		spec.Where = strings.Join(conds, " AND ")
	}
	return spec
}

// SQL renders the full statement for the given column list and table.
func (s Spec) SQL(columns, table string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columns)
	b.WriteString(" FROM ")
	b.WriteString(table)
	if s.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where)
	}
	b.WriteString(" ORDER BY ")
	if s.OrderBy != "" {
		b.WriteString(s.OrderBy)
	} else {
		b.WriteString(orderClauses[SortCreatedDesc])
	}
	return b.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(v string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(v)) + "%"
}
