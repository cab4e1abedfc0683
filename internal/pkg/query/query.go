// Package query turns list request parameters into filters, ordering, field
// projection and pagination, and applies them to a gorm query.
package query

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"natours-api/internal/core/domain"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"
)

// Operator is a comparison used by a filter condition.
type Operator string

const (
	OpEq  Operator = "eq"
	OpIn  Operator = "in"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

var reserved = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

var bracketKey = regexp.MustCompile(`^([A-Za-z0-9_]+)\[([A-Za-z]+)\]$`)

// Params is the raw multi-valued query string of a request.
type Params map[string][]string

// Condition is one filter. Value holds a string for comparisons and a
// []string for OpIn; Apply converts it to the column's type.
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
}

// Eq is shorthand for an equality condition.
func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// SortField orders by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Spec is a parsed list request.
type Spec struct {
	Filters []Condition
	Sort    []SortField
	Fields  []string
	Page    int
	Limit   int
}

// Offset returns the number of records skipped before the current page. It
// saturates at math.MaxInt so an absurd page still lies past the end.
func (s *Spec) Offset() int {
	if s.Page <= 1 || s.Limit <= 0 {
		return 0
	}
	if s.Page-1 > math.MaxInt/s.Limit {
		return math.MaxInt
	}
	return (s.Page - 1) * s.Limit
}

// Where prepends fixed conditions. They are ANDed with the request filters.
func (s *Spec) Where(conds ...Condition) *Spec {
	s.Filters = append(append([]Condition{}, conds...), s.Filters...)
	return s
}

// Parse builds a Spec from raw parameters. Reserved keys control paging,
// ordering and projection; every other key becomes a filter. A bare key is
// an equality filter (several values become a set membership), and
// key[gte|gt|lte|lt] is a range comparison.
func Parse(params Params) (*Spec, error) {
	spec := &Spec{
		Page:  positiveInt(first(params["page"]), DefaultPage),
		Limit: positiveInt(first(params["limit"]), DefaultLimit),
	}

	for key, values := range params {
		if _, ok := reserved[key]; ok || len(values) == 0 {
			continue
		}

		if m := bracketKey.FindStringSubmatch(key); m != nil {
			op := Operator(strings.ToLower(m[2]))
			switch op {
			case OpGt, OpGte, OpLt, OpLte:
			default:
				return nil, domain.NewValidation("Invalid filter operator: " + m[2])
			}
			for _, v := range values {
				spec.Filters = append(spec.Filters, Condition{Field: m[1], Op: op, Value: v})
			}
			continue
		}

		if strings.ContainsAny(key, "[]") {
			return nil, domain.NewValidation("Invalid filter: " + key)
		}

		if len(values) == 1 {
			spec.Filters = append(spec.Filters, Condition{Field: key, Op: OpEq, Value: values[0]})
		} else {
			spec.Filters = append(spec.Filters, Condition{Field: key, Op: OpIn, Value: append([]string{}, values...)})
		}
	}
	sortConditions(spec.Filters)

	sortParam := first(params["sort"])
	if strings.TrimSpace(sortParam) == "" {
		sortParam = DefaultSort
	}
	for _, f := range splitList(sortParam) {
		if strings.HasPrefix(f, "-") {
			spec.Sort = append(spec.Sort, SortField{Field: f[1:], Desc: true})
		} else {
			spec.Sort = append(spec.Sort, SortField{Field: strings.TrimPrefix(f, "+")})
		}
	}

	spec.Fields = splitList(first(params["fields"]))

	return spec, nil
}

// map iteration order is random; keep the generated SQL stable.
func sortConditions(conds []Condition) {
	for i := 1; i < len(conds); i++ {
		for j := i; j > 0 && conditionLess(conds[j], conds[j-1]); j-- {
			conds[j], conds[j-1] = conds[j-1], conds[j]
		}
	}
}

func conditionLess(a, b Condition) bool {
	if a.Field != b.Field {
		return a.Field < b.Field
	}
	return a.Op < b.Op
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// positiveInt parses a paging value. Values too large for an int saturate
// at math.MaxInt rather than falling back.
func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return math.MaxInt
	}
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" && part != "-" {
			out = append(out, part)
		}
	}
	return out
}
