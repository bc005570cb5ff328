// Package queries renders validated query plans into parameterized Postgres statements.
package queries

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"travelgo-chat/internal/models"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrEmptyPlan       = errors.New("plan selects no columns")
	ErrUnboundParent   = errors.New("parent rows must be []int64 or []string")
)

// Statement is SQL text plus its positional arguments. User-derived values
// only ever appear in Args.
type Statement struct {
	SQL  string
	Args []interface{}
}

var operators = map[models.Operator]string{
	models.OpEq:  "=",
	models.OpGte: ">=",
	models.OpLte: "<=",
}

// Render converts plan into a single-table SELECT.
func Render(plan models.QueryPlan) (Statement, error) {
	if len(plan.Columns) == 0 {
		return Statement{}, fmt.Errorf("%w: %s", ErrEmptyPlan, plan.Key)
	}

	var (
		sb   strings.Builder
		args []interface{}
	)
	bind := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	cols := make([]string, len(plan.Columns))
	for i, c := range plan.Columns {
		cols[i] = pq.QuoteIdentifier(c)
	}
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(pq.QuoteIdentifier(plan.Table))

	var where []string
	for _, p := range plan.Predicates {
		col := pq.QuoteIdentifier(p.Column)
		if p.Operator == models.OpIn {
			arr, err := parentArray(p.Param.Value)
			if err != nil {
				return Statement{}, fmt.Errorf("%w: %s.%s", err, plan.Key, p.Column)
			}
			where = append(where, fmt.Sprintf("%s = ANY(%s)", col, bind(arr)))
			continue
		}
		op, ok := operators[p.Operator]
		if !ok {
			return Statement{}, fmt.Errorf("%w: %q", ErrUnknownOperator, p.Operator)
		}
		// Owner addresses compare case-insensitively; the caller side is already lower-case.
		if email, ok := p.Param.Value.(string); ok && p.Param.Source == models.SourceCallerIdentity {
			where = append(where, fmt.Sprintf("lower(%s) %s %s", col, op, bind(strings.ToLower(email))))
			continue
		}
		where = append(where, fmt.Sprintf("%s %s %s", col, op, bind(p.Param.Value)))
	}

	if kw := plan.Keyword; kw != nil && len(kw.Terms) > 0 {
		var alts []string
		for _, term := range kw.Terms {
			ph := bind("%" + escapeLike(fmt.Sprint(term.Value)) + "%")
			for _, c := range kw.Columns {
				alts = append(alts, fmt.Sprintf("%s ILIKE %s", pq.QuoteIdentifier(c), ph))
			}
		}
		where = append(where, "("+strings.Join(alts, " OR ")+")")
	}

	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	if len(plan.OrderBy) > 0 {
		order := make([]string, len(plan.OrderBy))
		for i, o := range plan.OrderBy {
			s := pq.QuoteIdentifier(o.Column)
			if o.Desc {
				s += " DESC"
			} else {
				s += " ASC"
			}
			if o.NullsLast {
				s += " NULLS LAST"
			}
			order[i] = s
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}

	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(plan.Limit))

	return Statement{SQL: sb.String(), Args: args}, nil
}

// parentArray wraps the parent plan's keys as a Postgres array. An unbound
// placeholder renders as an empty array.
func parentArray(v interface{}) (interface{}, error) {
	switch ids := v.(type) {
	case nil:
		return pq.Int64Array{}, nil
	case []int64:
		return pq.Int64Array(ids), nil
	case []string:
		return pq.StringArray(ids), nil
	}
	return nil, ErrUnboundParent
}

// escapeLike neutralizes LIKE wildcards inside a user term.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
