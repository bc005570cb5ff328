package models

// Operator is the closed set of comparisons a plan may use.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGte Operator = "gte"
	OpLte Operator = "lte"
	// OpIn matches any of the primary keys returned by the plan named in DependsOn.
	OpIn  Operator = "in"
)

// ParamSource records where a bound value came from.
type ParamSource string

const (
	SourceLiteral        ParamSource = "literal"
	SourceCallerIdentity ParamSource = "caller_identity"
	SourceClock          ParamSource = "clock"
	SourceUserSlot       ParamSource = "user_slot"
	SourcePlanRows       ParamSource = "plan_rows"
)

// Param is always bound by the executor, never spliced into query text.
type Param struct {
	Value  interface{} `json:"value"`
	Source ParamSource `json:"source"`
}

func Literal(v interface{}) Param  { return Param{Value: v, Source: SourceLiteral} }
func Identity(email string) Param { return Param{Value: email, Source: SourceCallerIdentity} }
func Clock(v interface{}) Param    { return Param{Value: v, Source: SourceClock} }
func UserSlot(v string) Param      { return Param{Value: v, Source: SourceUserSlot} }

// FromPlan is a placeholder filled with the parent plan's primary keys at assembly time.
func FromPlan() Param { return Param{Source: SourcePlanRows} }

type Predicate struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Param    Param    `json:"param"`
}

// KeywordFilter matches when any term is contained, case-insensitively, in any column.
type KeywordFilter struct {
	Columns []string `json:"columns"`
	Terms   []Param  `json:"terms"`
}

type OrderBy struct {
	Column    string `json:"column"`
	Desc      bool   `json:"desc"`
	NullsLast bool   `json:"nullsLast"`
}

// QueryPlan is the single-table, read-only query IR. Predicates are ANDed.
// A plan with DependsOn runs after that plan and only when it returned rows.
type QueryPlan struct {
	Key        string         `json:"key"`
	Table      string         `json:"table"`
	DependsOn  string         `json:"dependsOn,omitempty"`
	Columns    []string       `json:"columns"`
	Predicates []Predicate    `json:"predicates"`
	Keyword    *KeywordFilter `json:"keyword,omitempty"`
	OrderBy    []OrderBy      `json:"orderBy"`
	Limit      int            `json:"limit"`
}

// HasIdentityPredicate reports whether the plan is bound to the caller through column.
func (p QueryPlan) HasIdentityPredicate(column string) bool {
	for _, pred := range p.Predicates {
		if pred.Column == column && pred.Operator == OpEq && pred.Param.Source == SourceCallerIdentity {
			if s, ok := pred.Param.Value.(string); ok && s != "" {
				return true
			}
		}
	}
	return false
}

// BindParent fills every plan_rows predicate with ids and returns the copy.
func (p QueryPlan) BindParent(ids interface{}) QueryPlan {
	bound := p
	bound.Predicates = make([]Predicate, len(p.Predicates))
	for i, pred := range p.Predicates {
		if pred.Param.Source == SourcePlanRows {
			pred.Param.Value = ids
		}
		bound.Predicates[i] = pred
	}
	return bound
}
