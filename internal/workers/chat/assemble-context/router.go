package assemblecontext

import (
	"context"
	"encoding/json"

	"travelgo-chat/internal/models"
	esqueries "travelgo-chat/internal/workers/data-access/query-elasticsearch/queries"
	pgqueries "travelgo-chat/internal/workers/data-access/query-postgresql/queries"
)

// PlanExecutor is the data-access collaborator. Implementations bind every
// Param and never reinterpret predicates.
type PlanExecutor interface {
	ExecutePlan(ctx context.Context, plan models.QueryPlan) ([]models.Row, error)
}

// PlanDescriber renders a plan for provenance.
type PlanDescriber interface {
	DescribePlan(plan models.QueryPlan) string
}

// Router sends plans for search tables to the search executor and
// everything else to the relational one.
type Router struct {
	relational   PlanExecutor
	search       PlanExecutor
	searchTables map[string]struct{}
	indexPrefix  string
}

func NewRouter(relational, search PlanExecutor, searchTables []string, indexPrefix string) *Router {
	set := make(map[string]struct{}, len(searchTables))
	for _, t := range searchTables {
		set[t] = struct{}{}
	}
	return &Router{
		relational:   relational,
		search:       search,
		searchTables: set,
		indexPrefix:  indexPrefix,
	}
}

func (r *Router) usesSearch(table string) bool {
	if r.search == nil {
		return false
	}
	_, ok := r.searchTables[table]
	return ok
}

func (r *Router) ExecutePlan(ctx context.Context, plan models.QueryPlan) ([]models.Row, error) {
	if r.usesSearch(plan.Table) {
		return r.search.ExecutePlan(ctx, plan)
	}
	return r.relational.ExecutePlan(ctx, plan)
}

// DescribePlan returns the SQL text, or the search body prefixed with the
// target index. Bound values are never included.
func (r *Router) DescribePlan(plan models.QueryPlan) string {
	if r.usesSearch(plan.Table) {
		body, err := esqueries.BuildQuery(redact(plan))
		if err != nil {
			return ""
		}
		data, err := json.Marshal(body)
		if err != nil {
			return ""
		}
		return "GET " + r.indexPrefix + plan.Table + "/_search " + string(data)
	}
	return describeSQL(plan)
}

func describeSQL(plan models.QueryPlan) string {
	stmt, err := pgqueries.Render(plan)
	if err != nil {
		return ""
	}
	return stmt.SQL
}

func redact(plan models.QueryPlan) models.QueryPlan {
	out := plan
	out.Predicates = make([]models.Predicate, len(plan.Predicates))
	for i, p := range plan.Predicates {
		p.Param.Value = "?"
		out.Predicates[i] = p
	}
	if plan.Keyword != nil {
		terms := make([]models.Param, len(plan.Keyword.Terms))
		for i, t := range plan.Keyword.Terms {
			t.Value = "?"
			terms[i] = t
		}
		out.Keyword = &models.KeywordFilter{Columns: plan.Keyword.Columns, Terms: terms}
	}
	return out
}
