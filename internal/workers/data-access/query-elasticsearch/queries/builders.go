// Package queries translates query plans into Elasticsearch search requests.
package queries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"travelgo-chat/internal/models"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrMissingIndex    = errors.New("index name is required")
)

// BuildQuery returns the search body for plan: predicates become filters,
// the keyword filter becomes a should-group of multi_match clauses.
func BuildQuery(plan models.QueryPlan) (map[string]interface{}, error) {
	filters := []interface{}{}
	for _, p := range plan.Predicates {
		switch p.Operator {
		case models.OpEq:
			var value interface{} = p.Param.Value
			if p.Param.Source == models.SourceCallerIdentity {
				value = map[string]interface{}{"value": p.Param.Value, "case_insensitive": true}
			}
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{p.Column: value},
			})
		case models.OpIn:
			filters = append(filters, map[string]interface{}{
				"terms": map[string]interface{}{p.Column: termsValues(p.Param.Value)},
			})
		case models.OpGte:
			filters = append(filters, map[string]interface{}{
				"range": map[string]interface{}{p.Column: map[string]interface{}{"gte": p.Param.Value}},
			})
		case models.OpLte:
			filters = append(filters, map[string]interface{}{
				"range": map[string]interface{}{p.Column: map[string]interface{}{"lte": p.Param.Value}},
			})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, p.Operator)
		}
	}

	boolQuery := map[string]interface{}{"filter": filters}

	if kw := plan.Keyword; kw != nil && len(kw.Terms) > 0 {
		should := make([]interface{}, 0, len(kw.Terms))
		for _, term := range kw.Terms {
			should = append(should, map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  term.Value,
					"fields": kw.Columns,
				},
			})
		}
		boolQuery["should"] = should
		boolQuery["minimum_should_match"] = 1
	}

	sort := make([]interface{}, 0, len(plan.OrderBy))
	for _, o := range plan.OrderBy {
		order := "asc"
		if o.Desc {
			order = "desc"
		}
		clause := map[string]interface{}{"order": order}
		if o.NullsLast {
			clause["missing"] = "_last"
		}
		sort = append(sort, map[string]interface{}{o.Column: clause})
	}

	return map[string]interface{}{
		"_source": plan.Columns,
		"query":   map[string]interface{}{"bool": boolQuery},
		"sort":    sort,
		"size":    plan.Limit,
	}, nil
}

func termsValues(v interface{}) interface{} {
	switch ids := v.(type) {
	case nil:
		return []interface{}{}
	case []int64, []string, []interface{}:
		return ids
	}
	return []interface{}{v}
}

// BuildRequest wraps BuildQuery in a search request against index.
func BuildRequest(index string, plan models.QueryPlan) (*esapi.SearchRequest, error) {
	if index == "" {
		return nil, ErrMissingIndex
	}
	body, err := BuildQuery(plan)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return &esapi.SearchRequest{
		Index:          []string{index},
		Body:           bytes.NewReader(data),
		TrackTotalHits: false,
	}, nil
}
