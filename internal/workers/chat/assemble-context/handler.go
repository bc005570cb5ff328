package assemblecontext

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
	"travelgo-chat/pkg/registry"
)

const (
	TaskType = "assemble-context"
)

var (
	ErrNilInput      = errors.New("INVALID_REQUEST")
	ErrUnknownParent = errors.New("parent plan not in request")
)

// Handler executes query plans and folds their rows into a ContextBundle.
type Handler struct {
	config   *Config
	registry *registry.Registry
	executor PlanExecutor
	logger   logger.Logger
}

func NewHandler(config *Config, reg *registry.Registry, executor PlanExecutor, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		registry: reg,
		executor: executor,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrNilInput)
	}
	bundle, report := h.Assemble(ctx, input.Plans)
	return &Output{Bundle: bundle, Report: report}, nil
}

type planResult struct {
	rows    []models.Row
	err     error
	skipped bool
}

// Assemble runs plans concurrently. Plans with DependsOn run in a second wave
// bound to their parent's primary keys; they are skipped when the parent
// returned nothing and inherit its error when it failed. Results are merged
// in plan order, so the bundle does not depend on which executor answered
// first. A failed plan contributes a SoftError and no rows.
func (h *Handler) Assemble(ctx context.Context, plans []models.QueryPlan) (*models.ContextBundle, Report) {
	bundle := models.NewContextBundle()
	report := Report{}
	if len(plans) == 0 {
		return bundle, report
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	bound := append([]models.QueryPlan(nil), plans...)
	results := make([]planResult, len(plans))
	parents := map[string]int{}
	var independent, dependent []int
	for i, plan := range plans {
		if plan.DependsOn == "" {
			independent = append(independent, i)
			parents[plan.Key] = i
		} else {
			dependent = append(dependent, i)
		}
	}

	h.run(ctx, bound, independent, results)

	var ready []int
	for _, i := range dependent {
		p, ok := parents[plans[i].DependsOn]
		switch {
		case !ok:
			results[i].err = fmt.Errorf("%w: %s", ErrUnknownParent, plans[i].DependsOn)
		case results[p].err != nil:
			results[i].err = results[p].err
		default:
			ids, n := parentKeys(results[p].rows, h.primaryKey(plans[p].Table))
			if n == 0 {
				results[i].skipped = true
				continue
			}
			bound[i] = plans[i].BindParent(ids)
			ready = append(ready, i)
		}
	}

	h.run(ctx, bound, ready, results)

	seen := map[string]map[string]struct{}{}
	nonEmpty := map[string]struct{}{}

	for i, plan := range bound {
		res := results[i]
		if res.skipped {
			report.Skipped++
			continue
		}
		report.Executed++
		if desc := h.describe(plan); desc != "" {
			bundle.GeneratedQueries = append(bundle.GeneratedQueries, desc)
		}

		if res.err != nil {
			report.Failed++
			bundle.SoftErrors = append(bundle.SoftErrors, softError(plan.Key, res.err))
			h.logger.Warn("plan failed, bucket left empty", map[string]interface{}{
				"planKey": plan.Key,
				"error":   res.err.Error(),
			})
			continue
		}
		if len(res.rows) == 0 {
			continue
		}
		nonEmpty[plan.Key] = struct{}{}

		pk := h.primaryKey(plan.Table)
		if seen[plan.Table] == nil {
			seen[plan.Table] = map[string]struct{}{}
		}
		for _, row := range res.rows {
			if key := row.Key(pk); key != "" {
				if _, dup := seen[plan.Table][key]; dup {
					continue
				}
				seen[plan.Table][key] = struct{}{}
			}
			addRow(bundle, plan.Table, row)
		}
	}

	for key := range nonEmpty {
		bundle.NonEmptyKeys = append(bundle.NonEmptyKeys, key)
	}
	sort.Strings(bundle.NonEmptyKeys)

	h.logger.Info("context assembled", map[string]interface{}{
		"plans":        report.Executed,
		"failed":       report.Failed,
		"skipped":      report.Skipped,
		"nonEmptyKeys": bundle.NonEmptyKeys,
	})
	return bundle, report
}

func (h *Handler) run(ctx context.Context, plans []models.QueryPlan, idx []int, results []planResult) {
	var wg sync.WaitGroup
	for _, i := range idx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows, err := h.executor.ExecutePlan(ctx, plans[i])
			results[i] = planResult{rows: rows, err: err}
		}(i)
	}
	wg.Wait()
}

func (h *Handler) primaryKey(table string) string {
	if t, ok := h.registry.Table(table); ok {
		return t.PrimaryKey
	}
	return "id"
}

// parentKeys collects distinct primary keys in row order. Integer keys bind
// as []int64, anything else as []string.
func parentKeys(rows []models.Row, pk string) (interface{}, int) {
	ints := make([]int64, 0, len(rows))
	strs := make([]string, 0, len(rows))
	seen := map[string]struct{}{}
	numeric := true
	for _, row := range rows {
		key := row.Key(pk)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		strs = append(strs, key)
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			numeric = false
			continue
		}
		ints = append(ints, n)
	}
	if numeric {
		return ints, len(ints)
	}
	return strs, len(strs)
}

func (h *Handler) describe(plan models.QueryPlan) string {
	if d, ok := h.executor.(PlanDescriber); ok {
		return d.DescribePlan(plan)
	}
	return describeSQL(plan)
}

func addRow(bundle *models.ContextBundle, table string, row models.Row) {
	switch table {
	case "trips":
		bundle.Trips = append(bundle.Trips, models.TripFromRow(row))
	case "promos":
		bundle.Promos = append(bundle.Promos, models.PromoFromRow(row))
	case "bookings":
		bundle.Bookings = append(bundle.Bookings, models.BookingFromRow(row))
	default:
		bundle.Collections[table] = append(bundle.Collections[table], row)
	}
}

func softError(planKey string, err error) models.SoftError {
	code := string(apperrors.ErrCodeQueryExecutionFailed)
	msg := err.Error()
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		code = string(stdErr.Code)
		msg = stdErr.Message
	}
	return models.SoftError{PlanKey: planKey, Code: code, Message: msg}
}
