package queryelasticsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/metrics"
	"travelgo-chat/internal/models"
	"travelgo-chat/internal/workers/data-access/query-elasticsearch/queries"
)

const (
	TaskType = "query-elasticsearch"
)

var (
	ErrElasticsearchConnectionFailed = errors.New("ELASTICSEARCH_CONNECTION_FAILED")
	ErrSearchQueryFailed             = errors.New("SEARCH_QUERY_FAILED")
)

// Handler executes plans for tables that are served from a search index.
type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// ExecutePlan runs plan against the index for its table.
func (h *Handler) ExecutePlan(ctx context.Context, plan models.QueryPlan) ([]models.Row, error) {
	out, err := h.Execute(ctx, &Input{Plan: plan})
	if err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}
	plan := input.Plan
	index := h.config.IndexPrefix + plan.Table

	req, err := queries.BuildRequest(index, plan)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(plan.Key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	rows, took, err := h.search(ctx, req, plan)
	elapsed := time.Since(start)
	metrics.PlanDuration.WithLabelValues(plan.Table).Observe(elapsed.Seconds())

	if err != nil {
		stdErr := h.classify(ctx, plan.Key, err)
		metrics.PlanExecutions.WithLabelValues(plan.Table, string(stdErr.Code)).Inc()
		h.logger.Warn("search failed", map[string]interface{}{
			"planKey":   plan.Key,
			"index":     index,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return nil, stdErr
	}

	metrics.PlanExecutions.WithLabelValues(plan.Table, "ok").Inc()
	h.logger.Debug("search executed", map[string]interface{}{
		"planKey":  plan.Key,
		"index":    index,
		"rowCount": len(rows),
		"took":     took,
	})

	return &Output{
		Rows:     rows,
		RowCount: len(rows),
		Index:    index,
		Took:     took,
	}, nil
}

func (h *Handler) search(ctx context.Context, req *esapi.SearchRequest, plan models.QueryPlan) ([]models.Row, int64, error) {
	res, err := req.Do(ctx, h.client)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrElasticsearchConnectionFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, 0, &statusError{status: res.StatusCode, body: string(body)}
	}

	return queries.DecodeRows(res.Body, h.config.PrimaryKeys[plan.Table])
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("elasticsearch returned status %d: %s", e.status, e.body)
}

func (h *Handler) classify(ctx context.Context, planKey string, err error) *apperrors.StandardError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewSearchTimeoutError(planKey)
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == 408 || se.status == 504:
			return apperrors.NewSearchTimeoutError(planKey)
		case se.status >= 500:
			return apperrors.NewDatabaseUnavailableError(fmt.Errorf("%w: %v", ErrElasticsearchConnectionFailed, err))
		}
		return apperrors.NewSearchQueryFailedError(planKey, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err))
	}

	var netErr net.Error
	if errors.Is(err, ErrElasticsearchConnectionFailed) || errors.As(err, &netErr) {
		return apperrors.NewDatabaseUnavailableError(err)
	}

	return apperrors.NewSearchQueryFailedError(planKey, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err))
}
