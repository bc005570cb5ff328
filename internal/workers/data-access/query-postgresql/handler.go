package querypostgresql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/metrics"
	"travelgo-chat/internal/models"
	"travelgo-chat/internal/workers/data-access/query-postgresql/queries"
)

const (
	TaskType = "query-postgresql"
)

var (
	ErrDatabaseUnavailable  = errors.New("DATABASE_UNAVAILABLE")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
)

// Handler executes rendered plans against Postgres.
type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// ExecutePlan runs plan and returns its rows. Errors are *StandardError with
// one of DATABASE_UNAVAILABLE, QUERY_TIMEOUT or QUERY_EXECUTION_FAILED.
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
		return nil, fmt.Errorf("input cannot be nil")
	}
	plan := input.Plan

	stmt, err := queries.Render(plan)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(plan.Key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	rows, err := h.query(ctx, stmt)
	elapsed := time.Since(start)
	metrics.PlanDuration.WithLabelValues(plan.Table).Observe(elapsed.Seconds())

	if err != nil {
		stdErr := h.classify(ctx, plan.Key, err)
		metrics.PlanExecutions.WithLabelValues(plan.Table, string(stdErr.Code)).Inc()
		h.logger.Warn("plan execution failed", map[string]interface{}{
			"planKey":   plan.Key,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return nil, stdErr
	}

	metrics.PlanExecutions.WithLabelValues(plan.Table, "ok").Inc()
	h.logger.Debug("plan executed", map[string]interface{}{
		"planKey":  plan.Key,
		"rowCount": len(rows),
		"duration": elapsed.Milliseconds(),
	})

	return &Output{
		Rows:               rows,
		RowCount:           len(rows),
		SQL:                stmt.SQL,
		QueryExecutionTime: elapsed.Milliseconds(),
	}, nil
}

// query runs stmt inside a read-only transaction.
func (h *Handler) query(ctx context.Context, stmt queries.Statement) ([]models.Row, error) {
	tx, err := h.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}

	result, err := scanRows(ctx, tx, stmt)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return result, tx.Commit()
}

func scanRows(ctx context.Context, tx *sql.Tx, stmt queries.Statement) ([]models.Row, error) {
	rows, err := tx.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []models.Row{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (h *Handler) classify(ctx context.Context, planKey string, err error) *apperrors.StandardError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(planKey)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			if pqErr.Code.Name() == "query_canceled" {
				return apperrors.NewQueryTimeoutError(planKey)
			}
			return apperrors.NewDatabaseUnavailableError(fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err))
		}
		return apperrors.NewQueryExecutionFailedError(planKey, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err))
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return apperrors.NewDatabaseUnavailableError(fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err))
	}

	return apperrors.NewQueryExecutionFailedError(planKey, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err))
}
