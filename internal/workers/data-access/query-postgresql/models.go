package querypostgresql

import "travelgo-chat/internal/models"

type Input struct {
	Plan models.QueryPlan `json:"plan"`
}

type Output struct {
	Rows               []models.Row `json:"rows"`
	RowCount           int          `json:"rowCount"`
	SQL                string       `json:"sql"`
	QueryExecutionTime int64        `json:"queryExecutionTime"` // milliseconds
}
