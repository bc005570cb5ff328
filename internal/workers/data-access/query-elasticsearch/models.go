package queryelasticsearch

import "travelgo-chat/internal/models"

type Input struct {
	Plan models.QueryPlan `json:"plan"`
}

type Output struct {
	Rows     []models.Row `json:"rows"`
	RowCount int          `json:"rowCount"`
	Index    string       `json:"index"`
	Took     int64        `json:"took"` // milliseconds
}
