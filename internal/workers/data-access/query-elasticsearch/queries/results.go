package queries

import (
	"encoding/json"
	"fmt"
	"io"

	"travelgo-chat/internal/models"
)

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// DecodeRows reads a search response body into rows, filling primaryKey
// from the document _id when the source omits it.
func DecodeRows(body io.Reader, primaryKey string) ([]models.Row, int64, error) {
	var r searchResponse
	if err := json.NewDecoder(body).Decode(&r); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	rows := make([]models.Row, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		row := models.Row(hit.Source)
		if row == nil {
			row = models.Row{}
		}
		if _, ok := row[primaryKey]; !ok && primaryKey != "" {
			row[primaryKey] = hit.ID
		}
		rows = append(rows, row)
	}
	return rows, r.Took, nil
}
