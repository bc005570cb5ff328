package assemblecontext

import "travelgo-chat/internal/models"

type Input struct {
	Plans []models.QueryPlan `json:"plans"`
}

type Output struct {
	Bundle *models.ContextBundle `json:"bundle"`
	Report Report                `json:"report"`
}

// Report counts plan outcomes for one Assemble call. Skipped plans depended
// on a plan that returned no rows and are not counted as executed.
type Report struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// AllFailed reports whether there was at least one plan and none succeeded.
func (r Report) AllFailed() bool {
	return r.Executed > 0 && r.Failed == r.Executed
}
