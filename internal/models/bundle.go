package models

// SoftError records a plan that failed without failing the request.
type SoftError struct {
	PlanKey string `json:"plan_key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ContextBundle is the verified data a reply may be grounded on.
type ContextBundle struct {
	Trips            []TripRow        `json:"trips"`
	Promos           []PromoRow       `json:"promos"`
	Bookings         []BookingRow     `json:"bookings"`
	Collections      map[string][]Row `json:"collections"`
	NonEmptyKeys     []string         `json:"non_empty_keys"`
	GeneratedQueries []string         `json:"generated_queries"`
	SoftErrors       []SoftError      `json:"soft_errors"`
}

func NewContextBundle() *ContextBundle {
	return &ContextBundle{
		Trips:            []TripRow{},
		Promos:           []PromoRow{},
		Bookings:         []BookingRow{},
		Collections:      map[string][]Row{},
		NonEmptyKeys:     []string{},
		GeneratedQueries: []string{},
		SoftErrors:       []SoftError{},
	}
}

// IsEmpty reports whether no plan contributed a row.
func (b *ContextBundle) IsEmpty() bool {
	return b == nil || len(b.NonEmptyKeys) == 0
}
