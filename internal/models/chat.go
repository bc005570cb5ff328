package models

// ResponseTier is decided before any generation call.
type ResponseTier string

const (
	TierDatabaseFirst    ResponseTier = "database_first"
	TierThematicFallback ResponseTier = "thematic_fallback"
	TierGeneralFallback  ResponseTier = "general_fallback"
	TierOffTopicRefused  ResponseTier = "off_topic_refused"
	TierForbiddenRefused ResponseTier = "forbidden_refused"
)

// IsRefusal reports whether the tier answers with a fixed message and no data.
func (t ResponseTier) IsRefusal() bool {
	return t == TierOffTopicRefused || t == TierForbiddenRefused
}

type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse never omits a field; empty collections encode as [] or {}.
type ChatResponse struct {
	Reply              string           `json:"reply"`
	Tier               ResponseTier     `json:"tier"`
	UsedContextKeys    []string         `json:"used_context_keys"`
	SuggestedActions   []string         `json:"suggested_actions"`
	RelatedTrips       []TripRow        `json:"related_trips"`
	UserBookings       []BookingRow     `json:"user_bookings"`
	RelatedPromos      []PromoRow       `json:"related_promos"`
	GeneratedQueries   []string         `json:"generated_queries"`
	Summary            string           `json:"summary"`
	RelatedCollections map[string][]Row `json:"related_collections"`
}

func NewChatResponse() ChatResponse {
	return ChatResponse{
		UsedContextKeys:    []string{},
		SuggestedActions:   []string{},
		RelatedTrips:       []TripRow{},
		UserBookings:       []BookingRow{},
		RelatedPromos:      []PromoRow{},
		GeneratedQueries:   []string{},
		RelatedCollections: map[string][]Row{},
	}
}
