package buildqueryplan

import (
	"strings"
	"time"

	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
	"travelgo-chat/pkg/registry"
)

const (
	TaskType = "build-query-plan"
)

// Handler maps an Intent and caller onto the closed set of plan shapes.
// Every plan it returns has passed registry validation.
type Handler struct {
	config   *Config
	registry *registry.Registry
	clock    Clock
	logger   logger.Logger
}

func NewHandler(config *Config, reg *registry.Registry, clock Clock, log logger.Logger) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		config:   config,
		registry: reg,
		clock:    clock,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Build returns the plans for intent. A returned error is always a
// SCHEMA_VIOLATION and means the builder itself is wrong.
func (h *Handler) Build(intent models.Intent, caller models.CallerIdentity) (*Result, error) {
	result := &Result{Plans: []models.QueryPlan{}}

	switch intent.Domain {
	case models.DomainSensitive, models.DomainOffTopic:
		return result, nil

	case models.DomainBookingMine, models.DomainBookingLookup:
		email := strings.TrimSpace(caller.Email)
		if !caller.Authenticated || email == "" {
			result.RequiresAuth = true
			return result, nil
		}
		if intent.Domain == models.DomainBookingLookup && intent.Slots.BookingCode != "" {
			result.Plans = append(result.Plans, h.bookingByCodePlan(email, intent.Slots.BookingCode))
		} else {
			result.Plans = append(result.Plans, h.bookingsMinePlan(email))
		}

	case models.DomainPromoList:
		if len(intent.Slots.Keywords) > 0 {
			result.Plans = append(result.Plans, h.promoSearchPlan(intent.Slots.DateScope, intent.Slots.Keywords))
		}
		result.Plans = append(result.Plans, h.promoPlan(intent.Slots.DateScope))

	case models.DomainTripSearch:
		trips := h.tripPlan(intent.Slots.Keywords)
		result.Plans = append(result.Plans, trips)
		// Details are read only for the trips above, which are published and active.
		if intent.Slots.WantsSchedule {
			result.Plans = append(result.Plans, h.schedulePlan(trips.Key))
		}
		if intent.Slots.WantsFacilities {
			result.Plans = append(result.Plans, h.facilityPlan(trips.Key))
		}
		if intent.Slots.WantsItinerary {
			result.Plans = append(result.Plans, h.itineraryPlan(trips.Key))
		}
		if intent.Slots.WantsReviews {
			result.Plans = append(result.Plans, h.reviewPlan(trips.Key))
		}

	case models.DomainGeneralTravel:
		if len(intent.Slots.Keywords) > 0 {
			result.Plans = append(result.Plans, h.articlePlan(intent.Slots.Keywords))
		}
	}

	for _, plan := range result.Plans {
		if err := h.registry.ValidatePlan(plan); err != nil {
			h.logger.Error("builder produced invalid plan", map[string]interface{}{
				"planKey": plan.Key,
				"error":   err.Error(),
			})
			return nil, err
		}
	}

	h.logger.Info("query plans built", map[string]interface{}{
		"domain":       string(intent.Domain),
		"planCount":    len(result.Plans),
		"requiresAuth": result.RequiresAuth,
	})
	return result, nil
}

func (h *Handler) promoPlan(scope models.DateScope) models.QueryPlan {
	plan := models.QueryPlan{
		Key:     KeyPromosActive,
		Table:   "promos",
		Columns: promoColumns,
		Predicates: []models.Predicate{
			{Column: "is_active", Operator: models.OpEq, Param: models.Literal(true)},
		},
		OrderBy: []models.OrderBy{
			{Column: "discount_value", Desc: true, NullsLast: true},
			{Column: "id", Desc: true},
		},
		Limit: h.config.PageSize,
	}

	now := h.clock()
	var from, to time.Time
	switch scope {
	case models.DateScopeToday:
		from, to = now, now
	case models.DateScopeThisMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 1, 0).Add(-time.Second)
	case models.DateScopeThisYear:
		from = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(1, 0, 0).Add(-time.Second)
	default:
		return plan
	}

	// The promo period must overlap [from, to].
	plan.Key = KeyPromosActive + "." + string(scope)
	plan.Predicates = append(plan.Predicates,
		models.Predicate{Column: "start_date", Operator: models.OpLte, Param: models.Clock(to)},
		models.Predicate{Column: "end_date", Operator: models.OpGte, Param: models.Clock(from)},
	)
	return plan
}

// promoSearchPlan narrows the active promos to those mentioning a keyword.
func (h *Handler) promoSearchPlan(scope models.DateScope, keywords []string) models.QueryPlan {
	plan := h.promoPlan(scope)
	plan.Key = KeyPromosSearch + strings.TrimPrefix(plan.Key, KeyPromosActive)
	plan.Keyword = keywordFilter([]string{"name", "description", "promo_code"}, keywords)
	plan.Limit = h.config.ArticlePageSize
	return plan
}

func (h *Handler) tripPlan(keywords []string) models.QueryPlan {
	plan := models.QueryPlan{
		Key:     KeyTripsPublished,
		Table:   "trips",
		Columns: tripColumns,
		Predicates: []models.Predicate{
			{Column: "is_active", Operator: models.OpEq, Param: models.Literal(true)},
			{Column: "status", Operator: models.OpEq, Param: models.Literal("published")},
		},
		OrderBy: []models.OrderBy{{Column: "id", Desc: true}},
		Limit:   h.config.PageSize,
	}
	if len(keywords) > 0 {
		plan.Key = KeyTripsSearch
		plan.Keyword = keywordFilter([]string{"name", "location", "duration"}, keywords)
	}
	return plan
}

func (h *Handler) schedulePlan(parent string) models.QueryPlan {
	now := h.clock()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return models.QueryPlan{
		Key:       KeySchedulesUpcoming,
		Table:     "trip_schedules",
		DependsOn: parent,
		Columns:   scheduleColumns,
		Predicates: []models.Predicate{
			{Column: "trip_id", Operator: models.OpIn, Param: models.FromPlan()},
			{Column: "departure_date", Operator: models.OpGte, Param: models.Clock(today)},
		},
		OrderBy: []models.OrderBy{{Column: "departure_date"}, {Column: "id"}},
		Limit:   h.config.SchedulePageSize,
	}
}

func (h *Handler) facilityPlan(parent string) models.QueryPlan {
	return models.QueryPlan{
		Key:       KeyFacilitiesByTrip,
		Table:     "trip_facilities",
		DependsOn: parent,
		Columns:   facilityColumns,
		Predicates: []models.Predicate{
			{Column: "trip_id", Operator: models.OpIn, Param: models.FromPlan()},
		},
		OrderBy: []models.OrderBy{{Column: "trip_id"}, {Column: "id"}},
		Limit:   h.config.DetailPageSize,
	}
}

func (h *Handler) itineraryPlan(parent string) models.QueryPlan {
	return models.QueryPlan{
		Key:       KeyItinerariesByTrip,
		Table:     "trip_itineraries",
		DependsOn: parent,
		Columns:   itineraryColumns,
		Predicates: []models.Predicate{
			{Column: "trip_id", Operator: models.OpIn, Param: models.FromPlan()},
		},
		OrderBy: []models.OrderBy{{Column: "trip_id"}, {Column: "day"}, {Column: "id"}},
		Limit:   h.config.DetailPageSize,
	}
}

// reviewPlan reads approved reviews only, best rated first.
func (h *Handler) reviewPlan(parent string) models.QueryPlan {
	return models.QueryPlan{
		Key:       KeyReviewsByTrip,
		Table:     "reviews",
		DependsOn: parent,
		Columns:   reviewColumns,
		Predicates: []models.Predicate{
			{Column: "trip_id", Operator: models.OpIn, Param: models.FromPlan()},
			{Column: "is_approved", Operator: models.OpEq, Param: models.Literal(true)},
		},
		OrderBy: []models.OrderBy{{Column: "rating", Desc: true, NullsLast: true}, {Column: "id", Desc: true}},
		Limit:   h.config.ReviewPageSize,
	}
}

func (h *Handler) bookingsMinePlan(email string) models.QueryPlan {
	return models.QueryPlan{
		Key:     KeyBookingsMine,
		Table:   "bookings",
		Columns: bookingColumns,
		Predicates: []models.Predicate{
			{Column: "customer_email", Operator: models.OpEq, Param: models.Identity(email)},
		},
		OrderBy: []models.OrderBy{{Column: "created_at", Desc: true}, {Column: "id", Desc: true}},
		Limit:   h.config.PageSize,
	}
}

// bookingByCodePlan keeps the owner predicate: a code alone never reads a booking.
func (h *Handler) bookingByCodePlan(email, code string) models.QueryPlan {
	return models.QueryPlan{
		Key:     KeyBookingsByCode,
		Table:   "bookings",
		Columns: bookingColumns,
		Predicates: []models.Predicate{
			{Column: "customer_email", Operator: models.OpEq, Param: models.Identity(email)},
			{Column: "booking_code", Operator: models.OpEq, Param: models.UserSlot(code)},
		},
		OrderBy: []models.OrderBy{{Column: "created_at", Desc: true}},
		Limit:   1,
	}
}

func (h *Handler) articlePlan(keywords []string) models.QueryPlan {
	return models.QueryPlan{
		Key:     KeyBlogsMatch,
		Table:   "blogs",
		Columns: blogColumns,
		Predicates: []models.Predicate{
			{Column: "status", Operator: models.OpEq, Param: models.Literal("published")},
		},
		Keyword: keywordFilter([]string{"title", "excerpt"}, keywords),
		OrderBy: []models.OrderBy{{Column: "published_at", Desc: true}, {Column: "id", Desc: true}},
		Limit:   h.config.ArticlePageSize,
	}
}

func keywordFilter(columns, keywords []string) *models.KeywordFilter {
	terms := make([]models.Param, 0, len(keywords))
	for _, kw := range keywords {
		terms = append(terms, models.UserSlot(kw))
	}
	return &models.KeywordFilter{Columns: columns, Terms: terms}
}
