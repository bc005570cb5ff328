package buildqueryplan

import (
	"time"

	"travelgo-chat/internal/models"
)

// Clock supplies "now" for date-scoped predicates.
type Clock func() time.Time

// Result is the builder output. RequiresAuth is set when a private intent
// arrived without an authenticated caller; Plans is then empty.
type Result struct {
	Plans        []models.QueryPlan `json:"plans"`
	RequiresAuth bool               `json:"requiresAuth"`
}

// Context keys, also used as plan keys.
const (
	KeyPromosActive      = "promos.active"
	KeyTripsPublished    = "trips.published"
	KeyTripsSearch       = "trips.search"
	KeyPromosSearch      = "promos.search"
	KeySchedulesUpcoming = "trip_schedules.upcoming"
	KeyFacilitiesByTrip  = "trip_facilities.by_trip"
	KeyItinerariesByTrip = "trip_itineraries.by_trip"
	KeyReviewsByTrip     = "reviews.by_trip"
	KeyBookingsMine      = "bookings.mine"
	KeyBookingsByCode    = "bookings.by_code"
	KeyBlogsMatch        = "blogs.match"
)

var (
	promoColumns     = []string{"id", "name", "promo_code", "discount_type", "discount_value", "start_date", "end_date", "is_active"}
	tripColumns      = []string{"id", "name", "slug", "location", "duration", "price", "status", "is_active"}
	scheduleColumns  = []string{"id", "trip_id", "departure_date", "return_date", "quota", "status"}
	facilityColumns  = []string{"id", "trip_id", "name", "type"}
	itineraryColumns = []string{"id", "trip_id", "day", "title", "description"}
	reviewColumns    = []string{"id", "trip_id", "reviewer_name", "rating", "comment"}
	bookingColumns   = []string{"id", "booking_code", "trip_id", "departure_date", "participants", "total_amount", "status", "payment_status", "created_at"}
	blogColumns      = []string{"id", "title", "slug", "excerpt", "published_at"}
)
