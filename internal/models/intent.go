package models

// Domain is the topic a message was classified into.
type Domain string

const (
	DomainTripSearch    Domain = "trip_search"
	DomainPromoList     Domain = "promo_list"
	DomainBookingLookup Domain = "booking_lookup"
	DomainBookingMine   Domain = "booking_mine"
	DomainGeneralTravel Domain = "general_travel"
	DomainSensitive     Domain = "sensitive"
	DomainOffTopic      Domain = "off_topic"
)

// Sensitivity is the authorization tier an intent requires.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "public"
	SensitivityPrivate   Sensitivity = "private"
	SensitivityForbidden Sensitivity = "forbidden"
)

// DateScope narrows time-bounded tables such as promos.
type DateScope string

const (
	DateScopeNone      DateScope = "none"
	DateScopeToday     DateScope = "today"
	DateScopeThisMonth DateScope = "this_month"
	DateScopeThisYear  DateScope = "this_year"
)

// Slots carries the hints extracted alongside the domain.
type Slots struct {
	DateScope       DateScope `json:"dateScope"`
	BookingCode     string    `json:"bookingCode,omitempty"`
	Keywords        []string  `json:"keywords"`
	WantsSchedule   bool      `json:"wantsSchedule"`
	WantsFacilities bool      `json:"wantsFacilities"`
	WantsItinerary  bool      `json:"wantsItinerary"`
	WantsReviews    bool      `json:"wantsReviews"`
	TopicScore      int       `json:"topicScore"`
	MatchedTerm     string    `json:"matchedTerm,omitempty"`
}

// Intent is immutable once the classifier returns it.
type Intent struct {
	Domain      Domain      `json:"domain"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Slots       Slots       `json:"slots"`
}

// IsDomainSpecific reports whether the intent targets one of the catalog tables.
func (i Intent) IsDomainSpecific() bool {
	switch i.Domain {
	case DomainTripSearch, DomainPromoList, DomainBookingLookup, DomainBookingMine:
		return true
	}
	return false
}

// CallerIdentity is supplied by the auth collaborator and never derived from message text.
type CallerIdentity struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

func Anonymous() CallerIdentity {
	return CallerIdentity{}
}
