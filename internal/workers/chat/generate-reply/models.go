package generatereply

import "travelgo-chat/internal/models"

// Request is everything the text generator may see. Bundle is nil or empty
// for the fallback tiers.
type Request struct {
	Message      string                `json:"message"`
	Tier         models.ResponseTier   `json:"tier"`
	Instructions string                `json:"instructions"`
	Bundle       *models.ContextBundle `json:"bundle,omitempty"`
}

type Input = Request

type Output struct {
	Reply string `json:"reply"`
}

// promptContext is the subset of a bundle that is shown to the model.
// Provenance and soft errors stay out of the prompt.
type promptContext struct {
	Trips       []models.TripRow        `json:"trips,omitempty"`
	Promos      []models.PromoRow       `json:"promos,omitempty"`
	Bookings    []models.BookingRow     `json:"bookings,omitempty"`
	Collections map[string][]models.Row `json:"collections,omitempty"`
}
