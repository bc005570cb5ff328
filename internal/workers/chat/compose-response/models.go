package composeresponse

import "travelgo-chat/internal/models"

type Input struct {
	Message string                `json:"message"`
	Tier    models.ResponseTier   `json:"tier"`
	Reply   string                `json:"reply"`
	Bundle  *models.ContextBundle `json:"bundle,omitempty"`
}

type Output struct {
	Response models.ChatResponse `json:"response"`
}
