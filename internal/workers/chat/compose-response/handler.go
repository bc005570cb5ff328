package composeresponse

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
)

const TaskType = "compose-response"

var (
	ErrResponseValidationFailed = errors.New("RESPONSE_VALIDATION_FAILED")
)

//go:embed response.schema.json
var responseSchema string

// Handler merges the reply text with the structured bundle.
type Handler struct {
	config *Config
	schema *gojsonschema.Schema
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
	if err != nil {
		return nil, fmt.Errorf("load response schema: %w", err)
	}
	return &Handler{
		config: config,
		schema: schema,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}
	resp := h.Compose(*input)
	if h.config.ValidateOutput {
		if err := h.Validate(resp); err != nil {
			return nil, err
		}
	}
	return &Output{Response: resp}, nil
}

// Compose builds the outbound payload. Refusal tiers carry the reply and
// summary only.
func (h *Handler) Compose(in Input) models.ChatResponse {
	resp := models.NewChatResponse()
	resp.Tier = in.Tier
	resp.Reply = in.Reply

	if in.Tier.IsRefusal() || in.Bundle == nil {
		resp.Summary = summarize(in.Message, resp)
		return resp
	}

	b := in.Bundle
	resp.UsedContextKeys = append(resp.UsedContextKeys, b.NonEmptyKeys...)
	resp.RelatedTrips = append(resp.RelatedTrips, b.Trips...)
	resp.RelatedPromos = append(resp.RelatedPromos, b.Promos...)
	resp.UserBookings = append(resp.UserBookings, b.Bookings...)
	resp.GeneratedQueries = append(resp.GeneratedQueries, b.GeneratedQueries...)
	for table, rows := range b.Collections {
		if len(rows) > 0 {
			resp.RelatedCollections[table] = rows
		}
	}

	resp.SuggestedActions = suggestedActions(resp)
	resp.Summary = summarize(in.Message, resp)

	h.logger.Debug("response composed", map[string]interface{}{
		"tier":             string(resp.Tier),
		"usedContextKeys":  resp.UsedContextKeys,
		"suggestedActions": len(resp.SuggestedActions),
	})
	return resp
}

// Validate checks resp against the published response schema.
func (h *Handler) Validate(resp models.ChatResponse) error {
	result, err := h.schema.Validate(gojsonschema.NewGoLoader(resp))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResponseValidationFailed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrResponseValidationFailed, strings.Join(msgs, "; "))
	}
	return nil
}

func suggestedActions(resp models.ChatResponse) []string {
	actions := []string{}
	for _, p := range resp.RelatedPromos {
		if p.PromoCode != "" {
			actions = append(actions, "Gunakan kode "+p.PromoCode)
		}
	}
	if len(resp.RelatedTrips) > 0 {
		actions = append(actions, "Lihat detail trip yang direkomendasikan")
	}
	if len(resp.UserBookings) > 0 {
		actions = append(actions, "Lihat detail booking terakhir Anda")
	}
	return actions
}

func summarize(message string, resp models.ChatResponse) string {
	var parts []string
	if msg := strings.TrimSpace(message); msg != "" {
		parts = append(parts, "Permintaan: "+msg)
	}
	if n := len(resp.RelatedPromos); n > 0 {
		parts = append(parts, fmt.Sprintf("Ditemukan %d promo aktif yang relevan.", n))
	}
	if n := len(resp.RelatedTrips); n > 0 {
		parts = append(parts, fmt.Sprintf("Ada %d trip yang sesuai konteks.", n))
	}
	if n := len(resp.UserBookings); n > 0 {
		parts = append(parts, fmt.Sprintf("Kami juga menemukan %d booking terkait akun Anda.", n))
	}
	if resp.Reply != "" {
		parts = append(parts, "Jawaban: "+resp.Reply)
	}
	return strings.Join(parts, " ")
}
