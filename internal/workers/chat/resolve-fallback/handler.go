package resolvefallback

import (
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
)

const (
	TaskType = "resolve-fallback"
)

// Handler decides the response tier. It performs no I/O.
type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Resolve evaluates the ladder top-down; the first matching rule wins.
func (h *Handler) Resolve(in Input) Decision {
	d := h.resolve(in)
	h.logger.Debug("tier resolved", map[string]interface{}{
		"domain":   string(in.Intent.Domain),
		"tier":     string(d.Tier),
		"reason":   d.Reason,
		"generate": d.Generate,
	})
	return d
}

func (h *Handler) resolve(in Input) Decision {
	intent := in.Intent

	if intent.Sensitivity == models.SensitivityForbidden || intent.Domain == models.DomainSensitive {
		return refusal(models.TierForbiddenRefused, ReasonSensitive, ReplyForbidden)
	}

	if intent.Sensitivity == models.SensitivityPrivate && (in.RequiresAuth || !in.Caller.Authenticated) {
		return refusal(models.TierForbiddenRefused, ReasonLoginRequired, ReplyLoginRequired)
	}

	if intent.Domain == models.DomainOffTopic {
		return refusal(models.TierOffTopicRefused, ReasonOffTopic, ReplyOffTopic)
	}

	if len(in.NonEmptyKeys) > 0 {
		return Decision{
			Tier:         models.TierDatabaseFirst,
			Reason:       ReasonGrounded,
			Generate:     true,
			Instructions: groundedInstructions,
		}
	}

	if intent.IsDomainSpecific() && intent.Slots.TopicScore >= h.config.ThematicThreshold {
		return Decision{
			Tier:         models.TierThematicFallback,
			Reason:       ReasonNoRowsOnTopic,
			Generate:     true,
			Instructions: thematicInstructions,
		}
	}

	return Decision{
		Tier:         models.TierGeneralFallback,
		Reason:       ReasonGeneral,
		Generate:     true,
		Instructions: generalInstructions,
	}
}

func refusal(tier models.ResponseTier, reason, reply string) Decision {
	return Decision{Tier: tier, Reason: reason, FixedReply: reply}
}
