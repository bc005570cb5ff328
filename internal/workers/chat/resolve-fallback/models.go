package resolvefallback

import "travelgo-chat/internal/models"

const (
	ReplyForbidden     = "Akses ditolak. Jangan meminta data sensitif seperti password atau token."
	ReplyLoginRequired = "Silakan login untuk mengakses informasi pribadi seperti booking Anda."
	ReplyOffTopic      = "Maaf, topik di luar tema travel. Ajukan pertanyaan seputar promo, trip, itinerary, keamanan perjalanan, dsb."
)

const (
	ReasonSensitive     = "sensitive_request"
	ReasonLoginRequired = "login_required"
	ReasonOffTopic      = "off_topic"
	ReasonGrounded      = "context_available"
	ReasonNoRowsOnTopic = "no_rows_on_topic"
	ReasonGeneral       = "general_travel"
)

type Input struct {
	Intent       models.Intent         `json:"intent"`
	Caller       models.CallerIdentity `json:"caller"`
	RequiresAuth bool                  `json:"requiresAuth"`
	NonEmptyKeys []string              `json:"nonEmptyKeys"`
}

// Decision is made before any generation call. When Generate is false
// FixedReply is the whole answer.
type Decision struct {
	Tier         models.ResponseTier `json:"tier"`
	Reason       string              `json:"reason"`
	Generate     bool                `json:"generate"`
	FixedReply   string              `json:"fixedReply,omitempty"`
	Instructions string              `json:"instructions,omitempty"`
}
