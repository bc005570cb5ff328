package classifyintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"travelgo-chat/internal/common/camunda"
	"travelgo-chat/internal/models"
)

const (
	TaskType = "classify-intent"
)

var (
	ErrEmptyMessage = errors.New("INVALID_REQUEST")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Handler turns a raw message into an Intent. It performs no I/O and the
// same text always yields the same Intent.
type Handler struct {
	config *Config
	logger Logger
}

func NewHandler(config *Config, log Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, fmt.Errorf("parse input: %w", err))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey": job.Key,
		"error":  err.Error(),
	})
	if sendErr := camunda.FailJob(ctx, client, job, err.Error()); sendErr != nil {
		h.logger.Error("failed to fail job", map[string]interface{}{"error": sendErr.Error()})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrEmptyMessage)
	}
	return &Output{Intent: h.Classify(input.Message)}, nil
}

// Classify applies the rules in fixed order: forbidden terms, private booking
// references, catalog domains, general travel, and finally off-topic.
func (h *Handler) Classify(text string) models.Intent {
	m := newMessage(text)
	slots := models.Slots{
		DateScope:  m.dateScope(),
		Keywords:   m.keywords(h.config.MaxKeywords),
		TopicScore: m.countTerms(privateTerms, promoTerms, tripTerms, facetTerms, articleTerms, travelTerms),
	}

	intent := func(domain models.Domain, sensitivity models.Sensitivity, matched string) models.Intent {
		s := slots
		s.MatchedTerm = matched
		return models.Intent{Domain: domain, Sensitivity: sensitivity, Slots: s}
	}

	if term, ok := m.firstMention(forbiddenTerms); ok {
		h.logger.Warn("sensitive request refused", map[string]interface{}{"term": term})
		return models.Intent{
			Domain:      models.DomainSensitive,
			Sensitivity: models.SensitivityForbidden,
			Slots:       models.Slots{DateScope: models.DateScopeNone, Keywords: []string{}, MatchedTerm: term},
		}
	}

	if code := bookingCodePattern.FindString(strings.ToUpper(text)); code != "" {
		it := intent(models.DomainBookingLookup, models.SensitivityPrivate, code)
		it.Slots.BookingCode = code
		if it.Slots.TopicScore == 0 {
			it.Slots.TopicScore = 1
		}
		return it
	}
	if term, ok := m.firstTerm(privateTerms); ok {
		return intent(models.DomainBookingMine, models.SensitivityPrivate, term)
	}

	if term, ok := m.firstTerm(promoTerms); ok {
		return intent(models.DomainPromoList, models.SensitivityPublic, term)
	}
	term, ok := m.firstTerm(tripTerms)
	if !ok {
		term, ok = m.firstTerm(facetTerms)
	}
	if ok {
		it := intent(models.DomainTripSearch, models.SensitivityPublic, term)
		_, it.Slots.WantsSchedule = m.firstTerm(scheduleTerms)
		_, it.Slots.WantsFacilities = m.firstTerm(facilityTerms)
		_, it.Slots.WantsItinerary = m.firstTerm(itineraryTerms)
		_, it.Slots.WantsReviews = m.firstTerm(reviewTerms)
		return it
	}

	if slots.TopicScore >= h.config.OnTopicThreshold && slots.TopicScore > 0 {
		if term, ok = m.firstTerm(articleTerms); !ok {
			term, _ = m.firstTerm(travelTerms)
		}
		return intent(models.DomainGeneralTravel, models.SensitivityPublic, term)
	}

	return intent(models.DomainOffTopic, models.SensitivityPublic, "")
}

// message is a lower-cased, word-tokenized view of the user text.
type message struct {
	tokens []string
	padded string
}

func newMessage(text string) message {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return message{
		tokens: tokens,
		padded: " " + strings.Join(tokens, " ") + " ",
	}
}

func (m message) has(term string) bool {
	return strings.Contains(m.padded, " "+term+" ")
}

func (m message) firstTerm(terms []string) (string, bool) {
	for _, term := range terms {
		if m.has(term) {
			return term, true
		}
	}
	return "", false
}

// firstMention is firstTerm for forbidden terms: the last word of a term may
// carry a suffix or trailing digits, so "passwordnya" and "token123" match.
func (m message) firstMention(terms []string) (string, bool) {
	for _, term := range terms {
		if m.mentions(term) {
			return term, true
		}
	}
	return "", false
}

func (m message) mentions(term string) bool {
	words := strings.Fields(term)
	last := len(words) - 1
	for i := 0; i+last < len(m.tokens); i++ {
		matched := true
		for j := 0; j < last; j++ {
			if m.tokens[i+j] != words[j] {
				matched = false
				break
			}
		}
		if matched && mentionsWord(m.tokens[i+last], words[last]) {
			return true
		}
	}
	return false
}

func mentionsWord(token, word string) bool {
	token = strings.TrimRightFunc(token, unicode.IsDigit)
	if !strings.HasPrefix(token, word) {
		return false
	}
	if token == word || utf8.RuneCountInString(word) >= 5 {
		return true
	}
	_, ok := forbiddenSuffixes[token[len(word):]]
	return ok
}

func (m message) countTerms(lists ...[]string) int {
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, term := range list {
			if m.has(term) {
				seen[term] = struct{}{}
			}
		}
	}
	return len(seen)
}

func (m message) dateScope() models.DateScope {
	for _, ds := range dateScopeTerms {
		if m.has(ds.term) {
			return models.DateScope(ds.scope)
		}
	}
	return models.DateScopeNone
}

func (m message) keywords(max int) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, tok := range m.tokens {
		if len(out) >= max {
			break
		}
		if utf8.RuneCountInString(tok) < 3 || isNumeric(tok) {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, vocab := vocabularyWords[tok]; vocab {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
