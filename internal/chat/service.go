// Package chat wires the pipeline stages into one request path:
// classify, build plans, assemble context, pick a tier, generate and compose.
package chat

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/metrics"
	"travelgo-chat/internal/common/observability"
	"travelgo-chat/internal/models"
	assemblecontext "travelgo-chat/internal/workers/chat/assemble-context"
	buildqueryplan "travelgo-chat/internal/workers/chat/build-query-plan"
	classifyintent "travelgo-chat/internal/workers/chat/classify-intent"
	composeresponse "travelgo-chat/internal/workers/chat/compose-response"
	generatereply "travelgo-chat/internal/workers/chat/generate-reply"
	resolvefallback "travelgo-chat/internal/workers/chat/resolve-fallback"
)

// ApologyReply replaces the generated text when the generator fails. The
// tier is still reported as decided.
const ApologyReply = "Maaf, layanan asisten sedang tidak tersedia. Silakan coba lagi nanti."

// Stages are the pipeline steps in execution order.
type Stages struct {
	Classifier *classifyintent.Handler
	Builder    *buildqueryplan.Handler
	Assembler  *assemblecontext.Handler
	Resolver   *resolvefallback.Handler
	Generator  generatereply.Generator
	Composer   *composeresponse.Handler
}

type Service struct {
	stages Stages
	obs    *observability.Observability
	logger logger.Logger
}

func NewService(stages Stages, obs *observability.Observability, log logger.Logger) *Service {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Service{
		stages: stages,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "chat"}),
	}
}

// Handle answers one message for caller. Refusals are normal responses; an
// error is returned only for an invalid request, a plan that escaped the
// registry, or a data-bound request whose every plan hit an unavailable source.
func (s *Service) Handle(ctx context.Context, req models.ChatRequest, caller models.CallerIdentity) (models.ChatResponse, error) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "chat.handle")
	defer span.End()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return models.ChatResponse{}, s.fail(apperrors.NewInvalidRequestError("message is empty"))
	}

	_, classifySpan := s.obs.StartSpan(ctx, "chat.classify")
	intent := s.stages.Classifier.Classify(message)
	classifySpan.End()

	log := s.logger.With(map[string]interface{}{
		"domain":        string(intent.Domain),
		"authenticated": caller.Authenticated,
	})

	_, buildSpan := s.obs.StartSpan(ctx, "chat.build")
	built, err := s.stages.Builder.Build(intent, caller)
	buildSpan.End()
	if err != nil {
		log.Error("query plan rejected", map[string]interface{}{"error": err.Error()})
		return models.ChatResponse{}, s.fail(err)
	}

	bundle := models.NewContextBundle()
	if len(built.Plans) > 0 {
		assembleCtx, assembleSpan := s.obs.StartSpan(ctx, "chat.assemble")
		var report assemblecontext.Report
		bundle, report = s.stages.Assembler.Assemble(assembleCtx, built.Plans)
		assembleSpan.SetAttributes(
			attribute.Int("plans.executed", report.Executed),
			attribute.Int("plans.failed", report.Failed),
			attribute.Int("plans.skipped", report.Skipped),
		)
		assembleSpan.End()

		if dataUnavailable(intent, report, bundle.SoftErrors) {
			span.SetStatus(codes.Error, string(apperrors.ErrCodeDataUnavailable))
			log.Error("every query plan failed", map[string]interface{}{
				"failed":     report.Failed,
				"softErrors": bundle.SoftErrors,
			})
			return models.ChatResponse{}, s.fail(apperrors.NewDataUnavailableError(report.Failed))
		}
		if report.Failed > 0 {
			log.Warn("answering with partial data", map[string]interface{}{
				"executed": report.Executed,
				"failed":   report.Failed,
			})
		}
	}

	decision := s.stages.Resolver.Resolve(resolvefallback.Input{
		Intent:       intent,
		Caller:       caller,
		RequiresAuth: built.RequiresAuth,
		NonEmptyKeys: bundle.NonEmptyKeys,
	})
	if decision.Reason == resolvefallback.ReasonLoginRequired {
		refused := apperrors.NewAuthorizationRequiredError(string(intent.Domain))
		s.logger.Info("private request refused", map[string]interface{}{
			"code":    string(refused.Code),
			"details": refused.Details,
		})
	}

	reply := decision.FixedReply
	if decision.Generate {
		reply = s.generate(ctx, message, decision, bundle)
	}

	out, err := s.stages.Composer.Execute(ctx, &composeresponse.Input{
		Message: message,
		Tier:    decision.Tier,
		Reply:   reply,
		Bundle:  bundle,
	})
	if err != nil {
		log.Error("response composition failed", map[string]interface{}{"error": err.Error()})
		return models.ChatResponse{}, s.fail(err)
	}

	elapsed := time.Since(start)
	metrics.ChatRequests.WithLabelValues(string(decision.Tier), string(intent.Domain)).Inc()
	s.obs.RecordRequest(ctx, string(decision.Tier), elapsed)

	log.Info("chat resolved", map[string]interface{}{
		"tier":            string(decision.Tier),
		"reason":          decision.Reason,
		"usedContextKeys": out.Response.UsedContextKeys,
		"durationMs":      elapsed.Milliseconds(),
	})
	return out.Response, nil
}

// generate calls the text generator. Only database_first sees the bundle.
func (s *Service) generate(ctx context.Context, message string, decision resolvefallback.Decision, bundle *models.ContextBundle) string {
	ctx, span := s.obs.StartSpan(ctx, "chat.generate")
	defer span.End()

	req := generatereply.Request{
		Message:      message,
		Tier:         decision.Tier,
		Instructions: decision.Instructions,
	}
	if decision.Tier == models.TierDatabaseFirst {
		req.Bundle = bundle
	}

	reply, err := s.stages.Generator.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		stdErr := apperrors.Normalize(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.ChatRequestErrors.WithLabelValues(string(stdErr.Code)).Inc()
		s.logger.Warn("generation failed, sending apology", map[string]interface{}{
			"tier":  string(decision.Tier),
			"code":  string(stdErr.Code),
			"error": err.Error(),
		})
		return ApologyReply
	}
	return reply
}

// dataUnavailable reports whether a request must fail instead of falling back:
// the intent needs catalog or booking rows, every plan failed, and every
// failure was the data source being down. Timeouts and query errors stay soft.
func dataUnavailable(intent models.Intent, report assemblecontext.Report, softErrors []models.SoftError) bool {
	if !intent.IsDomainSpecific() || !report.AllFailed() || len(softErrors) == 0 {
		return false
	}
	for _, se := range softErrors {
		if se.Code != string(apperrors.ErrCodeDatabaseUnavailable) {
			return false
		}
	}
	return true
}

func (s *Service) fail(err error) *apperrors.StandardError {
	stdErr := apperrors.Normalize(err)
	metrics.ChatRequestErrors.WithLabelValues(string(stdErr.Code)).Inc()
	return stdErr
}
