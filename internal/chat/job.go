package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"travelgo-chat/internal/common/camunda"
	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/metrics"
	"travelgo-chat/internal/models"
)

const JobType = "travel-chat"

type JobInput struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken,omitempty"`
}

type JobOutput struct {
	Response models.ChatResponse `json:"response"`
}

// IdentityResolver turns a bearer token into a caller; *auth.Resolver implements it.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (models.CallerIdentity, error)
}

// ParseJobInput decodes the job variables of a travel-chat job.
func ParseJobInput(variables string) (*JobInput, error) {
	var input JobInput
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError("job variables are not valid JSON: " + err.Error())
	}
	return &input, nil
}

// ExecuteJob resolves the caller from the job's token and runs the pipeline.
func (s *Service) ExecuteJob(ctx context.Context, identities IdentityResolver, input *JobInput) (*JobOutput, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input cannot be nil")
	}
	caller, err := identities.Resolve(ctx, input.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err := s.Handle(ctx, models.ChatRequest{Message: input.Message}, caller)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Response: resp}, nil
}

// JobHandler serves travel-chat jobs from a Zeebe process. Failures are
// reported through the shared error handler.
func (s *Service) JobHandler(identities IdentityResolver, timeout time.Duration) camunda.JobHandler {
	errHandler := apperrors.NewErrorHandler(s.logger)

	return func(client worker.JobClient, job entities.Job) {
		s.logger.Info("processing job", map[string]interface{}{
			"jobKey":      job.Key,
			"workflowKey": job.ProcessInstanceKey,
		})

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		output, err := func() (*JobOutput, error) {
			input, err := ParseJobInput(job.Variables)
			if err != nil {
				return nil, err
			}
			return s.ExecuteJob(ctx, identities, input)
		}()
		if err != nil {
			bpmnErr := errHandler.HandleJobError(ctx, client, job, err)
			metrics.WorkerJobsFailed.WithLabelValues(JobType, bpmnErr.Code).Inc()
			return
		}

		if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
			s.logger.Error("failed to complete job", map[string]interface{}{"error": err.Error()})
			return
		}
		metrics.WorkerJobsCompleted.WithLabelValues(JobType).Inc()
	}
}
