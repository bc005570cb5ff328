package chat

import (
	"fmt"

	"travelgo-chat/internal/common/config"
	"travelgo-chat/internal/common/logger"
	assemblecontext "travelgo-chat/internal/workers/chat/assemble-context"
	buildqueryplan "travelgo-chat/internal/workers/chat/build-query-plan"
	classifyintent "travelgo-chat/internal/workers/chat/classify-intent"
	composeresponse "travelgo-chat/internal/workers/chat/compose-response"
	generatereply "travelgo-chat/internal/workers/chat/generate-reply"
	resolvefallback "travelgo-chat/internal/workers/chat/resolve-fallback"
	"travelgo-chat/pkg/registry"
)

// StageOptions carries what the stages need beyond the chat config.
type StageOptions struct {
	Chat      config.ChatConfig
	Registry  *registry.Registry
	Executor  assemblecontext.PlanExecutor
	Generator generatereply.Generator
	Clock     buildqueryplan.Clock
	Logger    logger.Logger
}

// NewStages builds every stage from opts. Zero values in opts.Chat keep the
// stage defaults.
func NewStages(opts StageOptions) (Stages, error) {
	if opts.Registry == nil {
		return Stages{}, fmt.Errorf("schema registry is required")
	}
	if opts.Executor == nil {
		return Stages{}, fmt.Errorf("plan executor is required")
	}
	if opts.Generator == nil {
		return Stages{}, fmt.Errorf("text generator is required")
	}

	classifyCfg := classifyintent.LoadConfig()
	if opts.Chat.OnTopicThreshold > 0 {
		classifyCfg.OnTopicThreshold = opts.Chat.OnTopicThreshold
	}

	buildCfg := buildqueryplan.LoadConfig()
	if opts.Chat.PageSize > 0 {
		buildCfg.PageSize = opts.Chat.PageSize
	}

	assembleCfg := assemblecontext.LoadConfig()
	if opts.Chat.QueryTimeout > 0 {
		// Dependent plans wait for their parent, so allow two plan budgets.
		assembleCfg.Timeout = 2 * config.GetDuration(opts.Chat.QueryTimeout)
	}

	resolveCfg := resolvefallback.LoadConfig()
	if opts.Chat.ThematicThreshold > 0 {
		resolveCfg.ThematicThreshold = opts.Chat.ThematicThreshold
	}

	composer, err := composeresponse.NewHandler(composeresponse.LoadConfig(), opts.Logger)
	if err != nil {
		return Stages{}, err
	}

	return Stages{
		Classifier: NewClassifier(classifyCfg, opts.Logger),
		Builder:    buildqueryplan.NewHandler(buildCfg, opts.Registry, opts.Clock, opts.Logger),
		Assembler:  assemblecontext.NewHandler(assembleCfg, opts.Registry, opts.Executor, opts.Logger),
		Resolver:   resolvefallback.NewHandler(resolveCfg, opts.Logger),
		Generator:  opts.Generator,
		Composer:   composer,
	}, nil
}

// NewClassifier builds the classify-intent handler on top of the shared logger.
func NewClassifier(cfg *classifyintent.Config, log logger.Logger) *classifyintent.Handler {
	return classifyintent.NewHandler(cfg, &classifierLogger{log})
}

type classifierLogger struct {
	logger.Logger
}

func (a *classifierLogger) With(fields map[string]interface{}) classifyintent.Logger {
	return &classifierLogger{a.Logger.With(fields)}
}
