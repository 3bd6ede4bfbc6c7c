package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/events"
	"github.com/effective-security/toolchat/inference"
	"github.com/effective-security/toolchat/metricskey"
	"github.com/effective-security/toolchat/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

// ErrEmptyQuestion is returned when the question is missing or blank;
// no loop is started in that case.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Service is the request-handling entry point. Each Ask call owns an
// independent loop and conversation; the only shared state is the read-only
// registry and the event sink, so Service is safe for concurrent use.
type Service struct {
	llm      inference.Client
	registry *tools.Registry
	invoker  *tools.Invoker
	sink     events.Sink
}

func NewService(llm inference.Client, registry *tools.Registry, invoker *tools.Invoker, sink events.Sink) *Service {
	if sink == nil {
		sink = events.NewNoop()
	}
	return &Service{
		llm:      llm,
		registry: registry,
		invoker:  invoker,
		sink:     sink,
	}
}

// Ask answers one question. It returns the model's answer, the degraded
// fallback when the loop bound is reached, or an error only for an empty
// question or a fatal inference failure.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	started := time.Now()
	defer metricskey.PerfAsk.MeasureSince(started)

	if strings.TrimSpace(question) == "" {
		return "", errors.WithStack(ErrEmptyQuestion)
	}

	requestID := uuid.NewString()
	loop := NewLoop(s.llm, s.registry, s.invoker, s.sink, requestID, question)

	result, err := loop.Run(ctx)
	if err != nil {
		metricskey.StatsAskFailed.IncrCounter(1)
		logger.ContextKV(ctx, xlog.ERROR,
			"request_id", requestID,
			"status", "ask_failed",
			"question", slices.StringUpto(question, 64),
			"iterations", loop.Iterations(),
			"err", err.Error(),
		)
		return "", err
	}

	metricskey.StatsAskSucceeded.IncrCounter(1)
	logger.ContextKV(ctx, xlog.DEBUG,
		"request_id", requestID,
		"status", "ask_succeeded",
		"iterations", loop.Iterations(),
		"result", slices.StringUpto(result, 64),
	)
	return result, nil
}
