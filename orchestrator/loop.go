// Package orchestrator drives the bounded tool-orchestration loop: repeated
// inference calls, action dispatch, and the termination/fallback policy.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/actions"
	"github.com/effective-security/toolchat/chatmodel"
	"github.com/effective-security/toolchat/events"
	"github.com/effective-security/toolchat/inference"
	"github.com/effective-security/toolchat/metricskey"
	"github.com/effective-security/toolchat/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "orchestrator")

// MaxLoops bounds the number of inference calls per request. Reaching the
// bound is not an error: the request completes with DegradedAnswer.
const MaxLoops = 8

// DegradedAnswer is returned when the loop exhausts its bound without an
// answer action from the model.
const DegradedAnswer = "unable to complete request"

const (
	correctiveMessage = "invalid response, respond with structured output only"
	answerNowMessage  = `Use the tool results above and reply with a final answer now: {"action":"answer","result":"<answer>"}`
)

// State is the explicit loop state, kept so the termination argument and the
// first-answer-wins rule are unit-testable without any network.
type State int

const (
	StateAwaitingModel State = iota
	StateParsing
	StateDispatching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateParsing:
		return "parsing"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state_%d", int(s))
}

// SystemPrompt primes the model with the action protocol and the registered
// tool descriptions.
func SystemPrompt(registry *tools.Registry) string {
	var b strings.Builder
	b.WriteString("You answer the user's question, calling tools when you need external data.\n")
	b.WriteString("Reply ONLY with JSON actions, one object or an array of objects.\n")
	b.WriteString(`To call a tool: {"action":"call","tool":"<name>","args":{<named arguments>}}` + "\n")
	b.WriteString(`To give the final answer: {"action":"answer","result":"<answer text>"}` + "\n")
	b.WriteString("Available tools:")
	b.WriteString(registry.PromptBlock())
	return b.String()
}

// toolOutcome records one dispatched tool call with either its payload or
// the error folded back into the conversation. No outcome is ever dropped.
type toolOutcome struct {
	action  actions.Action
	payload json.RawMessage
	err     error
}

// Loop owns the state of one in-flight request. It is not safe for
// concurrent use; each request constructs its own.
type Loop struct {
	llm       inference.Client
	registry  *tools.Registry
	invoker   *tools.Invoker
	sink      events.Sink
	requestID string

	state       State
	conv        *chatmodel.Conversation
	iterations  int
	finalResult string
}

// NewLoop seeds a fresh loop for one question.
func NewLoop(llm inference.Client, registry *tools.Registry, invoker *tools.Invoker, sink events.Sink, requestID, question string) *Loop {
	return &Loop{
		llm:       llm,
		registry:  registry,
		invoker:   invoker,
		sink:      sink,
		requestID: requestID,
		state:     StateAwaitingModel,
		conv:      chatmodel.NewConversation(SystemPrompt(registry), question),
	}
}

// State returns the current loop state.
func (l *Loop) State() State { return l.state }

// Iterations returns the number of inference calls performed so far.
func (l *Loop) Iterations() int { return l.iterations }

// Conversation returns the message history, for inspection in tests.
func (l *Loop) Conversation() []chatmodel.Message { return l.conv.Messages() }

// Run drives the loop to completion. It returns the final answer, the
// degraded answer at the bound, or an error only when the inference call
// itself fails; that failure is fatal for the request and never retried.
func (l *Loop) Run(ctx context.Context) (string, error) {
	model := l.llm.ModelName()

	for l.iterations < MaxLoops {
		l.iterations++
		l.state = StateAwaitingModel

		metricskey.StatsInferenceCalls.IncrCounter(1, model)
		metricskey.StatsInferenceBytesSent.IncrCounter(float64(l.conv.ContentSize()), model)

		started := time.Now()
		raw, err := l.llm.Generate(ctx, l.conv.Messages())
		metricskey.PerfInferenceCall.MeasureSince(started, model)
		if err != nil {
			l.state = StateFailed
			l.sink.Emit(ctx, events.Event{
				Type:      events.TypeInferenceError,
				RequestID: l.requestID,
				Error:     err.Error(),
			})
			return "", errors.WithMessage(err, "inference call failed")
		}

		l.state = StateParsing
		acts := actions.Parse(raw)
		if len(acts) == 0 {
			metricskey.StatsParseFallbacks.IncrCounter(1)
			logger.ContextKV(ctx, xlog.DEBUG,
				"request_id", l.requestID,
				"status", "no_actions_recovered",
				"iteration", l.iterations,
				"reply", slices.StringUpto(raw, 128),
			)
			l.sink.Emit(ctx, events.Event{
				Type:      events.TypeParseFallback,
				RequestID: l.requestID,
				Payload:   slices.StringUpto(raw, 256),
			})
			l.conv.Append(chatmodel.RoleUser, correctiveMessage)
			continue
		}

		outcomes := l.processBatch(ctx, acts)
		if l.finalResult != "" {
			l.state = StateDone
			l.sink.Emit(ctx, events.Event{
				Type:      events.TypeAnswer,
				RequestID: l.requestID,
				Payload:   l.finalResult,
			})
			return l.finalResult, nil
		}
		if len(outcomes) > 0 {
			l.foldOutcomes(outcomes)
		}
		// A batch that dispatched nothing and answered nothing just burns an
		// iteration toward the bound.
	}

	l.state = StateDone
	metricskey.StatsAskDegraded.IncrCounter(1)
	l.sink.Emit(ctx, events.Event{
		Type:      events.TypeDegraded,
		RequestID: l.requestID,
	})
	return DegradedAnswer, nil
}

// processBatch handles one parsed action list in order. The first answer
// wins: it sets finalResult and every later action in the batch, including
// tool calls, is discarded undispatched. Tool calls ahead of the answer have
// already run; their results are simply not used. Calls within a batch run
// sequentially; dispatching independent calls concurrently is a possible
// improvement, not current behavior.
func (l *Loop) processBatch(ctx context.Context, acts []actions.Action) []toolOutcome {
	l.state = StateDispatching

	var outcomes []toolOutcome
	for _, act := range acts {
		if act.Kind == actions.KindAnswer {
			l.finalResult = act.Result
			break
		}

		desc, ok := l.registry.Lookup(act.Tool)
		if !ok {
			metricskey.StatsToolCallsNotFound.IncrCounter(1, act.Tool)
			logger.ContextKV(ctx, xlog.DEBUG,
				"request_id", l.requestID,
				"status", "unknown_tool",
				"tool", act.Tool,
			)
			continue
		}

		l.sink.Emit(ctx, events.Event{
			Type:      events.TypeToolCall,
			RequestID: l.requestID,
			Tool:      desc.Name,
			Payload:   act.Args,
		})

		started := time.Now()
		payload, err := l.invoker.Invoke(ctx, desc.Endpoint, act.Args)
		metricskey.PerfToolCall.MeasureSince(started, desc.Name)

		if err != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, desc.Name)
			logger.ContextKV(ctx, xlog.WARNING,
				"request_id", l.requestID,
				"status", "tool_call_failed",
				"tool", desc.Name,
				"err", err.Error(),
			)
			l.sink.Emit(ctx, events.Event{
				Type:      events.TypeToolError,
				RequestID: l.requestID,
				Tool:      desc.Name,
				Error:     err.Error(),
			})
		} else {
			metricskey.StatsToolCallsSucceeded.IncrCounter(1, desc.Name)
			l.sink.Emit(ctx, events.Event{
				Type:      events.TypeToolResult,
				RequestID: l.requestID,
				Tool:      desc.Name,
				Payload:   payload,
			})
		}

		outcomes = append(outcomes, toolOutcome{action: act, payload: payload, err: err})
	}
	return outcomes
}

// foldOutcomes appends the dispatched calls and their results to the
// conversation: an assistant-authored echo of each call, a user-authored
// summary of every result or failure, and the instruction to answer now.
func (l *Loop) foldOutcomes(outcomes []toolOutcome) {
	for _, o := range outcomes {
		echo := chatmodel.ToJSON(map[string]any{
			"action": "call",
			"tool":   o.action.Tool,
			"args":   o.action.Args,
		})
		l.conv.Append(chatmodel.RoleAssistant, echo)
	}

	var b strings.Builder
	b.WriteString("Tool results:\n")
	for _, o := range outcomes {
		if o.err != nil {
			fmt.Fprintf(&b, "- %s failed: %s\n", o.action.Tool, o.err.Error())
		} else {
			fmt.Fprintf(&b, "- %s returned: %s\n", o.action.Tool, string(o.payload))
		}
	}
	l.conv.Append(chatmodel.RoleUser, b.String())
	l.conv.Append(chatmodel.RoleUser, answerNowMessage)
}
