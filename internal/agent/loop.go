// Package agent runs the two model-driven phases of the pipeline: assertion
// mining over the document subgraph, and entity resolution against the
// domain graph. Both phases share one bounded tool-call loop.
package agent

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/metrics"
	"github.com/docgraph/pipeline/pkg/logger"
)

// State is the terminal state of a loop run.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateToolBudgetExceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateToolBudgetExceeded:
		return "tool_budget_exceeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Chatter is the LLM-call capability the loop consumes.
type Chatter interface {
	Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
}

const budgetNotice = "Tool budget exhausted. Do not request more tool calls; produce your final answer now from what you have."

// Loop is an explicit tool-call state machine. The budget is counted here,
// not delegated to any model-framework run loop, so it is testable in
// isolation.
type Loop struct {
	llm          Chatter
	tools        []Tool
	maxToolCalls int
	phase        string
}

func NewLoop(llm Chatter, tools []Tool, maxToolCalls int, phase string) *Loop {
	if maxToolCalls <= 0 {
		maxToolCalls = 25
	}
	return &Loop{llm: llm, tools: tools, maxToolCalls: maxToolCalls, phase: phase}
}

// Run drives the conversation until the model stops requesting tools, the
// tool budget runs out, or the model call fails. On budget exhaustion the
// model is asked once, without tools, for its best partial output. That is
// an expected outcome for large documents, not an error.
func (l *Loop) Run(ctx context.Context, systemPrompt, userPrompt string) (string, State, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	defs := make([]openai.Tool, len(l.tools))
	for i, t := range l.tools {
		defs[i] = t.Definition
	}

	used := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", StateFailed, fmt.Errorf("agent loop cancelled: %w", err)
		}

		msg, err := l.llm.Chat(ctx, messages, defs)
		if err != nil {
			return "", StateFailed, fmt.Errorf("model call failed: %w", err)
		}
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			return msg.Content, StateCompleted, nil
		}

		if used+len(msg.ToolCalls) > l.maxToolCalls {
			// Answer the pending calls so the transcript stays well-formed,
			// then collect whatever the model can still produce.
			for _, tc := range msg.ToolCalls {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: tc.ID,
					Content:    budgetNotice,
				})
			}
			logger.Warn("Agent tool budget exhausted",
				zap.String("phase", l.phase),
				zap.Int("budget", l.maxToolCalls),
			)

			final, err := l.llm.Chat(ctx, messages, nil)
			if err != nil {
				return "", StateToolBudgetExceeded, nil
			}
			return final.Content, StateToolBudgetExceeded, nil
		}

		for _, tc := range msg.ToolCalls {
			used++
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    l.dispatch(ctx, tc),
			})
		}
	}
}

// dispatch runs one tool call. Tool failures are returned to the model as
// readable text; only the transcript sees them.
func (l *Loop) dispatch(ctx context.Context, tc openai.ToolCall) string {
	for _, t := range l.tools {
		if t.Definition.Function != nil && t.Definition.Function.Name == tc.Function.Name {
			metrics.ToolCalls.WithLabelValues(l.phase, tc.Function.Name).Inc()
			result, err := t.Handler(ctx, []byte(tc.Function.Arguments))
			if err != nil {
				logger.Warn("Agent tool failed",
					zap.String("phase", l.phase),
					zap.String("tool", tc.Function.Name),
					zap.Error(err),
				)
				return "tool error: " + err.Error()
			}
			return result
		}
	}
	return "unknown tool: " + tc.Function.Name
}
