package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChatter replays a fixed sequence of assistant messages and records
// every request it sees.
type scriptedChatter struct {
	script []openai.ChatCompletionMessage
	err    error

	requests  [][]openai.ChatCompletionMessage
	toolSets  [][]openai.Tool
	callCount int
}

func (s *scriptedChatter) Chat(_ context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	s.requests = append(s.requests, messages)
	s.toolSets = append(s.toolSets, tools)
	if s.err != nil {
		return openai.ChatCompletionMessage{}, s.err
	}
	msg := s.script[s.callCount]
	s.callCount++
	return msg, nil
}

func assistantText(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func assistantToolCalls(calls ...openai.ToolCall) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls}
}

func toolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:       id,
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name, Arguments: args},
	}
}

func echoTool(name string) Tool {
	return fnTool(name, "echoes its arguments", map[string]any{"type": "object"},
		func(_ context.Context, args json.RawMessage) (string, error) {
			return "echo:" + string(args), nil
		},
	)
}

func TestLoopCompletesWithoutTools(t *testing.T) {
	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{assistantText("[]")}}
	loop := NewLoop(chatter, nil, 5, "test")

	content, state, err := loop.Run(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, state)
	assert.Equal(t, "[]", content)
	assert.Equal(t, 1, chatter.callCount)
}

func TestLoopDispatchesTools(t *testing.T) {
	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{
		assistantToolCalls(toolCall("call-1", "echo", `{"q":1}`)),
		assistantText("done"),
	}}
	loop := NewLoop(chatter, []Tool{echoTool("echo")}, 5, "test")

	content, state, err := loop.Run(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, state)
	assert.Equal(t, "done", content)

	// The second request carries the tool result back to the model.
	require.Len(t, chatter.requests, 2)
	second := chatter.requests[1]
	last := second[len(second)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.Equal(t, `echo:{"q":1}`, last.Content)
}

func TestLoopReportsUnknownTool(t *testing.T) {
	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{
		assistantToolCalls(toolCall("call-1", "no_such_tool", "{}")),
		assistantText("ok"),
	}}
	loop := NewLoop(chatter, []Tool{echoTool("echo")}, 5, "test")

	_, state, err := loop.Run(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, state)
	second := chatter.requests[1]
	assert.Equal(t, "unknown tool: no_such_tool", second[len(second)-1].Content)
}

func TestLoopSurfacesToolErrorsAsText(t *testing.T) {
	failing := fnTool("boom", "always fails", map[string]any{"type": "object"},
		func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("storage offline")
		},
	)
	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{
		assistantToolCalls(toolCall("call-1", "boom", "{}")),
		assistantText("ok"),
	}}
	loop := NewLoop(chatter, []Tool{failing}, 5, "test")

	_, _, err := loop.Run(context.Background(), "system", "user")

	require.NoError(t, err)
	second := chatter.requests[1]
	assert.Equal(t, "tool error: storage offline", second[len(second)-1].Content)
}

func TestLoopToolBudgetExceeded(t *testing.T) {
	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{
		assistantToolCalls(
			toolCall("call-1", "echo", "{}"),
			toolCall("call-2", "echo", "{}"),
		),
		assistantText(`[{"partial": true}]`),
	}}
	loop := NewLoop(chatter, []Tool{echoTool("echo")}, 1, "test")

	content, state, err := loop.Run(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, StateToolBudgetExceeded, state)
	assert.Equal(t, `[{"partial": true}]`, content)

	// Pending calls were answered with the budget notice, and the final
	// request offered no tools.
	require.Len(t, chatter.requests, 2)
	final := chatter.requests[1]
	assert.Equal(t, budgetNotice, final[len(final)-1].Content)
	assert.Equal(t, budgetNotice, final[len(final)-2].Content)
	assert.Nil(t, chatter.toolSets[1])
}

func TestLoopBudgetAllowsExactFit(t *testing.T) {
	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{
		assistantToolCalls(toolCall("call-1", "echo", "{}")),
		assistantToolCalls(toolCall("call-2", "echo", "{}")),
		assistantText("done"),
	}}
	loop := NewLoop(chatter, []Tool{echoTool("echo")}, 2, "test")

	content, state, err := loop.Run(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, state)
	assert.Equal(t, "done", content)
}

func TestLoopModelFailure(t *testing.T) {
	chatter := &scriptedChatter{err: errors.New("rate limited")}
	loop := NewLoop(chatter, nil, 5, "test")

	_, state, err := loop.Run(context.Background(), "system", "user")

	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
}

func TestLoopCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chatter := &scriptedChatter{script: []openai.ChatCompletionMessage{assistantText("never")}}
	loop := NewLoop(chatter, nil, 5, "test")

	_, state, err := loop.Run(ctx, "system", "user")

	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Zero(t, chatter.callCount)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "tool_budget_exceeded", StateToolBudgetExceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "running", StateRunning.String())
}
