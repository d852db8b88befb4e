package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func completionResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func TestChatReturnsAssistantMessage(t *testing.T) {
	api := &fakeAPI{responses: []openai.ChatCompletionResponse{completionResponse("hello")}}
	client := NewClientWithAPI(api, "test-model")

	msg, err := client.Chat(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "test-model", api.requests[0].Model)
}

func TestChatPassesTools(t *testing.T) {
	api := &fakeAPI{responses: []openai.ChatCompletionResponse{completionResponse("ok")}}
	client := NewClientWithAPI(api, "test-model")

	tools := []openai.Tool{{
		Type:     openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{Name: "get_ontology"},
	}}

	_, err := client.Chat(context.Background(), nil, tools)

	require.NoError(t, err)
	require.Len(t, api.requests[0].Tools, 1)
	assert.Equal(t, "get_ontology", api.requests[0].Tools[0].Function.Name)
}

func TestChatRetriesTransientFailure(t *testing.T) {
	api := &fakeAPI{
		errs:      []error{errors.New("rate limited"), nil},
		responses: []openai.ChatCompletionResponse{{}, completionResponse("recovered")},
	}
	client := NewClientWithAPI(api, "test-model")
	client.retryConfig.InitialDelay = 1
	client.retryConfig.MaxDelay = 1

	msg, err := client.Chat(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "recovered", msg.Content)
	assert.Len(t, api.requests, 2)
}

func TestChatEmptyChoicesIsAnError(t *testing.T) {
	api := &fakeAPI{responses: []openai.ChatCompletionResponse{{}, {}, {}}}
	client := NewClientWithAPI(api, "test-model")
	client.retryConfig.InitialDelay = 1
	client.retryConfig.MaxDelay = 1

	_, err := client.Chat(context.Background(), nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
