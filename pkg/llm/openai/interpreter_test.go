package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserapi/pkg/llm"
	"github.com/entrhq/browserapi/pkg/llm/tokens"
	"github.com/entrhq/browserapi/pkg/types"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) GetModel() string {
	return "test-model"
}

var loginPage = types.PageDigest{
	URL:     "https://example.com/login",
	Title:   "Sign in",
	Content: `<form><input id="email" name="email"><button id="submit">Sign in</button></form>`,
}

func newTestInterpreter(t *testing.T, provider llm.Provider, opts ...InterpreterOption) *Interpreter {
	t.Helper()
	opts = append([]InterpreterOption{WithTokenBudget(tokens.NewEstimatingBudget(DefaultMaxPromptTokens))}, opts...)
	interpreter, err := NewInterpreter(provider, opts...)
	require.NoError(t, err)
	return interpreter
}

func TestInterpreter_Plan(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.MatchedBy(func(messages []llm.Message) bool {
		return len(messages) == 2 &&
			messages[0].Role == llm.RoleSystem &&
			strings.Contains(messages[1].Content, "Instruction: type my email") &&
			strings.Contains(messages[1].Content, `id="email"`)
	})).Return("```json\n{\"selector\": \"#email\", \"method\": \"fill\", \"args\": [\"%email%\"], \"description\": \"Fill email\"}\n```", nil).Once()

	interpreter := newTestInterpreter(t, provider)

	step, err := interpreter.Plan(context.Background(), "type my email", loginPage)
	require.NoError(t, err)
	assert.Equal(t, types.Step{
		Selector:    "#email",
		Method:      types.MethodFill,
		Args:        []string{"%email%"},
		Description: "Fill email",
	}, step)
	provider.AssertExpectations(t)
}

func TestInterpreter_PlanCache(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Return(`{"selector": "#submit", "method": "click"}`, nil).Twice()

	interpreter := newTestInterpreter(t, provider, WithPlanCache(8))

	for i := 0; i < 3; i++ {
		step, err := interpreter.Plan(context.Background(), "click sign in", loginPage)
		require.NoError(t, err)
		assert.Equal(t, "#submit", step.Selector)
	}
	assert.Equal(t, 1, interpreter.CacheLen())

	// A changed page is a cache miss.
	changed := loginPage
	changed.Content += "<p>Welcome back</p>"
	_, err := interpreter.Plan(context.Background(), "click sign in", changed)
	require.NoError(t, err)

	provider.AssertNumberOfCalls(t, "Complete", 2)
}

func TestInterpreter_PlanWithoutCache(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Return(`{"selector": "#submit", "method": "click"}`, nil)

	interpreter := newTestInterpreter(t, provider)
	for i := 0; i < 2; i++ {
		_, err := interpreter.Plan(context.Background(), "click sign in", loginPage)
		require.NoError(t, err)
	}
	provider.AssertNumberOfCalls(t, "Complete", 2)
	assert.Equal(t, 0, interpreter.CacheLen())
}

func TestInterpreter_PlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		wantErr string
	}{
		{"provider failure", "", errors.New("429 rate limited"), "429"},
		{"prose", "I would click the button.", nil, "did not return a JSON step"},
		{"model refusal", `{"error": "no such button"}`, nil, "no such button"},
		{"missing selector", `{"method": "click"}`, nil, "no selector"},
		{"unknown method", `{"selector": "#a", "method": "dragAndDrop"}`, nil, "unsupported method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			provider.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			interpreter := newTestInterpreter(t, provider, WithPlanCache(4))
			_, err := interpreter.Plan(context.Background(), "click the button", loginPage)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 0, interpreter.CacheLen(), "failures are never cached")
		})
	}

	t.Run("empty instruction", func(t *testing.T) {
		interpreter := newTestInterpreter(t, &mockProvider{})
		_, err := interpreter.Plan(context.Background(), "  ", loginPage)
		assert.Error(t, err)
	})
}

func TestInterpreter_Extract(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"json object", "Here you go:\n{\"price\": \"$10\",\n \"currency\": \"USD\"}", `{"price":"$10","currency":"USD"}`},
		{"plain text", "The price is $10", `{"extraction":"The price is $10"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			provider.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, nil)

			interpreter := newTestInterpreter(t, provider)
			got, err := interpreter.Extract(context.Background(), "get the price", loginPage)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestInterpreter_PromptIncludesFramesAndRespectsBudget(t *testing.T) {
	var captured string
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			messages := args.Get(1).([]llm.Message)
			captured = messages[1].Content
		}).
		Return(`{"selector": "#pay", "method": "click", "frame": "checkout"}`, nil)

	page := loginPage
	page.Frames = []types.FrameDigest{{Name: "checkout", URL: "https://pay.example.com/frame", Content: `<button id="pay">Pay</button>`}}

	interpreter := newTestInterpreter(t, provider)
	step, err := interpreter.Plan(context.Background(), "pay", page)
	require.NoError(t, err)
	assert.Equal(t, "checkout", step.Frame)
	assert.Contains(t, captured, `Frame name="checkout"`)
	assert.Contains(t, captured, `<button id="pay">`)

	small := newTestInterpreter(t, provider, WithTokenBudget(tokens.NewEstimatingBudget(promptOverhead+10)))
	page.Content = strings.Repeat("<p>filler</p>", 500)
	_, err = small.Plan(context.Background(), "pay", page)
	require.NoError(t, err)
	assert.Contains(t, captured, "[truncated]")
	assert.Less(t, len(captured), 200)
}
