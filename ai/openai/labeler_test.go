package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel replays canned replies and records what it was sent.
type scriptedModel struct {
	replies  []string
	err      error
	calls    int
	messages [][]llms.MessageContent
	options  []llms.CallOptions
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = append(m.messages, messages)
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.options = append(m.options, opts)

	if m.err != nil {
		return nil, m.err
	}
	reply := m.replies[min(m.calls-1, len(m.replies)-1)]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLabelerAnalyze(t *testing.T) {
	ctx := context.Background()
	text := "The board met to approve the annual budget. The budget passed."

	t.Run("valid reply", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			"```json\n{\"tags\":[\"board\",\"budget\"],\"category\":\"meeting_minutes\",\"keywords\":[\"annual budget\"],\"confidence_score\":0.9}\n```",
		}}
		labeler := newLabelerWithModel(model)

		labels, err := labeler.Analyze(ctx, text, "board_minutes.docx")
		require.NoError(t, err)

		assert.Equal(t, 1, model.calls)
		assert.Equal(t, "meeting_minutes", labels.Category)
		assert.InDelta(t, 0.9, labels.Confidence, 1e-9)
		assert.Equal(t, []string{"board", "budget", "short"}, labels.Tags)
		assert.Contains(t, labels.Keywords, "annual budget")
		assert.True(t, model.options[0].JSONMode)

		human := model.messages[0][1].Parts[0].(llms.TextContent).Text
		assert.True(t, strings.HasPrefix(human, "Filename hints: board minutes\n\n"))
	})

	t.Run("retries malformed reply", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			"not json at all",
			`{"tags":["law"],"category":"law","keywords":[],"confidence_score":0.7}`,
		}}
		labeler := newLabelerWithModel(model)

		labels, err := labeler.Analyze(ctx, text, "")
		require.NoError(t, err)
		assert.Equal(t, 2, model.calls)
		assert.Equal(t, "law", labels.Category)
	})

	t.Run("falls back after repeated parse failures", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"garbage"}}
		labeler := newLabelerWithModel(model)

		labels, err := labeler.Analyze(ctx, text, "")
		require.NoError(t, err)
		assert.Equal(t, labelAttempts, model.calls)
		assert.Equal(t, ai.CategoryOther, labels.Category)
		assert.Contains(t, labels.Tags, "auto-generated")
		assert.InDelta(t, 0.3, labels.Confidence, 1e-9)
	})

	t.Run("unknown category coerced", func(t *testing.T) {
		model := &scriptedModel{replies: []string{`{"tags":[],"category":"poetry","keywords":[],"confidence_score":0.4}`}}
		labels, err := newLabelerWithModel(model).Analyze(ctx, text, "")
		require.NoError(t, err)
		assert.Equal(t, ai.CategoryOther, labels.Category)
	})

	t.Run("model failure", func(t *testing.T) {
		model := &scriptedModel{err: errors.New("connection refused")}
		_, err := newLabelerWithModel(model).Analyze(ctx, text, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrLabeling)
		assert.Equal(t, 1, model.calls)
	})

	t.Run("empty text skips the model", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"{}"}}
		labels, err := newLabelerWithModel(model).Analyze(ctx, "   ", "x.txt")
		require.NoError(t, err)
		assert.Zero(t, model.calls)
		assert.Equal(t, ai.DefaultLabels(), labels)
	})
}

func TestBuildLabelInput(t *testing.T) {
	long := strings.Repeat("a", ai.AnalysisWindow+100)
	assert.Len(t, buildLabelInput(long, ""), ai.AnalysisWindow)
	assert.Equal(t, "body", buildLabelInput("body", "a.pdf"))
	assert.Equal(t, "Filename hints: q3 report\n\nbody", buildLabelInput("body", "q3-report.pdf"))
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Here you go: {"a":1} hope it helps`, `{"a":1}`},
		{"missing opening quote", `{"tags":[], category":"law"}`, `{"tags":[], "category":"law"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanResponse(tt.in))
		})
	}
}

func TestGeneratorGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("system prompt and options", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"  an answer \n"}}
		gen := newGeneratorWithModel(model)

		out, err := gen.Generate(ctx, "question?", ai.GenerateOptions{System: "be brief", Temperature: 0.3, MaxTokens: 64})
		require.NoError(t, err)
		assert.Equal(t, "an answer", out)
		require.Len(t, model.messages[0], 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0][0].Role)
		assert.Equal(t, 64, model.options[0].MaxTokens)
		assert.InDelta(t, 0.3, model.options[0].Temperature, 1e-9)
	})

	t.Run("no system prompt", func(t *testing.T) {
		model := &scriptedModel{replies: []string{"ok"}}
		_, err := newGeneratorWithModel(model).Generate(ctx, "hi", ai.GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, model.messages[0], 1)
		assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0][0].Role)
	})

	t.Run("model failure", func(t *testing.T) {
		model := &scriptedModel{err: errors.New("rate limited")}
		_, err := newGeneratorWithModel(model).Generate(ctx, "hi", ai.GenerateOptions{})
		assert.ErrorIs(t, err, core.ErrGeneration)
	})
}

func TestNewProviderValidatesConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)

	provider, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
	require.NoError(t, err)
	assert.NotNil(t, provider.Embedder())
	assert.NotNil(t, provider.Labeler())
	assert.NotNil(t, provider.Generator())
	assert.NoError(t, provider.Close())
}
