// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const labelAttempts = 3

// Labeler implements ai.Labeler using OpenAI-compatible chat APIs.
type Labeler struct {
	client llms.Model
	logger *slog.Logger
}

// newLabeler is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newLabeler(config *ai.Config) (*Labeler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}
	return newLabelerWithModel(client), nil
}

func newLabelerWithModel(client llms.Model) *Labeler {
	return &Labeler{
		client: client,
		logger: slog.Default().With("component", "openai-labeler"),
	}
}

// NewLabeler creates a new labeler using the provided configuration.
//
// Returns ai.Labeler interface to enforce abstraction.
func NewLabeler(config *ai.Config) (ai.Labeler, error) {
	return newLabeler(config)
}

// Analyze labels text with the model and merges the result with heuristic labels.
// A reply that never parses falls back to ai.FallbackLabels.
func (l *Labeler) Analyze(ctx context.Context, text, filename string) (*core.Labels, error) {
	if strings.TrimSpace(text) == "" {
		return ai.DefaultLabels(), nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildLabelPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, buildLabelInput(text, filename)),
	}

	var modelLabels *core.Labels
	var lastErr error
	for attempt := 0; attempt < labelAttempts; attempt++ {
		response, err := l.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			l.logger.Error("failed to generate labels", "attempt", attempt+1, "err", err)
			return nil, fmt.Errorf("%w: %w", core.ErrLabeling, err)
		}

		if len(response.Choices) < 1 {
			l.logger.Debug("no choices returned from model")
			lastErr = fmt.Errorf("%w: empty response", core.ErrParse)
			break
		}

		responseText := cleanResponse(response.Choices[0].Content)
		var raw ai.RawLabels
		if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
			lastErr = fmt.Errorf("%w: %w", core.ErrParse, err)
			l.logger.Warn("error parsing labeler response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		modelLabels = ai.ValidateLabels(raw)
		break
	}

	if lastErr != nil {
		l.logger.Warn("using fallback labels", "filename", filename, "err", lastErr)
		modelLabels = ai.FallbackLabels(text)
	}

	labels := ai.MergeLabels(modelLabels, ai.HeuristicLabels(text))
	l.logger.Debug("labeled document",
		"filename", filename,
		"category", labels.Category,
		"tags", len(labels.Tags))
	return labels, nil
}
