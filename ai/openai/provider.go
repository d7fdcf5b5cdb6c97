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
	"log/slog"

	"github.com/poiesic/seeq/ai"
)

// Provider bundles the embedder, labeler and generator for one pair of
// OpenAI-compatible hosts.
type Provider struct {
	embedder  *Embedder
	labeler   *Labeler
	generator *Generator
	logger    *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider validates config and builds all three services from it.
// Embedding requests go to config.EmbeddingHost; labeling and generation
// share config.GenerationHost and config.GenerationModel.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		logger: slog.Default().With("component", "openai-provider"),
	}
	var err error
	if p.embedder, err = newEmbedder(config); err != nil {
		return nil, err
	}
	if p.labeler, err = newLabeler(config); err != nil {
		return nil, err
	}
	if p.generator, err = newGenerator(config); err != nil {
		return nil, err
	}

	p.logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"generation_host", config.GenerationHost,
		"generation_model", config.GenerationModel)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Labeler() ai.Labeler {
	return p.labeler
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	return nil
}
