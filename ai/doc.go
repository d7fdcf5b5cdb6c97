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


// Package ai provides abstractions for the model services used by seeq.
//
// Three interfaces cover everything the rest of the module asks of a model:
//
//   - Embedder: turns text into vectors for similarity search
//   - Labeler: assigns tags, a category and keywords to a document
//   - Generator: produces free text such as summaries and answers
//
// AIProvider aggregates them so they share configuration and lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: deterministic test doubles
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and count calls.
//
// # Labels
//
// Model labels are always bounded by ValidateLabels and merged with
// HeuristicLabels, so a document carries at most MaxTags tags and
// MaxKeywords keywords and its category is one of Categories.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithAPIKey(key)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	labels, err := provider.Labeler().Analyze(ctx, text, "minutes_2024.docx")
package ai
