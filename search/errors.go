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


package search

import "errors"

var (
	// ErrRepositoriesRequired is returned when a required repository is not provided.
	ErrRepositoriesRequired = errors.New("repositories required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrSearcherRequired is returned when a hybrid searcher has no vector searcher.
	ErrSearcherRequired = errors.New("vector searcher required")

	// ErrInvalidFilter is returned when a filter carries a malformed identifier.
	ErrInvalidFilter = errors.New("invalid search filter")

	// ErrInvalidK is returned for a negative result count.
	ErrInvalidK = errors.New("result count must not be negative")
)
