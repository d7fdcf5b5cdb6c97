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


// Package search provides similarity and label-aware retrieval over stored chunks.
//
// A VectorSearcher embeds the query once and asks an Index for the top-k
// chunks by cosine similarity. LinearIndex scans the chunk repository and
// is always available; the qdrant subpackage offers an external index
// behind the same interface.
//
// HybridSearcher over-fetches from a VectorSearcher and drops candidates
// whose document labels do not pass the category and tag filters.
//
// Retrieval failures (embedding or store errors) are logged and yield an
// empty result. Only malformed filters are reported to the caller.
package search
