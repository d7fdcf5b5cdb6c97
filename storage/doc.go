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


// Package storage defines the persistence contracts for seeq.
//
// Each record family (folders, documents, chunks, labels, cache entries,
// sync watermarks, failure records) has its own repository interface so
// that pipelines depend only on what they touch. The badger subpackage
// provides the production implementation; all repositories share one
// Backend.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	repos, err := badger.NewRepositories(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	defer repos.Close()
//
// Tests use badger.NewMemoryRepositories for an in-memory store.
//
// # Encoding
//
// Records are stored as BSON documents. IDs used as index values are
// fixed-width big-endian so that composite keys sort numerically.
//
// # Consistency
//
// Writes to one record family happen in a single Badger transaction.
// There are no transactions spanning documents, chunks and labels;
// the document status field records progress instead, and the
// ingestion sweep repairs documents left part way through.
package storage
