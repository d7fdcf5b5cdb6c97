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


// Package bridge reconciles a foreign OCR record store into the library.
//
// A Reconciler pulls candidate records from a Source, classifies each one
// into a Shape, renders its text and stores it through the ingestion
// pipeline. Records are deduplicated by their synthetic file id
// ("ocr_" + foreign id), so running a sync twice over an unchanged source
// ingests nothing the second time. Incremental runs are bounded by a
// watermark kept in the sync repository.
//
// Two sources are provided: MongoSource reads the OCR service's Mongo
// collection and MemorySource holds records in process. A Scheduler runs
// incremental syncs on a cron schedule.
package bridge
