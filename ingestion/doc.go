// Package ingestion turns uploaded files and bridged records into stored,
// embedded and labeled documents.
//
// A Pipeline runs every document through the same stages:
//   - extract and normalize text (uploads only)
//   - resolve the target folder
//   - label with the ai.Labeler; a labeling failure is recorded and skipped
//   - persist the document as pending
//   - chunk, embed, store chunks and index them
//   - attach labels and mark the document complete
//
// Status moves pending, chunked, embedded, complete. A failing stage writes a
// core.FailureRecord, marks the document failed and returns the error; nothing
// is rolled back. Sweep later resumes or discards documents left behind.
package ingestion
